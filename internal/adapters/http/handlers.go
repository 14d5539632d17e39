package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/app/models"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/lang"
)

type handlers struct {
	deps Deps
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Orbis SFU Server",
		"status":  "running",
		"endpoints": gin.H{
			"websocket": "/ws/{roomId}",
			"health":    "/health",
			"stats":     "/stats",
			"metrics":   "/metrics",
		},
	})
}

func (h *handlers) health(c *gin.Context) {
	modelStatus := make(map[string]models.Status)
	for _, info := range h.deps.Models.Snapshot() {
		modelStatus[string(info.Type)] = info.Status
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"sfu": gin.H{
			"workers": h.deps.SFU.Stats().Workers,
			"ready":   h.deps.SFU.Ready(),
		},
		"models": modelStatus,
	})
}

func (h *handlers) stats(c *gin.Context) {
	cfg := h.deps.Cfg
	c.JSON(http.StatusOK, gin.H{
		"config": gin.H{
			"maxRooms":               cfg.SFU.MaxRooms,
			"maxParticipantsPerRoom": cfg.SFU.MaxParticipants,
			"targetLatencyMs":        cfg.Pipeline.TargetLatency.Milliseconds(),
		},
		"signaling":    h.deps.Signal.Stats(),
		"sfu":          h.deps.SFU.Stats(),
		"orchestrator": h.deps.Orch.Stats(),
		"pipeline":     h.deps.Pipeline.Stats(),
		"models":       h.deps.Models.Snapshot(),
	})
}

func (h *handlers) configDump(c *gin.Context) {
	cfg := h.deps.Cfg
	c.JSON(http.StatusOK, gin.H{
		"port":                   cfg.Server.Port,
		"workers":                cfg.SFU.Workers,
		"maxRooms":               cfg.SFU.MaxRooms,
		"maxParticipantsPerRoom": cfg.SFU.MaxParticipants,
		"sampleRate":             cfg.Audio.SampleRate,
		"asrSampleRate":          cfg.Audio.ASRSampleRate,
		"targetLatencyMs":        cfg.Pipeline.TargetLatency.Milliseconds(),
		"cacheCapacity":          cfg.Pipeline.CacheCapacity,
		"queueCapacity":          cfg.Pipeline.QueueCapacity,
		"modelIdleTimeout":       cfg.Models.IdleTimeout.String(),
		"engine":                 cfg.Models.Engine,
	})
}

func (h *handlers) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": lang.Supported})
}

func (h *handlers) startRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	h.deps.Orch.StartRoom(roomID)
	c.JSON(http.StatusOK, gin.H{"status": "started", "roomId": roomID})
}

func (h *handlers) stopRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	h.deps.Orch.StopRoom(roomID)
	c.JSON(http.StatusOK, gin.H{"status": "stopped", "roomId": roomID})
}

// pushAudio is the HTTP alternative to sending binary frames on the
// signaling socket; the external API layer uses it to inject audio.
func (h *handlers) pushAudio(c *gin.Context) {
	roomID := domain.RoomID(c.Param("roomId"))
	participantID := domain.ParticipantID(c.Query("participantId"))
	if participantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participantId query parameter required"})
		return
	}
	sampleRate, _ := strconv.Atoi(c.DefaultQuery("sampleRate", "0"))
	sourceLang := domain.Language(c.DefaultQuery("sourceLanguage", "en"))

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty audio payload"})
		return
	}

	err = h.deps.Orch.Ingest(roomID, participantID, raw, sampleRate, sourceLang)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, core.ErrQueueFull):
		// drop-newest policy: report, never block the producer
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "dropped", "error": err.Error()})
	case errors.Is(err, core.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("audio ingest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
