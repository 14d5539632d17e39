// Package http wires the gin control surface: the signaling WebSocket
// endpoint, the room control routes the external API layer drives, and
// the stats/health/config/metrics read side.
package http

import (
	"context"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/adapters/signal"
	"github.com/jeferson-byte-ai/Orbis/internal/app/models"
	"github.com/jeferson-byte-ai/Orbis/internal/app/orch"
	"github.com/jeferson-byte-ai/Orbis/internal/app/pipeline"
	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/config"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

const (
	sessionName = "OrbisSession"
	tokenKey    = "ct"

	joinLimit    = 20
	joinInterval = time.Minute
)

type Deps struct {
	Cfg      *config.Config
	Signal   *signal.Server
	Orch     *orch.Orchestrator
	Pipeline *pipeline.Pipeline
	Models   *models.Manager
	SFU      *sfu.Manager
	Registry *prometheus.Registry
}

// ClientTokenMiddleware issues a stable per-client token through the
// cookie session store and exposes it on the gin context.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(tokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(tokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save failed")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	if d.Cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if d.Cfg.Server.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(d.Cfg.Server.Secret))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{deps: d}
	limiter := signal.NewJoinLimiter(joinLimit, joinInterval)

	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/stats", h.stats)
	r.GET("/config", h.configDump)
	r.GET("/languages", h.languages)
	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/ws/:roomId", func(c *gin.Context) {
		token := c.GetString("client_token")
		if !limiter.Allow(token) {
			c.JSON(429, gin.H{"error": "too many connection attempts"})
			return
		}
		roomID := domain.RoomID(c.Param("roomId"))
		log.Info().
			Str("module", "adapters.http").
			Str("room", string(roomID)).
			Str("token", token).
			Msg("signaling connection")
		d.Signal.Handle(ctx, c, roomID, c.Query("displayName"))
	})

	rooms := r.Group("/rooms")
	rooms.POST("/:roomId/start", h.startRoom)
	rooms.POST("/:roomId/stop", h.stopRoom)
	rooms.POST("/:roomId/audio", h.pushAudio)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
