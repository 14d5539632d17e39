// Package orch runs one bounded audio queue and one drain goroutine
// per active room. Ingestion never blocks the producer: a full queue
// drops the newest chunk, trading completeness for latency. Rooms
// start implicitly on first audio and stop only on explicit request;
// operators should expect that asymmetry.
package orch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
)

type Config struct {
	QueueCapacity     int
	PollTimeout       time.Duration
	TargetLatency     time.Duration
	DefaultSampleRate int
}

// Processor is the slice of the translation pipeline the orchestrator
// needs; tests substitute fakes.
type Processor interface {
	Process(ctx context.Context, chunk core.AudioChunk, targets []domain.Language, voice *core.VoiceProfile) (map[domain.Language]core.SynthesisResult, error)
}

type room struct {
	id     domain.RoomID
	queue  chan core.AudioChunk
	cancel context.CancelFunc
}

type Orchestrator struct {
	cfg      Config
	pipeline Processor
	dir      core.RoomDirectory
	sink     core.TranslationSink
	profiles core.VoiceProfileProvider
	col      *metrics.Collectors

	ctx context.Context

	mu    sync.Mutex
	rooms map[domain.RoomID]*room

	processed atomic.Int64
	dropped   atomic.Int64
}

func New(
	cfg Config,
	p Processor,
	dir core.RoomDirectory,
	sink core.TranslationSink,
	profiles core.VoiceProfileProvider,
	col *metrics.Collectors,
) *Orchestrator {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.DefaultSampleRate <= 0 {
		cfg.DefaultSampleRate = 48000
	}
	return &Orchestrator{
		cfg:      cfg,
		pipeline: p,
		dir:      dir,
		sink:     sink,
		profiles: profiles,
		col:      col,
		rooms:    make(map[domain.RoomID]*room),
	}
}

// Start binds the orchestrator's lifetime to ctx. Rooms spawned later
// inherit it; cancelling ctx stops every drain loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx = ctx
}

// StartRoom is idempotent: it spawns the room's queue and drain loop
// only if the room is not already active.
func (o *Orchestrator) StartRoom(id domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startRoomLocked(id)
}

func (o *Orchestrator) startRoomLocked(id domain.RoomID) *room {
	if r, ok := o.rooms[id]; ok {
		return r
	}
	base := o.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	r := &room{
		id:     id,
		queue:  make(chan core.AudioChunk, o.cfg.QueueCapacity),
		cancel: cancel,
	}
	o.rooms[id] = r
	if o.col != nil {
		o.col.ActiveRooms.Inc()
	}
	go o.drain(ctx, r)
	log.Info().Str("module", "orch").Str("room", string(id)).Msg("room started")
	return r
}

// StopRoom cancels the drain loop and discards the queue. At most one
// in-flight chunk may be abandoned mid-processing.
func (o *Orchestrator) StopRoom(id domain.RoomID) {
	o.mu.Lock()
	r, ok := o.rooms[id]
	if ok {
		delete(o.rooms, id)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	if o.col != nil {
		o.col.ActiveRooms.Dec()
	}
	log.Info().Str("module", "orch").Str("room", string(id)).Msg("room stopped")
}

// StopAll tears down every active room; used on shutdown.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	rooms := make([]*room, 0, len(o.rooms))
	for _, r := range o.rooms {
		rooms = append(rooms, r)
	}
	o.rooms = make(map[domain.RoomID]*room)
	o.mu.Unlock()
	for _, r := range rooms {
		r.cancel()
		if o.col != nil {
			o.col.ActiveRooms.Dec()
		}
	}
}

// Active reports whether the room has a live drain loop.
func (o *Orchestrator) Active(id domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.rooms[id]
	return ok
}

// Ingest decodes a raw PCM16LE payload and enqueues it for the room,
// starting the room if needed. The enqueue never blocks: on a full
// queue the chunk is dropped and ErrQueueFull returned.
func (o *Orchestrator) Ingest(
	roomID domain.RoomID,
	participantID domain.ParticipantID,
	raw []byte,
	sampleRate int,
	sourceLanguage domain.Language,
) error {
	samples, err := audio.DecodePCM16(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}
	if sampleRate <= 0 {
		sampleRate = o.cfg.DefaultSampleRate
	}
	chunk := core.AudioChunk{
		Samples:        samples,
		SampleRate:     sampleRate,
		Timestamp:      time.Now(),
		ParticipantID:  participantID,
		RoomID:         roomID,
		SourceLanguage: sourceLanguage,
	}

	o.mu.Lock()
	r := o.startRoomLocked(roomID)
	o.mu.Unlock()

	select {
	case r.queue <- chunk:
		return nil
	default:
		o.dropped.Add(1)
		if o.col != nil {
			o.col.ChunksDropped.Inc()
		}
		log.Warn().
			Str("module", "orch").
			Str("room", string(roomID)).
			Str("participant", string(participantID)).
			Msg("audio queue full, dropping chunk")
		return fmt.Errorf("%w: room %s", core.ErrQueueFull, roomID)
	}
}

// drain is the room's single consumer: chunks leave the queue in
// arrival order. The poll timeout wakes the loop periodically so a
// stopped room is noticed even with no traffic.
func (o *Orchestrator) drain(ctx context.Context, r *room) {
	log.Info().Str("module", "orch").Str("room", string(r.id)).Msg("drain loop started")
	timer := time.NewTimer(o.cfg.PollTimeout)
	defer timer.Stop()
	for {
		timer.Reset(o.cfg.PollTimeout)
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Str("room", string(r.id)).Msg("drain loop stopped")
			return
		case <-timer.C:
			continue
		case chunk := <-r.queue:
			o.processChunk(ctx, r, chunk)
		}
	}
}

func (o *Orchestrator) processChunk(ctx context.Context, r *room, chunk core.AudioChunk) {
	start := time.Now()

	sender, ok := o.dir.Participant(r.id, chunk.ParticipantID)
	if !ok {
		// sender disconnected between enqueue and dequeue
		return
	}
	mates := o.dir.Roommates(r.id, chunk.ParticipantID)
	if len(mates) == 0 {
		return
	}

	targetSet := make(map[domain.Language]struct{}, len(mates))
	targets := make([]domain.Language, 0, len(mates))
	for _, mate := range mates {
		tgt := mate.ActiveTarget()
		if _, seen := targetSet[tgt]; seen {
			continue
		}
		targetSet[tgt] = struct{}{}
		targets = append(targets, tgt)
	}

	var voice *core.VoiceProfile
	if sender.VoiceProfileID != "" && o.profiles != nil {
		v, err := o.profiles.Lookup(ctx, sender.VoiceProfileID)
		if err != nil {
			log.Warn().Err(err).
				Str("module", "orch").
				Str("participant", string(sender.ID)).
				Str("profile", sender.VoiceProfileID).
				Msg("voice profile lookup failed, synthesizing with default voice")
		} else {
			voice = v
		}
	}

	results, err := o.pipeline.Process(ctx, chunk, targets, voice)
	if err != nil {
		log.Error().Err(err).
			Str("module", "orch").
			Str("room", string(r.id)).
			Msg("pipeline processing failed")
		return
	}

	for _, mate := range mates {
		res, ok := results[mate.ActiveTarget()]
		if !ok {
			continue
		}
		o.sink.DeliverTranslation(r.id, mate.ID, core.TranslatedAudio{
			SenderID:   chunk.ParticipantID,
			SenderName: sender.DisplayName,
			Language:   res.Language,
			Text:       res.SourceText,
			Samples:    res.Samples,
			SampleRate: res.SampleRate,
			Latency:    time.Since(chunk.Timestamp),
		})
		if o.col != nil {
			o.col.Deliveries.Inc()
		}
	}

	o.processed.Add(1)
	if o.col != nil {
		o.col.ChunksProcessed.Inc()
	}
	if elapsed := time.Since(start); o.cfg.TargetLatency > 0 && elapsed > o.cfg.TargetLatency {
		log.Warn().
			Str("module", "orch").
			Str("room", string(r.id)).
			Dur("latency", elapsed).
			Dur("target", o.cfg.TargetLatency).
			Msg("chunk latency above target")
	}
}

type Stats struct {
	ActiveRooms     int            `json:"activeRooms"`
	ProcessedChunks int64          `json:"processedChunks"`
	DroppedChunks   int64          `json:"droppedChunks"`
	QueueDepths     map[string]int `json:"queueDepths"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Stats{
		ActiveRooms:     len(o.rooms),
		ProcessedChunks: o.processed.Load(),
		DroppedChunks:   o.dropped.Load(),
		QueueDepths:     make(map[string]int, len(o.rooms)),
	}
	for id, r := range o.rooms {
		s.QueueDepths[string(id)] = len(r.queue)
	}
	return s
}
