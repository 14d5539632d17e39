// Package models owns the lifecycle of the heavy inference engines:
// on-demand loading, usage tracking, and idle eviction. Engines are
// opaque handles here; the pipeline type-asserts them.
package models

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
)

type Type string

const (
	ASR Type = "asr"
	MT  Type = "mt"
	TTS Type = "tts"
)

type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusError    Status = "error"
)

// loadPollInterval is how often callers re-check a model another
// goroutine is currently loading.
const loadPollInterval = 100 * time.Millisecond

// LoadFunc builds the engine. It may take seconds; it runs with no
// registry lock held so other model types stay available.
type LoadFunc func(ctx context.Context) (any, error)

// Info is a read-only snapshot of one model's lifecycle record.
type Info struct {
	Type        Type          `json:"type"`
	Status      Status        `json:"status"`
	LoadedAt    time.Time     `json:"loadedAt,omitzero"`
	LastUsed    time.Time     `json:"lastUsed,omitzero"`
	UseCount    int64         `json:"useCount"`
	LoadTime    time.Duration `json:"loadTime"`
	MemoryDelta int64         `json:"memoryDelta"`
	Error       string        `json:"error,omitempty"`
}

type entry struct {
	mu       sync.Mutex
	load     LoadFunc
	status   Status
	handle   any
	loadedAt time.Time
	lastUsed time.Time
	useCount int64
	loadTime time.Duration
	memDelta int64
	lastErr  string
}

type Manager struct {
	mu            sync.RWMutex
	entries       map[Type]*entry
	idleTimeout   time.Duration
	checkInterval time.Duration
	col           *metrics.Collectors
}

func NewManager(idleTimeout, checkInterval time.Duration, col *metrics.Collectors) *Manager {
	return &Manager{
		entries:       make(map[Type]*entry),
		idleTimeout:   idleTimeout,
		checkInterval: checkInterval,
		col:           col,
	}
}

func (m *Manager) Register(typ Type, load LoadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[typ] = &entry{load: load, status: StatusUnloaded}
}

func (m *Manager) entry(typ Type) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[typ]
	return e, ok
}

// Load brings typ to LOADED. If another goroutine is already loading
// it, this call polls until that load settles and reports its outcome
// instead of starting a second one. force reloads even when LOADED.
func (m *Manager) Load(ctx context.Context, typ Type, force bool) error {
	e, ok := m.entry(typ)
	if !ok {
		return fmt.Errorf("%w: model %s not registered", core.ErrNotFound, typ)
	}

	waited := false
	for {
		e.mu.Lock()
		switch {
		case e.status == StatusLoaded && !force:
			e.mu.Unlock()
			return nil
		case e.status == StatusLoading:
			e.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(loadPollInterval):
			}
			waited = true
			continue
		case e.status == StatusError && waited:
			// the load we waited on failed; report it, don't retry
			msg := e.lastErr
			e.mu.Unlock()
			return fmt.Errorf("%w (%s): %s", core.ErrModelLoad, typ, msg)
		}
		e.status = StatusLoading
		e.mu.Unlock()
		break
	}

	log.Info().Str("module", "models").Str("model", string(typ)).Msg("loading model")

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	before := int64(ms.HeapAlloc)
	start := time.Now()

	handle, err := e.load(ctx)

	took := time.Since(start)
	runtime.ReadMemStats(&ms)
	delta := int64(ms.HeapAlloc) - before

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status = StatusError
		e.lastErr = err.Error()
		e.handle = nil
		if m.col != nil {
			m.col.ModelLoads.WithLabelValues(string(typ), "error").Inc()
		}
		log.Error().Err(err).Str("module", "models").Str("model", string(typ)).Msg("model load failed")
		return fmt.Errorf("%w (%s): %v", core.ErrModelLoad, typ, err)
	}

	now := time.Now()
	e.handle = handle
	e.status = StatusLoaded
	e.loadedAt = now
	e.lastUsed = now
	e.loadTime = took
	e.memDelta = delta
	e.lastErr = ""
	if m.col != nil {
		m.col.ModelLoads.WithLabelValues(string(typ), "ok").Inc()
	}
	log.Info().
		Str("module", "models").
		Str("model", string(typ)).
		Dur("load_time", took).
		Int64("memory_delta", delta).
		Msg("model loaded")
	return nil
}

// EnsureLoaded is the hot-path call: load if necessary and mark usage.
func (m *Manager) EnsureLoaded(ctx context.Context, typ Type) (any, error) {
	for {
		if err := m.Load(ctx, typ, false); err != nil {
			return nil, err
		}
		e, ok := m.entry(typ)
		if !ok {
			return nil, fmt.Errorf("%w: model %s not registered", core.ErrNotFound, typ)
		}
		e.mu.Lock()
		if e.status == StatusLoaded && e.handle != nil {
			e.lastUsed = time.Now()
			e.useCount++
			h := e.handle
			e.mu.Unlock()
			return h, nil
		}
		e.mu.Unlock()
		// evicted between Load and use; go again
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Unload drops typ's engine. Not-LOADED states are a no-op; the call
// reports whether the model ended up unloaded.
func (m *Manager) Unload(typ Type) bool {
	e, ok := m.entry(typ)
	if !ok {
		return true
	}
	e.mu.Lock()
	if e.status != StatusLoaded {
		e.mu.Unlock()
		return true
	}
	freed := e.memDelta
	e.handle = nil
	e.status = StatusUnloaded
	e.memDelta = 0
	e.mu.Unlock()

	runtime.GC()
	log.Info().
		Str("module", "models").
		Str("model", string(typ)).
		Int64("freed_bytes", freed).
		Msg("model unloaded")
	return true
}

func (m *Manager) UnloadAll() {
	m.mu.RLock()
	types := make([]Type, 0, len(m.entries))
	for typ := range m.entries {
		types = append(types, typ)
	}
	m.mu.RUnlock()
	for _, typ := range types {
		m.Unload(typ)
	}
}

func (m *Manager) Status(typ Type) Status {
	e, ok := m.entry(typ)
	if !ok {
		return StatusUnloaded
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// RunEviction unloads models idle longer than idleTimeout, checking
// every checkInterval. Blocks until ctx is done; run it in its own
// goroutine. The first request after an eviction pays the reload cost.
func (m *Manager) RunEviction(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	log.Info().
		Str("module", "models").
		Dur("idle_timeout", m.idleTimeout).
		Dur("check_interval", m.checkInterval).
		Msg("eviction loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "models").Msg("eviction loop stopped")
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	m.mu.RLock()
	snap := make(map[Type]*entry, len(m.entries))
	for typ, e := range m.entries {
		snap[typ] = e
	}
	m.mu.RUnlock()

	for typ, e := range snap {
		e.mu.Lock()
		idle := e.status == StatusLoaded && time.Since(e.lastUsed) > m.idleTimeout
		e.mu.Unlock()
		if idle {
			log.Info().Str("module", "models").Str("model", string(typ)).Msg("evicting idle model")
			m.Unload(typ)
		}
	}
}

// Snapshot returns one Info per registered model, sorted by type.
func (m *Manager) Snapshot() []Info {
	m.mu.RLock()
	types := make([]Type, 0, len(m.entries))
	for typ := range m.entries {
		types = append(types, typ)
	}
	m.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	out := make([]Info, 0, len(types))
	for _, typ := range types {
		e, ok := m.entry(typ)
		if !ok {
			continue
		}
		e.mu.Lock()
		out = append(out, Info{
			Type:        typ,
			Status:      e.status,
			LoadedAt:    e.loadedAt,
			LastUsed:    e.lastUsed,
			UseCount:    e.useCount,
			LoadTime:    e.loadTime,
			MemoryDelta: e.memDelta,
			Error:       e.lastErr,
		})
		e.mu.Unlock()
	}
	return out
}
