// Package metrics keeps the pipeline's rolling latency statistics and
// the prometheus collectors the HTTP surface exports.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultWindowSize = 100

// Window is a bounded rolling sample set. Old samples fall off as new
// ones arrive, so stats always describe recent behavior.
type Window struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	count   int
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{samples: make([]time.Duration, size)}
}

func (w *Window) Observe(d time.Duration) {
	w.mu.Lock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
	w.mu.Unlock()
}

type Stats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
}

func (w *Window) Snapshot() Stats {
	w.mu.Lock()
	vals := make([]time.Duration, w.count)
	if w.count < len(w.samples) {
		copy(vals, w.samples[:w.count])
	} else {
		copy(vals, w.samples)
	}
	w.mu.Unlock()

	if len(vals) == 0 {
		return Stats{}
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })

	var sum time.Duration
	for _, v := range vals {
		sum += v
	}
	idx := (95*len(vals)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return Stats{
		Count: len(vals),
		Avg:   sum / time.Duration(len(vals)),
		Min:   vals[0],
		Max:   vals[len(vals)-1],
		P95:   vals[idx],
	}
}

// Monitor tracks one Window per named stage and counts threshold
// breaches. A breach is logged, never escalated; slow is not fatal.
type Monitor struct {
	mu        sync.RWMutex
	windows   map[string]*Window
	size      int
	threshold time.Duration
	alerts    int64
}

func NewMonitor(windowSize int, threshold time.Duration) *Monitor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Monitor{
		windows:   make(map[string]*Window),
		size:      windowSize,
		threshold: threshold,
	}
}

func (m *Monitor) Observe(stage string, d time.Duration) {
	m.mu.RLock()
	w, ok := m.windows[stage]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if w, ok = m.windows[stage]; !ok {
			w = NewWindow(m.size)
			m.windows[stage] = w
		}
		m.mu.Unlock()
	}
	w.Observe(d)

	if m.threshold > 0 && d > m.threshold {
		m.mu.Lock()
		m.alerts++
		m.mu.Unlock()
		log.Warn().
			Str("module", "metrics").
			Str("stage", stage).
			Dur("latency", d).
			Dur("threshold", m.threshold).
			Msg("latency above threshold")
	}
}

func (m *Monitor) Alerts() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts
}

func (m *Monitor) Snapshot() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.windows))
	for name, w := range m.windows {
		out[name] = w.Snapshot()
	}
	return out
}
