package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(10)
	assert.Equal(t, Stats{}, w.Snapshot())
}

func TestWindowStats(t *testing.T) {
	w := NewWindow(10)
	for _, ms := range []int{10, 20, 30, 40} {
		w.Observe(time.Duration(ms) * time.Millisecond)
	}
	s := w.Snapshot()
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 25*time.Millisecond, s.Avg)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 40*time.Millisecond, s.Max)
	assert.Equal(t, 40*time.Millisecond, s.P95)
}

func TestWindowRolls(t *testing.T) {
	w := NewWindow(3)
	for _, ms := range []int{100, 1, 2, 3} {
		w.Observe(time.Duration(ms) * time.Millisecond)
	}
	s := w.Snapshot()
	// the 100ms outlier has rolled off
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 3*time.Millisecond, s.Max)
	assert.Equal(t, 2*time.Millisecond, s.Avg)
}

func TestWindowP95FullWindow(t *testing.T) {
	w := NewWindow(100)
	for i := 1; i <= 100; i++ {
		w.Observe(time.Duration(i) * time.Millisecond)
	}
	s := w.Snapshot()
	assert.Equal(t, 95*time.Millisecond, s.P95)
}

func TestMonitorAlerts(t *testing.T) {
	m := NewMonitor(10, 150*time.Millisecond)
	m.Observe("asr", 50*time.Millisecond)
	m.Observe("asr", 200*time.Millisecond)
	m.Observe("mt", 300*time.Millisecond)

	assert.Equal(t, int64(2), m.Alerts())

	snap := m.Snapshot()
	assert.Equal(t, 2, snap["asr"].Count)
	assert.Equal(t, 1, snap["mt"].Count)
}

func TestMonitorZeroThresholdNeverAlerts(t *testing.T) {
	m := NewMonitor(10, 0)
	m.Observe("tts", time.Hour)
	assert.Equal(t, int64(0), m.Alerts())
}
