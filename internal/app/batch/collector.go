// Package batch groups concurrent inference requests into windows so
// engines see fewer, larger calls. A window closes when it reaches
// maxSize or maxWait after its first request, whichever comes first;
// an empty queue collects nothing.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
)

const queueCapacity = 256

type outcome[Res any] struct {
	val Res
	err error
}

type request[Req, Res any] struct {
	in  Req
	out chan outcome[Res]
}

type Stats struct {
	Batches  int64   `json:"batches"`
	Requests int64   `json:"requests"`
	LastSize int     `json:"lastSize"`
	AvgSize  float64 `json:"avgSize"`
}

// Collector is the generic windowed batcher. Submit blocks the caller
// until its request's batch has been dispatched; that blocking is the
// collector's backpressure policy.
type Collector[Req, Res any] struct {
	name     string
	maxSize  int
	maxWait  time.Duration
	queue    chan *request[Req, Res]
	dispatch func(ctx context.Context, batch []*request[Req, Res])
	col      *metrics.Collectors

	mu       sync.Mutex
	batches  int64
	requests int64
	lastSize int
}

// New builds a collector whose batches are processed one request at a
// time. A request's failure rejects only its own future.
func New[Req, Res any](
	name string,
	maxSize int,
	maxWait time.Duration,
	col *metrics.Collectors,
	fn func(ctx context.Context, in Req) (Res, error),
) *Collector[Req, Res] {
	c := newCollector[Req, Res](name, maxSize, maxWait, col)
	c.dispatch = func(ctx context.Context, batch []*request[Req, Res]) {
		for _, r := range batch {
			val, err := fn(ctx, r.in)
			r.out <- outcome[Res]{val, err}
		}
	}
	return c
}

// NewGrouped builds a collector that splits each batch by key and
// dispatches every group in one engine call. Failure isolation is per
// group: a failed group call rejects that group's futures only.
func NewGrouped[Req, Res any, K comparable](
	name string,
	maxSize int,
	maxWait time.Duration,
	col *metrics.Collectors,
	key func(Req) K,
	fn func(ctx context.Context, k K, ins []Req) ([]Res, error),
) *Collector[Req, Res] {
	c := newCollector[Req, Res](name, maxSize, maxWait, col)
	c.dispatch = func(ctx context.Context, batch []*request[Req, Res]) {
		order := make([]K, 0, len(batch))
		groups := make(map[K][]*request[Req, Res])
		for _, r := range batch {
			k := key(r.in)
			if _, ok := groups[k]; !ok {
				order = append(order, k)
			}
			groups[k] = append(groups[k], r)
		}
		for _, k := range order {
			reqs := groups[k]
			ins := make([]Req, len(reqs))
			for i, r := range reqs {
				ins[i] = r.in
			}
			vals, err := fn(ctx, k, ins)
			if err == nil && len(vals) != len(reqs) {
				err = fmt.Errorf("batch %s: group returned %d results for %d requests", name, len(vals), len(reqs))
			}
			for i, r := range reqs {
				if err != nil {
					var zero Res
					r.out <- outcome[Res]{zero, err}
					continue
				}
				r.out <- outcome[Res]{vals[i], nil}
			}
		}
	}
	return c
}

func newCollector[Req, Res any](name string, maxSize int, maxWait time.Duration, col *metrics.Collectors) *Collector[Req, Res] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Collector[Req, Res]{
		name:    name,
		maxSize: maxSize,
		maxWait: maxWait,
		queue:   make(chan *request[Req, Res], queueCapacity),
		col:     col,
	}
}

// Start spawns the collection loop. It runs until ctx is done; queued
// requests at that point are rejected with ctx's error.
func (c *Collector[Req, Res]) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Submit enqueues in and waits for its result.
func (c *Collector[Req, Res]) Submit(ctx context.Context, in Req) (Res, error) {
	r := &request[Req, Res]{in: in, out: make(chan outcome[Res], 1)}
	select {
	case c.queue <- r:
	case <-ctx.Done():
		var zero Res
		return zero, ctx.Err()
	}
	select {
	case o := <-r.out:
		return o.val, o.err
	case <-ctx.Done():
		var zero Res
		return zero, ctx.Err()
	}
}

func (c *Collector[Req, Res]) loop(ctx context.Context) {
	log.Info().
		Str("module", "batch").
		Str("collector", c.name).
		Int("max_size", c.maxSize).
		Dur("max_wait", c.maxWait).
		Msg("collector started")
	for {
		select {
		case <-ctx.Done():
			c.reject(ctx.Err())
			log.Info().Str("module", "batch").Str("collector", c.name).Msg("collector stopped")
			return
		default:
		}
		var first *request[Req, Res]
		select {
		case <-ctx.Done():
			c.reject(ctx.Err())
			log.Info().Str("module", "batch").Str("collector", c.name).Msg("collector stopped")
			return
		case first = <-c.queue:
		}
		batch := c.collect(ctx, first)
		c.record(len(batch))
		c.dispatch(ctx, batch)
	}
}

// collect gathers up to maxSize requests, waiting at most maxWait
// measured from the first request's arrival.
func (c *Collector[Req, Res]) collect(ctx context.Context, first *request[Req, Res]) []*request[Req, Res] {
	batch := []*request[Req, Res]{first}
	timer := time.NewTimer(c.maxWait)
	defer timer.Stop()
	for len(batch) < c.maxSize {
		select {
		case <-timer.C:
			return batch
		case r := <-c.queue:
			batch = append(batch, r)
		case <-ctx.Done():
			return batch
		}
	}
	return batch
}

func (c *Collector[Req, Res]) reject(err error) {
	for {
		select {
		case r := <-c.queue:
			var zero Res
			r.out <- outcome[Res]{zero, err}
		default:
			return
		}
	}
}

func (c *Collector[Req, Res]) record(size int) {
	c.mu.Lock()
	c.batches++
	c.requests += int64(size)
	c.lastSize = size
	c.mu.Unlock()
	if c.col != nil {
		c.col.BatchSize.WithLabelValues(c.name).Observe(float64(size))
	}
}

func (c *Collector[Req, Res]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Batches: c.batches, Requests: c.requests, LastSize: c.lastSize}
	if c.batches > 0 {
		s.AvgSize = float64(c.requests) / float64(c.batches)
	}
	return s
}
