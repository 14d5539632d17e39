package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every prometheus series the server exports.
// Built against an explicit registerer so tests can use a fresh one.
type Collectors struct {
	StageLatency    *prometheus.HistogramVec
	ChunksProcessed prometheus.Counter
	ChunksDropped   prometheus.Counter
	ActiveRooms     prometheus.Gauge
	Participants    prometheus.Gauge
	BatchSize       *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ModelLoads      *prometheus.CounterVec
	Deliveries      prometheus.Counter
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orbis",
			Name:      "stage_latency_seconds",
			Help:      "Wall-clock latency per pipeline stage.",
			Buckets:   []float64{.01, .025, .05, .1, .15, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		ChunksProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "chunks_processed_total",
			Help:      "Audio chunks drained from room queues.",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "chunks_dropped_total",
			Help:      "Audio chunks dropped on full room queues.",
		}),
		ActiveRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbis",
			Name:      "active_rooms",
			Help:      "Rooms with a live drain loop.",
		}),
		Participants: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbis",
			Name:      "participants",
			Help:      "Connected signaling participants.",
		}),
		BatchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orbis",
			Name:      "batch_size",
			Help:      "Requests per dispatched inference batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
		}, []string{"collector"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "translation_cache_hits_total",
			Help:      "Translation cache hits.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "translation_cache_misses_total",
			Help:      "Translation cache misses.",
		}),
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "model_loads_total",
			Help:      "Model load attempts by outcome.",
		}, []string{"model", "status"}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "orbis",
			Name:      "translated_deliveries_total",
			Help:      "Translated audio messages pushed to listeners.",
		}),
	}
}
