package metrics

import (
	"ammindex/internal/domain"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ReasonOrder   = "order"
	ReasonProcess = "process"
	ReasonSink    = "sink"
)

type Metrics struct {
	BlocksProcessed prometheus.Counter
	BlocksSkipped   prometheus.Counter
	BlocksFailed    *prometheus.CounterVec
	TableChanges    *prometheus.CounterVec
	BlockDuration   prometheus.Histogram
	LastBlock       prometheus.Gauge
}

func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "ammindex"
	}
	f := promauto.With(reg)

	return &Metrics{
		BlocksProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks committed to the stores.",
		}),
		BlocksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_skipped_total",
			Help:      "Re-delivered blocks skipped by the deduper.",
		}),
		BlocksFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_failed_total",
			Help:      "Blocks rejected or failed, by reason.",
		}, []string{"reason"}),
		TableChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_changes_total",
			Help:      "Table changes emitted, by table and operation.",
		}, []string{"table", "operation"}),
		BlockDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Time to process one block, sinks included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		LastBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block",
			Help:      "Number of the last committed block.",
		}),
	}
}

func (m *Metrics) ObserveBlock(changes *domain.DatabaseChanges, took time.Duration) {
	m.BlocksProcessed.Inc()
	m.BlockDuration.Observe(took.Seconds())
	if changes == nil {
		return
	}

	m.LastBlock.Set(float64(changes.BlockNum))
	for _, tc := range changes.TableChanges {
		m.TableChanges.WithLabelValues(tc.Table, string(tc.Operation)).Inc()
	}
}

func (m *Metrics) Failed(reason string) {
	m.BlocksFailed.WithLabelValues(reason).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
