package member

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rowsTotal      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	chunkDuration  *prometheus.HistogramVec
	rollbacksTotal *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "member_import",
			Name:      "rows_total",
			Help:      "Rows processed by the import engine, by outcome.",
		}, []string{"outcome"}),
		errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "member_import",
			Name:      "errors_total",
			Help:      "Row failures by severity and kind.",
		}, []string{"severity", "kind"}),
		chunkDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "member_import",
			Name:      "chunk_duration_seconds",
			Help:      "Time to hash and write one chunk.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
		rollbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "member_import",
			Name:      "rollbacks_total",
			Help:      "Rollback requests by result.",
		}, []string{"result"}),
	}
})

func observeRows(created, updated, failed int) {
	m := metricsSingleton()
	m.rowsTotal.WithLabelValues("created").Add(float64(created))
	m.rowsTotal.WithLabelValues("updated").Add(float64(updated))
	m.rowsTotal.WithLabelValues("failed").Add(float64(failed))
}

func observeError(c Classification) {
	m := metricsSingleton()
	if c.Critical != nil {
		m.errorsTotal.WithLabelValues("critical", string(c.Critical.Kind)).Inc()
		return
	}
	if c.Recoverable != nil {
		m.errorsTotal.WithLabelValues("recoverable", string(c.Recoverable.Kind)).Inc()
	}
}

func observeChunk(action string, seconds float64) {
	metricsSingleton().chunkDuration.WithLabelValues(action).Observe(seconds)
}

func observeRollback(result string) {
	metricsSingleton().rollbacksTotal.WithLabelValues(result).Inc()
}
