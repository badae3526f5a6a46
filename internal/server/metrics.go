package server

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/headline-goat/ab-report/internal/experiment"
)

type metrics struct {
	// reportsTotal counts report computations by outcome
	reportsTotal *prometheus.CounterVec

	// reportDuration tracks load + analysis latency
	reportDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		reportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "abr_reports_total",
			Help: "Total experiment reports computed by status",
		}, []string{"status"}),
		reportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "abr_report_duration_seconds",
			Help:    "Report computation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
	}
}

func (m *metrics) observe(start time.Time, err error) {
	m.reportDuration.Observe(time.Since(start).Seconds())
	m.reportsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	var schemaErr *experiment.SchemaError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &schemaErr):
		return "schema_error"
	default:
		return "error"
	}
}
