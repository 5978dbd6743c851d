package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stock_ledger",
			Subsystem: "db",
			Name:      "calls_total",
			Help:      "Database requests by repository function and outcome.",
		},
		[]string{"func", "outcome"},
	)

	dbDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stock_ledger",
			Subsystem: "db",
			Name:      "duration_seconds",
			Help:      "Database request latency by repository function.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"func"},
	)
)

// Metric times one repository call. Complete must be called exactly once.
type Metric struct {
	funcName string
	start    time.Time
}

func StartMetric(funcName string) *Metric {
	return &Metric{funcName: funcName, start: time.Now()}
}

func (m *Metric) Complete(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dbCalls.WithLabelValues(m.funcName, outcome).Inc()
	dbDuration.WithLabelValues(m.funcName).Observe(time.Since(m.start).Seconds())
}

func init() {
	prometheus.MustRegister(dbCalls, dbDuration)
}
