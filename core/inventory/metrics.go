package inventory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transferVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_transfers",
			Help: "Number of transfer requests by movement kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	transferLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "stock_ledger_transfer_latency",
			Help:       "The latency quantiles of transfer requests in milliseconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"kind"},
	)

	transferRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_transfer_retries",
			Help: "Number of times a transfer attempt was retried after a concurrency conflict",
		},
		[]string{"kind"},
	)

	movedQuantity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_moved_quantity",
			Help: "Total units recorded in the ledger by movement kind",
		},
		[]string{"kind"},
	)
)

func observeTransfer(kind MovementKind, start time.Time, res TransferResult, err error) {
	outcome := "committed"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = string(PersistenceFailure)
		}
	}
	transferVolume.WithLabelValues(string(kind), outcome).Inc()
	transferLatency.WithLabelValues(string(kind)).Observe(float64(time.Since(start).Milliseconds()))
	if err == nil {
		movedQuantity.WithLabelValues(string(kind)).Add(float64(res.TotalQuantity))
	}
}

func init() {
	prometheus.MustRegister(transferVolume)
	prometheus.MustRegister(transferLatency)
	prometheus.MustRegister(transferRetries)
	prometheus.MustRegister(movedQuantity)
}
