// Package metrics exposes operator-facing Prometheus counters for the
// ABCI adapter: block throughput and transaction inclusion rate.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms period-host exposes.
type Metrics struct {
	blocksFinalized prometheus.Counter
	txsPerBlock     prometheus.Histogram
	txsRejected     prometheus.Counter
}

// New registers and returns a fresh Metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "period_host",
			Name:      "blocks_finalized_total",
			Help:      "Number of blocks this validator has finalized.",
		}),
		txsPerBlock: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "period_host",
			Name:      "transactions_per_block",
			Help:      "Number of transactions included per finalized block.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		txsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "period_host",
			Name:      "transactions_rejected_total",
			Help:      "Number of transactions dropped by CheckTx or DeliverTx.",
		}),
	}
	reg.MustRegister(m.blocksFinalized, m.txsPerBlock, m.txsRejected)
	return m
}

// ObserveBlock records a finalized block's transaction count.
func (m *Metrics) ObserveBlock(txCount int) {
	m.blocksFinalized.Inc()
	m.txsPerBlock.Observe(float64(txCount))
}

// ObserveRejection records one dropped transaction.
func (m *Metrics) ObserveRejection() {
	m.txsRejected.Inc()
}

// Handler returns the promhttp handler operators scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}
