// Package metrics exposes Prometheus metrics for the sale engine.
package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sale engine. Services accept a
// nil *Metrics so unit tests can skip registration.
type Metrics struct {
	PurchasesTotal    prometheus.Counter
	RefundsTotal      prometheus.Counter
	RejectionsTotal   *prometheus.CounterVec
	PresaleMintsTotal prometheus.Counter
	RemainingTokens   prometheus.Gauge
	WeiRaised         prometheus.Gauge
	Finalized         prometheus.Gauge
}

// New creates and registers all sale metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		PurchasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowdgate_purchases_total",
			Help: "Total number of accepted token purchases",
		}),
		RefundsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowdgate_refunds_total",
			Help: "Total number of partial-fill refunds issued",
		}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdgate_rejections_total",
			Help: "Rejected sale operations by reason",
		}, []string{"reason"}),
		PresaleMintsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowdgate_presale_mints_total",
			Help: "Total number of presale allocations minted",
		}),
		RemainingTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crowdgate_remaining_tokens",
			Help: "Tokens remaining in the main sale allocation",
		}),
		WeiRaised: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crowdgate_wei_raised",
			Help: "Cumulative wei accepted by the sale",
		}),
		Finalized: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crowdgate_finalized",
			Help: "1 once the sale has been finalized",
		}),
	}
}

// ObserveLedger updates the gauges from a ledger snapshot. Precision loss in
// the float conversion is acceptable for monitoring.
func (m *Metrics) ObserveLedger(remaining, raised *big.Int, finalized bool) {
	if m == nil {
		return
	}
	r, _ := new(big.Float).SetInt(remaining).Float64()
	w, _ := new(big.Float).SetInt(raised).Float64()
	m.RemainingTokens.Set(r)
	m.WeiRaised.Set(w)
	if finalized {
		m.Finalized.Set(1)
	} else {
		m.Finalized.Set(0)
	}
}

// IncPurchase counts an accepted purchase and, when refunded, the refund.
func (m *Metrics) IncPurchase(refunded bool) {
	if m == nil {
		return
	}
	m.PurchasesTotal.Inc()
	if refunded {
		m.RefundsTotal.Inc()
	}
}

// IncRejection counts a rejected operation by reason.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// AddPresaleMints counts presale allocations minted in a batch.
func (m *Metrics) AddPresaleMints(n int) {
	if m == nil {
		return
	}
	m.PresaleMintsTotal.Add(float64(n))
}
