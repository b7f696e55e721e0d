package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics aggregates the pool settlement activity exported to
// Prometheus.
type SettlementMetrics struct {
	epochsClosed      prometheus.Counter
	sharesProcessed   *prometheus.CounterVec
	amountProcessed   *prometheus.CounterVec
	unprocessedAmount prometheus.Gauge
	lossAbsorbed      *prometheus.CounterVec
	lossRecovered     *prometheus.CounterVec
	coverAssets       *prometheus.GaugeVec
	closeFailures     *prometheus.CounterVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the lazily-initialised settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			epochsClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "pool_epochs_closed_total",
				Help: "Count of settled epochs.",
			}),
			sharesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_redemption_shares_processed_total",
				Help: "LP shares redeemed at epoch close, segmented by tranche.",
			}, []string{"tranche"}),
			amountProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_redemption_amount_processed_total",
				Help: "Asset value paid out at epoch close, segmented by tranche.",
			}, []string{"tranche"}),
			unprocessedAmount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pool_redemption_unprocessed_amount",
				Help: "Asset value of redemption requests carried into the next epoch.",
			}),
			lossAbsorbed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_loss_absorbed_total",
				Help: "Loss absorbed per capital layer (covers and tranches).",
			}, []string{"layer"}),
			lossRecovered: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_loss_recovered_total",
				Help: "Loss recovery distributed per capital layer.",
			}, []string{"layer"}),
			coverAssets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pool_first_loss_cover_assets",
				Help: "Current asset value held by each first-loss cover.",
			}, []string{"cover"}),
			closeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_epoch_close_failures_total",
				Help: "Count of failed close attempts by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			settlementRegistry.epochsClosed,
			settlementRegistry.sharesProcessed,
			settlementRegistry.amountProcessed,
			settlementRegistry.unprocessedAmount,
			settlementRegistry.lossAbsorbed,
			settlementRegistry.lossRecovered,
			settlementRegistry.coverAssets,
			settlementRegistry.closeFailures,
		)
	})
	return settlementRegistry
}

// ObserveEpochClosed records one settled epoch and the value left pending.
func (m *SettlementMetrics) ObserveEpochClosed(unprocessed *big.Int) {
	if m == nil {
		return
	}
	m.epochsClosed.Inc()
	m.unprocessedAmount.Set(bigFloat(unprocessed))
}

// ObserveRedemption records settled shares and payout value for a tranche.
func (m *SettlementMetrics) ObserveRedemption(tranche string, shares, amount *big.Int) {
	if m == nil {
		return
	}
	m.sharesProcessed.WithLabelValues(tranche).Add(bigFloat(shares))
	m.amountProcessed.WithLabelValues(tranche).Add(bigFloat(amount))
}

// ObserveLossAbsorbed records loss taken by a capital layer.
func (m *SettlementMetrics) ObserveLossAbsorbed(layer string, amount *big.Int) {
	if m == nil {
		return
	}
	m.lossAbsorbed.WithLabelValues(layer).Add(bigFloat(amount))
}

// ObserveLossRecovered records recovery returned to a capital layer.
func (m *SettlementMetrics) ObserveLossRecovered(layer string, amount *big.Int) {
	if m == nil {
		return
	}
	m.lossRecovered.WithLabelValues(layer).Add(bigFloat(amount))
}

// ObserveCoverAssets records the current asset value of a first-loss cover.
func (m *SettlementMetrics) ObserveCoverAssets(cover string, assets *big.Int) {
	if m == nil {
		return
	}
	m.coverAssets.WithLabelValues(cover).Set(bigFloat(assets))
}

// ObserveCloseFailure records a failed close attempt.
func (m *SettlementMetrics) ObserveCloseFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.closeFailures.WithLabelValues(reason).Inc()
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
