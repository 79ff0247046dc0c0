package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WalletMetrics records settlement activity across purchases, subscriptions, and top-ups.
type WalletMetrics struct {
	settlementDuration *prometheus.HistogramVec
	settlements        *prometheus.CounterVec
	settlementFailures *prometheus.CounterVec
	amountCents        *prometheus.CounterVec
	insufficientFunds  prometheus.Counter
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	settlementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_settlement_duration_seconds",
		Help:    "Duration of wallet settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_settlements_total",
		Help: "Completed wallet settlements by kind.",
	}, []string{"kind"})
	settlementFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_settlement_failures_total",
		Help: "Failed wallet settlements by kind.",
	}, []string{"kind"})
	amountCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_settled_amount_cents_total",
		Help: "Total settled amount in cents by kind.",
	}, []string{"kind"})
	insufficientFunds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_insufficient_funds_total",
		Help: "Debit attempts rejected for insufficient balance.",
	})
	reg.MustRegister(settlementDuration, settlements, settlementFailures, amountCents, insufficientFunds)
	return &WalletMetrics{
		settlementDuration: settlementDuration,
		settlements:        settlements,
		settlementFailures: settlementFailures,
		amountCents:        amountCents,
		insufficientFunds:  insufficientFunds,
	}
}

// ObserveSettlement records a completed settlement of the given kind.
func (w *WalletMetrics) ObserveSettlement(kind string, amountCents int64, duration time.Duration) {
	if w == nil || w.settlements == nil {
		return
	}
	label := normalizeLabel(kind)
	w.settlements.WithLabelValues(label).Inc()
	w.settlementDuration.WithLabelValues(label).Observe(duration.Seconds())
	if amountCents > 0 {
		w.amountCents.WithLabelValues(label).Add(float64(amountCents))
	}
}

// IncSettlementFailure increments the failure counter for the given kind.
func (w *WalletMetrics) IncSettlementFailure(kind string) {
	if w == nil || w.settlementFailures == nil {
		return
	}
	w.settlementFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}

// IncInsufficientFunds counts a debit rejected by the balance guard.
func (w *WalletMetrics) IncInsufficientFunds() {
	if w == nil || w.insufficientFunds == nil {
		return
	}
	w.insufficientFunds.Inc()
}
