package metrics

import "github.com/prometheus/client_golang/prometheus"

// BasketMetrics counts basket store actions and auth handshake signals.
type BasketMetrics struct {
	actions *prometheus.CounterVec
	signals *prometheus.CounterVec
}

// NewBasketMetrics registers the basket metrics on the provided registerer.
func NewBasketMetrics(reg prometheus.Registerer) *BasketMetrics {
	if reg == nil {
		return &BasketMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_actions_total",
		Help: "Basket store actions by outcome.",
	}, []string{"action", "outcome"})
	signals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signals_total",
		Help: "Cross-window auth signals by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(actions, signals)
	return &BasketMetrics{
		actions: actions,
		signals: signals,
	}
}

// IncAction counts one basket action outcome (ok, failed, rolled_back, awaiting_auth).
func (b *BasketMetrics) IncAction(action, outcome string) {
	if b == nil || b.actions == nil {
		return
	}
	b.actions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// IncSignal counts one delivered auth message by outcome.
func (b *BasketMetrics) IncSignal(outcome string) {
	if b == nil || b.signals == nil {
		return
	}
	b.signals.WithLabelValues(normalizeLabel(outcome)).Inc()
}
