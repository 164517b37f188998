package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds optional Prometheus collectors.  A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Labels: event, result
	Transitions *prometheus.CounterVec
	// Labels: tier, result
	Checkouts *prometheus.CounterVec
	// Labels: operation, result
	GatewayCalls *prometheus.CounterVec
	// Labels: status
	Payouts *prometheus.CounterVec
	// Labels: type
	LedgerCents *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotta_booking_transitions_total",
			Help: "Booking lifecycle transitions by event and result.",
		}, []string{"event", "result"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotta_checkouts_total",
			Help: "Bookings created with payment by client tier and result.",
		}, []string{"tier", "result"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotta_gateway_calls_total",
			Help: "Calls to the payment gateway by operation and result.",
		}, []string{"operation", "result"}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotta_payouts_total",
			Help: "Payout requests by final status.",
		}, []string{"status"}),
		LedgerCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotta_ledger_written_cents_total",
			Help: "Absolute amount written to the ledger by transaction type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Checkouts, m.GatewayCalls, m.Payouts, m.LedgerCents)
	}
	return m
}

func (m *Metrics) IncTransition(event, result string) {
	if m == nil || m.Transitions == nil {
		return
	}
	m.Transitions.WithLabelValues(event, result).Inc()
}

func (m *Metrics) IncCheckout(tier, result string) {
	if m == nil || m.Checkouts == nil {
		return
	}
	m.Checkouts.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) IncGateway(op string, err error) {
	if m == nil || m.GatewayCalls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayCalls.WithLabelValues(op, result).Inc()
}

func (m *Metrics) IncPayout(status string) {
	if m == nil || m.Payouts == nil {
		return
	}
	m.Payouts.WithLabelValues(status).Inc()
}

func (m *Metrics) AddLedger(typ string, cents int64) {
	if m == nil || m.LedgerCents == nil {
		return
	}
	if cents < 0 {
		cents = -cents
	}
	m.LedgerCents.WithLabelValues(typ).Add(float64(cents))
}
