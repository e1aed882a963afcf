// Package metrics содержит Prometheus-метрики начислений и выплат.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmeshcher/marketplace-payouts/internal/model"
)

const namespace = "payouts"

// Metrics хранит счётчики бизнес-событий. Методы безопасно вызывать у nil.
type Metrics struct {
	earningsRecorded  prometheus.Counter
	grossAmount       prometheus.Counter
	platformFees      prometheus.Counter
	earningsMatured   prometheus.Counter
	payoutsRequested  prometheus.Counter
	requestedAmount   prometheus.Counter
	paidOutAmount     prometheus.Counter
	transactionFees   prometheus.Counter
	payoutTransitions *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в registerer. nil означает DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		earningsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "earnings_recorded_total",
			Help:      "Number of vendor earnings recorded from fulfilled order items.",
		}),
		grossAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "earnings_gross_minor_total",
			Help:      "Gross amount of recorded earnings in minor currency units.",
		}),
		platformFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_fees_minor_total",
			Help:      "Platform commission retained in minor currency units.",
		}),
		earningsMatured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "earnings_matured_total",
			Help:      "Number of earnings moved from pending to available.",
		}),
		payoutsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_requests_total",
			Help:      "Number of payout requests created by vendors.",
		}),
		requestedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_requested_minor_total",
			Help:      "Requested payout amount in minor currency units.",
		}),
		paidOutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_out_minor_total",
			Help:      "Net amount paid out to vendors in minor currency units.",
		}),
		transactionFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_fees_minor_total",
			Help:      "Transfer fees charged on completed payouts in minor currency units.",
		}),
		payoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_transitions_total",
			Help:      "Payout request status transitions.",
		}, []string{"from", "to"}),
	}

	registerer.MustRegister(
		m.earningsRecorded,
		m.grossAmount,
		m.platformFees,
		m.earningsMatured,
		m.payoutsRequested,
		m.requestedAmount,
		m.paidOutAmount,
		m.transactionFees,
		m.payoutTransitions,
	)
	return m
}

// EarningRecorded учитывает новое начисление.
func (m *Metrics) EarningRecorded(gross, fee int64) {
	if m == nil {
		return
	}
	m.earningsRecorded.Inc()
	m.grossAmount.Add(float64(gross))
	m.platformFees.Add(float64(fee))
}

// EarningsMatured учитывает начисления, ставшие доступными.
func (m *Metrics) EarningsMatured(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.earningsMatured.Add(float64(n))
}

// PayoutRequested учитывает новую заявку на выплату.
func (m *Metrics) PayoutRequested(amount int64) {
	if m == nil {
		return
	}
	m.payoutsRequested.Inc()
	m.requestedAmount.Add(float64(amount))
}

// PayoutSettled учитывает завершённую выплату.
func (m *Metrics) PayoutSettled(net, fee int64) {
	if m == nil {
		return
	}
	m.paidOutAmount.Add(float64(net))
	m.transactionFees.Add(float64(fee))
}

// PayoutTransition учитывает смену статуса заявки.
func (m *Metrics) PayoutTransition(from, to model.PayoutStatus) {
	if m == nil {
		return
	}
	m.payoutTransitions.WithLabelValues(string(from), string(to)).Inc()
}
