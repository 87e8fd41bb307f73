package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/apperrors"
)

const namespace = "bankcards"

// Values of the 'result' label
const (
	ResultOK                = "ok"
	ResultInvalidArgument   = "invalid_argument"
	ResultNotFound          = "not_found"
	ResultForbidden         = "forbidden"
	ResultInsufficientFunds = "insufficient_funds"
	ResultInvalidState      = "invalid_state"
	ResultError             = "error"
)

// Metrics keeps card core counters in its own registry
type Metrics struct {
	registry *prometheus.Registry

	transfers        *prometheus.CounterVec
	transferredTotal prometheus.Counter
	deposits         *prometheus.CounterVec
	cardsCreated     prometheus.Counter
	cardsExpired     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer attempts by result.",
		}, []string{"result"}),
		transferredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transferred_amount_total",
			Help:      "Sum of committed transfer amounts.",
		}),
		deposits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_total",
			Help:      "Deposit attempts by result.",
		}, []string{"result"}),
		cardsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_created_total",
			Help:      "Issued cards.",
		}),
		cardsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_expired_total",
			Help:      "Cards switched to EXPIRED by the sweep.",
		}),
	}
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveTransfer(amount decimal.Decimal, err error) {
	result := Result(err)
	m.transfers.WithLabelValues(result).Inc()
	if result == ResultOK {
		f, _ := amount.Float64()
		m.transferredTotal.Add(f)
	}
}

func (m *Metrics) ObserveDeposit(err error) {
	m.deposits.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) CardCreated() {
	m.cardsCreated.Inc()
}

func (m *Metrics) CardsExpired(n int) {
	m.cardsExpired.Add(float64(n))
}

// Result maps error kind to label value
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return ResultInvalidArgument
	case errors.Is(err, apperrors.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, apperrors.ErrForbidden):
		return ResultForbidden
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return ResultInsufficientFunds
	case errors.Is(err, apperrors.ErrInvalidState):
		return ResultInvalidState
	default:
		return ResultError
	}
}
