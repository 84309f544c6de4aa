package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceQuotesTotal counts price quote computations by outcome.
	PriceQuotesTotal *prometheus.CounterVec
	// EMIQuotesTotal counts financing quote computations by outcome.
	EMIQuotesTotal *prometheus.CounterVec
	// BuildSavesTotal counts build create/update outcomes.
	BuildSavesTotal *prometheus.CounterVec
	// OrdersCreatedTotal counts order creation outcomes.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrderNumberRetries counts order-number collisions that forced a
	// sequence re-read before insert.
	OrderNumberRetries prometheus.Counter
	// OrderStatusTransitions counts order state machine transitions.
	OrderStatusTransitions *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_quotes_total",
			Help:      "Count of price quote computations by outcome.",
		}, []string{"result"})
		EMIQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emi_quotes_total",
			Help:      "Count of financing quote computations by outcome.",
		}, []string{"result"})
		BuildSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_saves_total",
			Help:      "Count of build save outcomes.",
		}, []string{"operation", "result"})
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of order creation outcomes.",
		}, []string{"result"})
		OrderNumberRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_number_retries_total",
			Help:      "Count of order number collisions retried with a fresh sequence.",
		})
		OrderStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Count of order status transitions by target state and outcome.",
		}, []string{"to", "result"})

		reg.MustRegister(
			PriceQuotesTotal,
			EMIQuotesTotal,
			BuildSavesTotal,
			OrdersCreatedTotal,
			OrderNumberRetries,
			OrderStatusTransitions,
		)
	})
}
