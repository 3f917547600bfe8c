package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics counts the checkout and reconciliation paths.
type ShopMetrics struct {
	ordersCreated      prometheus.Counter
	orderCreateFailed  prometheus.Counter
	webhooksReceived   *prometheus.CounterVec
	paymentsReconciled *prometheus.CounterVec
}

func NewShopMetrics() *ShopMetrics {
	return newShopMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newShopMetricsWithRegisterer(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created successfully",
		}),
		orderCreateFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_order_create_failures_total",
			Help: "Total number of order creations that rolled back",
		}),
		webhooksReceived: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payment_webhooks_total",
			Help: "Total number of payment webhooks received, by acknowledgement token",
		}, []string{"ack"}),
		paymentsReconciled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payments_reconciled_total",
			Help: "Total number of payment reconciliations, by mapped state",
		}, []string{"state"}),
	}
}

func (m *ShopMetrics) OrderCreated()      { m.ordersCreated.Inc() }
func (m *ShopMetrics) OrderCreateFailed() { m.orderCreateFailed.Inc() }

func (m *ShopMetrics) WebhookReceived(ack string) {
	m.webhooksReceived.WithLabelValues(ack).Inc()
}

func (m *ShopMetrics) PaymentReconciled(state string) {
	m.paymentsReconciled.WithLabelValues(state).Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}
