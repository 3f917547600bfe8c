package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestShopMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newShopMetricsWithRegisterer(registry)

	m.OrderCreated()
	m.OrderCreated()
	m.OrderCreateFailed()
	m.WebhookReceived("success")
	m.WebhookReceived("success")
	m.WebhookReceived("ignored")
	m.PaymentReconciled("approved")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.orderCreateFailed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.webhooksReceived.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhooksReceived.WithLabelValues("ignored")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.paymentsReconciled.WithLabelValues("approved")))
}

func TestShopMetricsReregisterReturnsExisting(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newShopMetricsWithRegisterer(registry)
	second := newShopMetricsWithRegisterer(registry)

	first.OrderCreated()
	second.OrderCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(first.ordersCreated))
}
