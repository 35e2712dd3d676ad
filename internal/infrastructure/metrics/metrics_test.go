package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SalesAndTransfers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSale("ok", 5000)
	m.ObserveSale("ok", 100)
	m.ObserveSale("INSUFFICIENT_STOCK", 0)
	m.ObserveTransfer("ok", 3)
	m.ObservePayment("", 10)
	m.ObserveTxRetry()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sales.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sales.WithLabelValues("INSUFFICIENT_STOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txRetries))

	count, err := testutil.GatherAndCount(reg, "stockline_sale_amount_cents")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_HTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("POST", "/api/v1/sales", 201, 20*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "stockline_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSale("ok", 1)
		m.ObserveTxRetry()
		New(nil).ObserveTransfer("ok", 1)
		New(nil).ObserveRequest("GET", "/", 200, time.Millisecond)
	})
}
