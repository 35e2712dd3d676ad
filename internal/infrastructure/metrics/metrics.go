// Package metrics exports business and transport counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stockline/internal/core/types"
)

// Metrics implements the sale, transfer and transaction observers.
// A nil *Metrics and a Metrics built without a registerer are no-ops.
type Metrics struct {
	sales        *prometheus.CounterVec
	saleAmount   prometheus.Histogram
	payments     *prometheus.CounterVec
	transfers    *prometheus.CounterVec
	transferRows prometheus.Histogram
	txRetries    prometheus.Counter
	httpDuration *prometheus.HistogramVec
}

// New registers the stockline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_sales_total",
			Help: "Sale creation attempts by result code.",
		}, []string{"result"}),
		saleAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockline_sale_amount_cents",
			Help:    "Totals of created sales in minor units.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_payments_total",
			Help: "Payments added to existing sales by result code.",
		}, []string{"result"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockline_transfers_total",
			Help: "Transfer attempts by result code.",
		}, []string{"result"}),
		transferRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockline_transfer_lines",
			Help:    "Lines per completed transfer.",
			Buckets: []float64{1, 2, 5, 10, 25, 50},
		}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockline_tx_retries_total",
			Help: "Transactions replayed after serialization failures or deadlocks.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockline_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.sales, m.saleAmount, m.payments, m.transfers, m.transferRows, m.txRetries, m.httpDuration)
	return m
}

// ObserveSale counts a sale attempt. total is recorded for successes only.
func (m *Metrics) ObserveSale(result string, total types.MinorUnits) {
	if m == nil || m.sales == nil {
		return
	}
	m.sales.WithLabelValues(normalizeLabel(result)).Inc()
	if result == "ok" {
		m.saleAmount.Observe(float64(total))
	}
}

func (m *Metrics) ObservePayment(result string, _ types.MinorUnits) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveTransfer(result string, lines int) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(result)).Inc()
	if result == "ok" {
		m.transferRows.Observe(float64(lines))
	}
}

// ObserveTxRetry implements postgres.RetryObserver.
func (m *Metrics) ObserveTxRetry() {
	if m == nil || m.txRetries == nil {
		return
	}
	m.txRetries.Inc()
}

// ObserveRequest records one HTTP request. route is the gin route template.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
