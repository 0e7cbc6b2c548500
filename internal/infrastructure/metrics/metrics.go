package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "facturador/internal/errors"
)

const namespace = "facturador"

// Metrics groups the collectors exported by the service. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	invoiceOperations *prometheus.CounterVec
	stockRejections   *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invoiceOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoice_operations_total",
				Help:      "Invoice create/update/delete operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		stockRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stock_rejections_total",
				Help:      "Invoice operations rejected for insufficient stock",
			},
			[]string{"operation"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.invoiceOperations, m.stockRejections, m.requests, m.requestDuration)
	return m
}

// ObserveInvoiceOperation counts one engine call under the outcome derived
// from err.
func (m *Metrics) ObserveInvoiceOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := Outcome(err)
	m.invoiceOperations.WithLabelValues(operation, outcome).Inc()
	if outcome == "insufficient_stock" {
		m.stockRejections.WithLabelValues(operation).Inc()
	}
}

func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		return "insufficient_stock"
	}
	if _, ok := apperrors.IsProductNotFoundError(err); ok {
		return "product_not_found"
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return "not_found"
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return "validation"
	}
	if _, ok := apperrors.IsForbiddenError(err); ok {
		return "forbidden"
	}
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return "deadlock"
	}
	return "error"
}

// Middleware records request count and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
