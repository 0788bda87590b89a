// Package metrics exports business and HTTP counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brand_api"

// Recorder satisfies the subscription, purchase and notify recorder
// interfaces. A nil *Recorder records nothing.
type Recorder struct {
	subscriptions   *prometheus.CounterVec
	purchases       prometheus.Counter
	revenue         prometheus.Counter
	notifications   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors on reg, which defaults to a fresh registry.
// Collectors already present on reg are reused.
func New(reg *prometheus.Registry) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	var err error
	r := &Recorder{gatherer: reg}
	if r.subscriptions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscriptions_total",
		Help:      "Subscribe calls by result (created or existing).",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if r.purchases, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_total",
		Help:      "Recorded purchases.",
	})); err != nil {
		return nil, err
	}
	if r.revenue, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchase_revenue_aud_total",
		Help:      "Sum of recorded purchase prices in AUD.",
	})); err != nil {
		return nil, err
	}
	if r.notifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Owner notification outcomes.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if r.requestDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	return r, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (r *Recorder) SubscriptionRecorded(created bool) {
	if r == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	r.subscriptions.WithLabelValues(result).Inc()
}

func (r *Recorder) PurchaseRecorded(price float64) {
	if r == nil {
		return
	}
	r.purchases.Inc()
	if price > 0 {
		r.revenue.Add(price)
	}
}

func (r *Recorder) NotificationSent()         { r.notification("sent") }
func (r *Recorder) NotificationFailed()       { r.notification("failed") }
func (r *Recorder) NotificationDeadLettered() { r.notification("dead_lettered") }

func (r *Recorder) notification(outcome string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(outcome).Inc()
}

// Middleware observes request latency labelled by the matched chi route.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.requestDuration.WithLabelValues(req.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
