package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	PurchasesSettled   *prometheus.CounterVec
	RefundsProcessed   prometheus.Counter
	CommissionCredited prometheus.Counter
	WebhookEvents      *prometheus.CounterVec
	VisitsTracked      prometheus.Counter
	EmailsSent         *prometheus.CounterVec
	ChatRequests       *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		PurchasesSettled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_settled_total",
				Help: "Total number of purchases settled",
			},
			[]string{"referral_source"}, // direct, storefront, ref_link
		),
		RefundsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refunds_processed_total",
			Help: "Total number of refunds processed",
		}),
		CommissionCredited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "commission_credited_total",
			Help: "Total commission amount credited to affiliates",
		}),
		WebhookEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stripe_webhook_events_total",
				Help: "Total number of Stripe webhook events received",
			},
			[]string{"consumer", "type", "status"}, // marketplace/content_studio, event type, ok/error
		),
		VisitsTracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storefront_visits_tracked_total",
			Help: "Total number of storefront visits tracked",
		}),
		EmailsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_sent_total",
				Help: "Total number of emails sent",
			},
			[]string{"status"}, // success, failed
		),
		ChatRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat relay requests",
			},
			[]string{"status"}, // ok, throttled, error
		),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not the raw path

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// RecordPurchaseSettled increments the settled purchases counter
func (m *Metrics) RecordPurchaseSettled(referralSource string, commission float64) {
	m.PurchasesSettled.WithLabelValues(referralSource).Inc()
	m.CommissionCredited.Add(commission)
}

// RecordRefund increments the refunds counter
func (m *Metrics) RecordRefund() {
	m.RefundsProcessed.Inc()
}

// RecordWebhookEvent increments the webhook events counter
func (m *Metrics) RecordWebhookEvent(consumer, eventType string, ok bool) {
	status := "error"
	if ok {
		status = "ok"
	}
	m.WebhookEvents.WithLabelValues(consumer, eventType, status).Inc()
}

// RecordVisitTracked increments the visits counter
func (m *Metrics) RecordVisitTracked() {
	m.VisitsTracked.Inc()
}

// RecordEmailSent increments the emails counter
func (m *Metrics) RecordEmailSent(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.EmailsSent.WithLabelValues(status).Inc()
}

// RecordChatRequest increments the chat requests counter
func (m *Metrics) RecordChatRequest(status string) {
	m.ChatRequests.WithLabelValues(status).Inc()
}
