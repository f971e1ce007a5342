package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foxyhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foxyhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	otpEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foxyhub",
			Subsystem: "otp",
			Name:      "events_total",
			Help:      "OTP challenges issued and validation outcomes.",
		},
		[]string{"outcome"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "foxyhub",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders persisted.",
		},
	)

	paymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foxyhub",
			Subsystem: "payments",
			Name:      "transitions_total",
			Help:      "Payment status transitions by method and status.",
		},
		[]string{"method", "status"},
	)

	fulfillmentItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foxyhub",
			Subsystem: "fulfillment",
			Name:      "items_total",
			Help:      "Fulfilled order items by product type and outcome.",
		},
		[]string{"product_type", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		otpEvents,
		ordersCreated,
		paymentTransitions,
		fulfillmentItems,
	)
}

// Middleware records request counts and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Render the error now so the recorded status is the one sent.
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		path := c.Route().Path
		status := c.Response().StatusCode()
		httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return nil
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// RecordOTP counts an OTP event such as issued, verified or expired.
func RecordOTP(outcome string) {
	otpEvents.WithLabelValues(outcome).Inc()
}

// RecordOrderCreated counts a persisted order.
func RecordOrderCreated() {
	ordersCreated.Inc()
}

// RecordPaymentTransition counts a payment moving into status.
func RecordPaymentTransition(method, status string) {
	paymentTransitions.WithLabelValues(method, status).Inc()
}

// RecordFulfillment counts one processed order item.
func RecordFulfillment(productType string, ok bool) {
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	fulfillmentItems.WithLabelValues(productType, outcome).Inc()
}
