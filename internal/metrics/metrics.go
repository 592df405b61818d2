package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planzo_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planzo_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Socket metrics
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "planzo_socket_connections",
			Help: "Open gateway socket connections",
		},
	)

	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planzo_socket_events_total",
			Help: "Socket events received, by event name",
		},
		[]string{"event"},
	)

	SocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planzo_socket_dropped_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planzo_messages_sent_total",
			Help: "Total chat messages persisted",
		},
	)

	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planzo_messages_seen_total",
			Help: "Total chat messages marked seen",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planzo_notifications_created_total",
			Help: "Total notifications created",
		},
	)
)

// Middleware records request counts and latency. Paths are the matched route
// pattern so ids do not explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
