package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustealth_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edustealth_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Message lifecycle metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustealth_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"}, // "text" or "image"
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edustealth_messages_read_total",
			Help: "Total messages marked read",
		},
	)

	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustealth_messages_deleted_total",
			Help: "Total messages deleted",
		},
		[]string{"reason"}, // "sender" or "expired"
	)

	// Socket metrics
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edustealth_socket_connections",
			Help: "Currently open socket connections",
		},
	)

	SocketEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edustealth_socket_events_dropped_total",
			Help: "Events dropped because a client send buffer was full",
		},
	)

	// Sweeper metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edustealth_sweep_duration_seconds",
			Help:    "Expiry sweep duration",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "edustealth_sweep_errors_total",
			Help: "Total sweep passes that failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustealth_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edustealth_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
