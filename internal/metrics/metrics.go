package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime channel metrics
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_realtime_events_total",
			Help: "Change events received from the realtime channel",
		},
		[]string{"type", "outcome"}, // outcome: "applied", "ignored"
	)

	RealtimeDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_realtime_dropped_total",
			Help: "Change events dropped before reaching the synchronizer",
		},
		[]string{"reason"}, // "malformed", "slow_subscriber"
	)

	RealtimePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_realtime_published_total",
			Help: "Change events published by this process",
		},
	)

	// Chat metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_messages_sent_total",
			Help: "Messages sent through the synchronizer",
		},
		[]string{"status"}, // "ok" or "error"
	)

	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_conversations_created_total",
			Help: "createConversation calls by result",
		},
		[]string{"result"}, // "existing", "created", "error"
	)

	ConversationRefetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_conversation_refetches_total",
			Help: "Full conversation refetches triggered by messages for unknown conversations",
		},
	)

	MarkReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_mark_reads_total",
			Help: "Conversations marked as read",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_store_latency_seconds",
			Help:    "Remote data source call latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"op"},
	)
)
