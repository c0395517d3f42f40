// Package metrics exposes Prometheus collectors for the streakd service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streakd"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "habits",
			Name:      "completions_total",
			Help:      "Habit completions by source (interactive or auto).",
		},
		[]string{"source"},
	)

	rejectedCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "habits",
			Name:      "already_completed_total",
			Help:      "Completion requests rejected because the habit was already completed that day.",
		},
	)

	achievementUnlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "unlocked_total",
			Help:      "Achievements unlocked by metric kind.",
		},
		[]string{"kind"},
	)

	achievementRaces = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "achievements",
			Name:      "lost_insert_total",
			Help:      "Achievement inserts skipped because a concurrent request already unlocked it.",
		},
	)

	tokensAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "awarded_total",
			Help:      "Total tokens awarded.",
		},
	)

	realtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Open realtime push channels.",
		},
	)

	realtimeEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "evictions_total",
			Help:      "Push channels evicted during publish.",
		},
		[]string{"reason"},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Events published by type.",
		},
		[]string{"type"},
	)

	rolloverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollover",
			Name:      "owner_runs_total",
			Help:      "Per-owner auto-complete sweeps run by the rollover job.",
		},
		[]string{"success"},
	)

	rolloverDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollover",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full rollover run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		completions,
		rejectedCompletions,
		achievementUnlocks,
		achievementRaces,
		tokensAwarded,
		realtimeSubscribers,
		realtimeEvictions,
		realtimeEvents,
		rolloverRuns,
		rolloverDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. The route template is used
// as the path label so ids do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordCompletion counts a completion from source ("interactive" or "auto").
func RecordCompletion(source string) {
	completions.WithLabelValues(source).Inc()
}

// RecordAlreadyCompleted counts a rejected same-day completion.
func RecordAlreadyCompleted() {
	rejectedCompletions.Inc()
}

// RecordUnlock counts an inserted achievement.
func RecordUnlock(kind string) {
	achievementUnlocks.WithLabelValues(kind).Inc()
}

// RecordLostUnlockRace counts an achievement insert that lost to a concurrent request.
func RecordLostUnlockRace() {
	achievementRaces.Inc()
}

// RecordTokens counts awarded tokens.
func RecordTokens(n int) {
	if n > 0 {
		tokensAwarded.Add(float64(n))
	}
}

// SubscriberAdded and SubscriberRemoved track open push channels.
func SubscriberAdded()   { realtimeSubscribers.Inc() }
func SubscriberRemoved() { realtimeSubscribers.Dec() }

// RecordEviction counts a push channel dropped during publish.
func RecordEviction(reason string) {
	realtimeEvictions.WithLabelValues(reason).Inc()
}

// RecordPublish counts an event published to an owner.
func RecordPublish(eventType string) {
	realtimeEvents.WithLabelValues(eventType).Inc()
}

// RecordRolloverOwner counts one owner's sweep inside a rollover run.
func RecordRolloverOwner(success bool) {
	rolloverRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveRollover records the duration of a rollover run.
func ObserveRollover(d time.Duration) {
	rolloverDuration.Observe(d.Seconds())
}
