// Package metrics defines the Prometheus metrics exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Interaction metrics
	InteractionsTotal          *prometheus.CounterVec
	InteractionDurationSeconds *prometheus.HistogramVec
	CommandsTotal              *prometheus.CounterVec
	CommandDurationSeconds     *prometheus.HistogramVec

	// Pagination metrics
	PaginationSessions    prometheus.Gauge
	PaginationEventsTotal *prometheus.CounterVec

	// Outbound scheduler metrics
	SchedulerQueueDepth    *prometheus.GaugeVec
	SchedulerInFlight      *prometheus.GaugeVec
	SchedulerRequestsTotal *prometheus.CounterVec
	SchedulerWaitSeconds   *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec
	RateLimiterActiveKeys   *prometheus.GaugeVec

	// Upstream API metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamDurationSeconds *prometheus.HistogramVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Storage and background job metrics
	StorageDocuments   *prometheus.GaugeVec
	JobDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		InteractionsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_interactions_total",
				Help: "Total number of interactions by kind and status",
			},
			[]string{"kind", "status"}, // kind: command, component, autocomplete; status: success, error, rejected, rate_limited
		),

		InteractionDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_interaction_duration_seconds",
				Help:    "Interaction processing duration in seconds by kind",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
			},
			[]string{"kind"},
		),

		CommandsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_commands_total",
				Help: "Total number of command handler runs by command path and status",
			},
			[]string{"command", "status"},
		),

		CommandDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_command_duration_seconds",
				Help:    "Command handler duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"command"},
		),

		PaginationSessions: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "guildbot_pagination_sessions",
				Help: "Number of active pagination sessions",
			},
		),

		PaginationEventsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_pagination_events_total",
				Help: "Pagination lifecycle and navigation events",
			},
			[]string{"event"}, // event: created, navigated, forbidden, not_found, expired, superseded
		),

		SchedulerQueueDepth: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildbot_scheduler_queue_depth",
				Help: "Requests waiting in the outbound scheduler queue",
			},
			[]string{"limiter"},
		),

		SchedulerInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildbot_scheduler_in_flight",
				Help: "Requests currently executing in the outbound scheduler",
			},
			[]string{"limiter"},
		),

		SchedulerRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_scheduler_requests_total",
				Help: "Outbound scheduler request outcomes",
			},
			[]string{"limiter", "status"}, // status: success, error, throttled, exhausted, canceled
		),

		SchedulerWaitSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_scheduler_wait_seconds",
				Help:    "Time a request spent queued before its first release",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"limiter"},
		),

		RateLimiterWaitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}, // 1ms to 5s
			},
			[]string{"limiter"}, // limiter: discord
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter"}, // limiter: user
		),

		RateLimiterActiveKeys: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildbot_rate_limiter_active_keys",
				Help: "Number of keys currently tracked by a keyed rate limiter",
			},
			[]string{"limiter"},
		),

		UpstreamRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_upstream_requests_total",
				Help: "Requests to external APIs by service and status",
			},
			[]string{"service", "status"}, // status: success, throttled, error
		),

		UpstreamDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_upstream_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"service"},
		),

		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"service"},
		),

		StorageDocuments: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guildbot_storage_documents",
				Help: "Stored documents by collection",
			},
			[]string{"collection"},
		),

		JobDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildbot_job_duration_seconds",
				Help:    "Background job duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"job"},
		),
	}

	return m
}

// RecordInteraction records a processed interaction
func (m *Metrics) RecordInteraction(kind, status string, duration float64) {
	m.InteractionsTotal.WithLabelValues(kind, status).Inc()
	m.InteractionDurationSeconds.WithLabelValues(kind).Observe(duration)
}

// RecordCommand records one command handler run
func (m *Metrics) RecordCommand(command, status string, duration float64) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDurationSeconds.WithLabelValues(command).Observe(duration)
}

// SetPaginationSessions sets the number of live pagination sessions
func (m *Metrics) SetPaginationSessions(count int) {
	m.PaginationSessions.Set(float64(count))
}

// RecordPaginationEvent records a pagination event
func (m *Metrics) RecordPaginationEvent(event string) {
	m.PaginationEventsTotal.WithLabelValues(event).Inc()
}

// SetSchedulerState sets queue depth and in-flight gauges for a scheduler
func (m *Metrics) SetSchedulerState(limiter string, queued, inFlight int) {
	m.SchedulerQueueDepth.WithLabelValues(limiter).Set(float64(queued))
	m.SchedulerInFlight.WithLabelValues(limiter).Set(float64(inFlight))
}

// RecordSchedulerRequest records the outcome of one scheduler execution
func (m *Metrics) RecordSchedulerRequest(limiter, status string) {
	m.SchedulerRequestsTotal.WithLabelValues(limiter, status).Inc()
}

// RecordSchedulerWait records how long a request waited before release
func (m *Metrics) RecordSchedulerWait(limiter string, seconds float64) {
	m.SchedulerWaitSeconds.WithLabelValues(limiter).Observe(seconds)
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiter string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiter).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterActiveKeys sets the tracked key count for a keyed limiter
func (m *Metrics) SetRateLimiterActiveKeys(limiter string, count int) {
	m.RateLimiterActiveKeys.WithLabelValues(limiter).Set(float64(count))
}

// RecordUpstreamRequest records an external API call
func (m *Metrics) RecordUpstreamRequest(service, status string, duration float64) {
	m.UpstreamRequestsTotal.WithLabelValues(service, status).Inc()
	m.UpstreamDurationSeconds.WithLabelValues(service).Observe(duration)
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(service string) {
	m.SingleflightDedupTotal.WithLabelValues(service).Inc()
}

// SetStorageDocuments sets the document count for a collection
func (m *Metrics) SetStorageDocuments(collection string, count int) {
	m.StorageDocuments.WithLabelValues(collection).Set(float64(count))
}

// RecordJob records one background job run
func (m *Metrics) RecordJob(job string, duration float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}
