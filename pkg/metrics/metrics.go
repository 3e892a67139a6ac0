package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DispatchEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_events_total",
			Help: "Total number of triggering events handled by the dispatch service (count)",
		},
		[]string{"status"},
	)

	DispatchProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_processing_duration_ms",
			Help:    "End-to-end decision and dispatch duration per event in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	DecisionVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_verdicts_total",
			Help: "Total number of merged per-template verdicts (count)",
		},
		[]string{"verdict"},
	)

	FilterOpinionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_filter_opinions_total",
			Help: "Total number of per-filter opinions (count)",
		},
		[]string{"filter", "verdict"},
	)

	FilterEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decision_filter_duration_ms",
			Help:    "Duration of a single filter evaluation in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"filter"},
	)

	TemplatesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_templates_skipped_total",
			Help: "Total number of candidate templates skipped without a verdict (count)",
		},
		[]string{"reason"},
	)

	DeliveriesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_deliveries_created_total",
			Help: "Total number of delivery records created (count)",
		},
		[]string{"status"},
	)

	DeferredReleasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_deferred_releases_total",
			Help: "Outcome of re-evaluating deferred deliveries (count)",
		},
		[]string{"outcome"},
	)

	ActiveTemplates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_templates",
			Help: "Number of enabled templates held in the dispatch cache (count)",
		},
	)

	IdempotencyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_checks_total",
			Help: "Total number of idempotency claims (count)",
		},
		[]string{"result"},
	)

	PreferenceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_cache_lookups_total",
			Help: "Recipient preference cache lookups (count)",
		},
		[]string{"result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"store", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"store", "database", "operation"},
	)
)

var (
	sharedOnce sync.Once
	cbOnce     sync.Once
	brokerOnce sync.Once
)

func registerShared() {
	sharedOnce.Do(func() {
		prometheus.MustRegister(FallbackUsageTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func RegisterDispatchMetrics() {
	prometheus.MustRegister(DispatchEventsTotal)
	prometheus.MustRegister(DispatchProcessingDuration)
	prometheus.MustRegister(DecisionVerdictsTotal)
	prometheus.MustRegister(FilterOpinionsTotal)
	prometheus.MustRegister(FilterEvaluationDuration)
	prometheus.MustRegister(TemplatesSkippedTotal)
	prometheus.MustRegister(DeliveriesCreatedTotal)
	prometheus.MustRegister(DeferredReleasesTotal)
	prometheus.MustRegister(ActiveTemplates)
	prometheus.MustRegister(IdempotencyChecksTotal)
	prometheus.MustRegister(PreferenceCacheTotal)
	registerShared()
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(KafkaMessagesReadTotal)
		prometheus.MustRegister(KafkaMessagesWrittenTotal)
		prometheus.MustRegister(KafkaMessageSizeBytes)
		prometheus.MustRegister(KafkaWriteDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	cbOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	registerShared()
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func ObserveDispatchDuration(duration time.Duration, status string) {
	DispatchProcessingDuration.WithLabelValues(status).Observe(ms(duration))
}

func IncVerdict(verdict string) {
	DecisionVerdictsTotal.WithLabelValues(verdict).Inc()
}

func ObserveFilterOpinion(filter, verdict string, duration time.Duration) {
	FilterOpinionsTotal.WithLabelValues(filter, verdict).Inc()
	FilterEvaluationDuration.WithLabelValues(filter).Observe(ms(duration))
}

func IncTemplateSkipped(reason string) {
	TemplatesSkippedTotal.WithLabelValues(reason).Inc()
}

func IncDeliveryCreated(status string) {
	DeliveriesCreatedTotal.WithLabelValues(status).Inc()
}

func IncDeferredRelease(outcome string) {
	DeferredReleasesTotal.WithLabelValues(outcome).Inc()
}

func SetActiveTemplates(count int) {
	ActiveTemplates.Set(float64(count))
}

func IncIdempotencyCheck(result string) {
	IdempotencyChecksTotal.WithLabelValues(result).Inc()
}

func IncPreferenceCache(result string) {
	PreferenceCacheTotal.WithLabelValues(result).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(ms(duration))
}

// ObserveQuery records one store call. Pass the error returned by the call.
func ObserveQuery(store, database, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(store, database, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(store, database, operation).Observe(ms(time.Since(start)))
}
