package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue", "result"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Number of database queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"statement"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 打卡切换计数
	EntryToggleCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_entry_toggle_total",
			Help: "Total number of habit entry toggles",
		},
		[]string{"completed"},
	)

	// 里程碑计数
	MilestoneCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_streak_milestone_total",
			Help: "Total number of streak milestones reached",
		},
		[]string{"streak"},
	)

	// 派生视图缓存命中
	CacheLookupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_view_cache_lookup_total",
			Help: "Derived view cache lookups by result",
		},
		[]string{"view", "result"}, // result: hit, miss, error
	)

	// Outbox 发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox events published by result",
		},
		[]string{"routing_key", "result"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue, result string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue, result).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
	DBQueryDuration.WithLabelValues(statement).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementEntryToggle(completed bool) {
	label := "false"
	if completed {
		label = "true"
	}
	EntryToggleCount.WithLabelValues(label).Inc()
}

func IncrementMilestone(streak string) {
	MilestoneCount.WithLabelValues(streak).Inc()
}

func IncrementCacheLookup(view, result string) {
	CacheLookupCount.WithLabelValues(view, result).Inc()
}

func IncrementOutboxPublish(routingKey, result string) {
	OutboxPublishCount.WithLabelValues(routingKey, result).Inc()
}
