package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 胶囊指标
	CapsulesCreated prometheus.Counter
	CapsulesEdited  prometheus.Counter
	CapsulesDeleted prometheus.Counter
	CapsulesSealed  prometheus.Counter

	// 图片指标
	ImagesStored prometheus.Counter
	ImageSize    prometheus.Histogram

	// 用户指标
	UsersRegistered prometheus.Counter
	UsersLoggedIn   prometheus.Counter

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	RedisConnections    prometheus.Gauge
	MemoryUsage         prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
//
// promauto 自动注册到默认注册表，重复创建会 panic，
// 进程内只应构造一次。
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timecapsule_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timecapsule_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timecapsule_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timecapsule_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 胶囊指标
		CapsulesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_capsules_created_total",
				Help: "Total number of capsules created",
			},
		),

		CapsulesEdited: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_capsules_edited_total",
				Help: "Total number of capsule edits",
			},
		),

		CapsulesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_capsules_deleted_total",
				Help: "Total number of capsules deleted",
			},
		),

		CapsulesSealed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_capsules_sealed_total",
				Help: "Total number of capsules sealed with an open date",
			},
		),

		// 图片指标
		ImagesStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_images_stored_total",
				Help: "Total number of capsule images stored",
			},
		),

		ImageSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timecapsule_image_size_bytes",
				Help:    "Capsule image size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 16),
			},
		),

		// 用户指标
		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		UsersLoggedIn: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_users_logged_in_total",
				Help: "Total number of successful logins",
			},
		),

		// 系统指标
		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "timecapsule_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "timecapsule_database_connections",
				Help: "Number of database connections",
			},
		),

		RedisConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "timecapsule_redis_connections",
				Help: "Number of Redis connections",
			},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "timecapsule_memory_usage_bytes",
				Help: "Memory usage in bytes",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timecapsule_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "timecapsule_panics_total",
				Help: "Total number of panics",
			},
		),

		// 限流指标
		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timecapsule_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"type", "key"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordCapsuleCreated 记录胶囊创建
func (m *Metrics) RecordCapsuleCreated() {
	m.CapsulesCreated.Inc()
}

// RecordCapsuleEdited 记录胶囊编辑
func (m *Metrics) RecordCapsuleEdited() {
	m.CapsulesEdited.Inc()
}

// RecordCapsuleDeleted 记录胶囊删除
func (m *Metrics) RecordCapsuleDeleted() {
	m.CapsulesDeleted.Inc()
}

// RecordCapsuleSealed 记录胶囊封存
func (m *Metrics) RecordCapsuleSealed() {
	m.CapsulesSealed.Inc()
}

// RecordImageStored 记录图片写入
func (m *Metrics) RecordImageStored(size int64) {
	m.ImagesStored.Inc()
	m.ImageSize.Observe(float64(size))
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordUserLoggedIn 记录用户登录
func (m *Metrics) RecordUserLoggedIn() {
	m.UsersLoggedIn.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType, key string) {
	m.RateLimitBlocks.WithLabelValues(limitType, key).Inc()
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateRedisConnections 更新 Redis 连接数
func (m *Metrics) UpdateRedisConnections(count int) {
	m.RedisConnections.Set(float64(count))
}

// UpdateMemoryUsage 更新内存使用
func (m *Metrics) UpdateMemoryUsage(bytes int64) {
	m.MemoryUsage.Set(float64(bytes))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
