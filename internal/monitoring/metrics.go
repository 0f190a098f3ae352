package monitoring

import (
	"net/http"
	"strconv"
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

	// 邮件管线指标
	MailsSent   prometheus.Counter
	MailsRead   prometheus.Counter
	MailsReaped prometheus.Counter

	// 外部存储指标
	BlobOpsTotal   *prometheus.CounterVec
	BlobOpDuration *prometheus.HistogramVec

	// 认证指标
	LoginsTotal      prometheus.Counter
	TokenRevocations prometheus.Counter
	WebsocketClients prometheus.Gauge

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suimail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "suimail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "suimail_mails_sent_total",
				Help: "Total number of mails sent",
			},
		),

		MailsRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "suimail_mails_read_total",
				Help: "Total number of mails marked as read",
			},
		),

		MailsReaped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "suimail_mails_reaped_total",
				Help: "Total number of orphaned mails physically removed",
			},
		),

		BlobOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suimail_blob_ops_total",
				Help: "Total number of blob store operations",
			},
			[]string{"op", "success"},
		),

		BlobOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "suimail_blob_op_duration_seconds",
				Help:    "Blob store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		LoginsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "suimail_logins_total",
				Help: "Total number of wallet logins",
			},
		),

		TokenRevocations: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "suimail_token_revocations_total",
				Help: "Total number of requests rejected by the session fence",
			},
		),

		WebsocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "suimail_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suimail_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"scope"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// MailSent 记录发送成功的邮件
func (m *Metrics) MailSent() {
	m.MailsSent.Inc()
}

// MailRead 记录标记已读的邮件
func (m *Metrics) MailRead() {
	m.MailsRead.Inc()
}

// MailReaped 记录被物理回收的邮件数
func (m *Metrics) MailReaped(count int64) {
	m.MailsReaped.Add(float64(count))
}

// ObserveBlobOp 记录一次外部存储操作
func (m *Metrics) ObserveBlobOp(op string, duration time.Duration, success bool) {
	m.BlobOpsTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
	m.BlobOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordLogin 记录一次钱包登录
func (m *Metrics) RecordLogin() {
	m.LoginsTotal.Inc()
}

// RecordTokenRevocation 记录一次会话围栏拒绝
func (m *Metrics) RecordTokenRevocation() {
	m.TokenRevocations.Inc()
}

// RecordRateLimitBlock 记录一次限流拦截
func (m *Metrics) RecordRateLimitBlock(scope string) {
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
