package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP 请求计数器
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP 请求延迟直方图
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 活跃请求数
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 业务指标
	paymentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Total number of JSAPI payments requested",
		},
		[]string{"status"}, // success, failed
	)

	refundsRequestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_requested_total",
			Help: "Total number of refunds requested",
		},
		[]string{"status"}, // success, queued, failed
	)

	notificationsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wechatpay_notifications_total",
			Help: "Total number of WeChat Pay notifications received",
		},
		[]string{"kind", "outcome"},
	)
)

// PrometheusMiddleware 记录 HTTP 请求指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		// 跳过 /metrics 和 /health 端点
		path := ctx.FullPath()
		if path == "/metrics" || path == "/health" || path == "/ready" {
			ctx.Next()
			return
		}

		// 未匹配路由统一归类，避免标签基数失控
		if path == "" {
			path = "unmatched"
		}

		httpRequestsInFlight.Inc()
		start := time.Now()

		ctx.Next()

		httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(ctx.Writer.Status())

		httpRequestsTotal.WithLabelValues(ctx.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(ctx.Request.Method, path).Observe(duration)
	}
}

// MetricsHandler 返回 Prometheus 指标处理器
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}

// RecordPaymentCreated 记录下单结果
func RecordPaymentCreated(success bool) {
	paymentsCreatedTotal.WithLabelValues(successLabel(success)).Inc()
}

// RecordRefundRequested 记录退款申请结果
func RecordRefundRequested(status string) {
	refundsRequestedTotal.WithLabelValues(status).Inc()
}

// RecordNotification 记录回调通知处理结果
func RecordNotification(kind, outcome string) {
	notificationsReceivedTotal.WithLabelValues(kind, outcome).Inc()
}

func successLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
