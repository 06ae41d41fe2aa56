package wechat

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 平台调用结果
const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeUntrusted = "untrusted"
	outcomeTransport = "transport_error"
)

var (
	platformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wechatpay_requests_total",
			Help: "Total number of WeChat Pay API calls by outcome",
		},
		[]string{"path", "outcome"},
	)

	platformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wechatpay_request_duration_seconds",
			Help:    "WeChat Pay API call latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)

	certificateRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wechatpay_certificate_refresh_total",
			Help: "Platform certificate refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	platformCertificatesHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wechatpay_platform_certificates",
			Help: "Number of platform certificates currently held",
		},
	)
)

// routeLabel 将带单号的路径折叠为模板，避免标签基数爆炸
func routeLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.HasPrefix(path, queryOrderByOutNoURL+"/"):
		if strings.HasSuffix(path, "/close") {
			return queryOrderByOutNoURL + "/{out_trade_no}/close"
		}
		return queryOrderByOutNoURL + "/{out_trade_no}"
	case strings.HasPrefix(path, refundURL+"/"):
		return refundURL + "/{out_refund_no}"
	default:
		return path
	}
}
