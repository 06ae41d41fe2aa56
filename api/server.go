package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/merrydance/paygate/util"
	"github.com/merrydance/paygate/wechat"
	"github.com/merrydance/paygate/worker"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Server serves HTTP requests for the payment gateway.
type Server struct {
	config             util.Config
	paymentClient      wechat.PaymentClientInterface      // 小程序直连支付
	notificationParser wechat.NotificationParserInterface // 支付/退款回调
	certs              *wechat.CertificateStore           // 平台证书（就绪检查用，可为空）
	taskDistributor    worker.TaskDistributor
	rateLimiter        *RateLimiter
	router             *gin.Engine
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(
	config util.Config,
	paymentClient wechat.PaymentClientInterface,
	notificationParser wechat.NotificationParserInterface,
	certs *wechat.CertificateStore,
	taskDistributor worker.TaskDistributor,
) (*Server, error) {
	if paymentClient == nil {
		return nil, errors.New("payment client is required")
	}
	if notificationParser == nil {
		return nil, errors.New("notification parser is required")
	}

	server := &Server{
		config:             config,
		paymentClient:      paymentClient,
		notificationParser: notificationParser,
		certs:              certs,
		taskDistributor:    taskDistributor,
	}

	server.setupRouter()
	return server, nil
}

func (server *Server) setupRouter() {
	if server.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	registerCustomValidators()

	router.Use(SecurityHeadersMiddleware())
	if server.config.Environment == "production" {
		router.Use(HSTSMiddleware(31536000))
	}

	// 请求追踪（X-Request-ID）与访问日志
	router.Use(RequestTracingMiddleware())
	router.Use(RequestLoggingMiddleware())

	router.Use(PrometheusMiddleware())
	router.Use(ResponseEnvelopeMiddleware())

	// 出站请求自带连接/读取超时，这里只兜底
	router.Use(TimeoutMiddleware(30 * time.Second))

	router.GET("/metrics", MetricsHandler())
	router.GET("/health", server.healthCheck)
	router.GET("/ready", server.readinessCheck)

	limiterConfig := DefaultRateLimiterConfig()
	if server.config.RateLimitRPS > 0 {
		limiterConfig.IPRateLimit = rate.Limit(server.config.RateLimitRPS)
	}
	if server.config.RateLimitBurst > 0 {
		limiterConfig.IPBurstLimit = server.config.RateLimitBurst
	}
	server.rateLimiter = NewRateLimiter(limiterConfig)

	v1 := router.Group("/v1")

	// ==================== 支付 ====================
	payments := v1.Group("/payments", server.rateLimiter.Middleware())
	{
		payments.POST("/jsapi", server.createJSAPIPayment)
		payments.GET("/:out_trade_no", server.getPayment)
		payments.POST("/:out_trade_no/close", server.closePayment)
	}

	// ==================== 退款 ====================
	refunds := v1.Group("/refunds", server.rateLimiter.Middleware())
	{
		refunds.POST("", server.createRefund)
		refunds.GET("/:out_refund_no", server.getRefund)
	}

	// ==================== 回调（无需限流，微信侧会重试） ====================
	webhooks := v1.Group("/webhooks/wechat-pay")
	{
		webhooks.POST("/notify", server.handlePaymentNotify)
		webhooks.POST("/refund-notify", server.handleRefundNotify)
	}

	server.router = router
}

// Handler returns the root http.Handler.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Close releases background resources held by middleware.
func (server *Server) Close() {
	if server.rateLimiter != nil {
		server.rateLimiter.Stop()
	}
}

// healthCheck 存活检查
// GET /health
func (server *Server) healthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "paygate",
	})
}

// readinessCheck 就绪检查：至少持有一张有效平台证书
// GET /ready
func (server *Server) readinessCheck(ctx *gin.Context) {
	if server.certs == nil || server.certs.Len() == 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "no platform certificate loaded",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"service":      "paygate",
		"certificates": server.certs.Serials(),
	})
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error        string `json:"error" example:"error message"`
	PlatformCode string `json:"platform_code,omitempty" example:"ORDERPAID"`
}

// errorResponse creates an error response.
// For 4xx client errors: returns the actual error message
// For 5xx server errors: use internalError() instead to avoid leaking details
func errorResponse(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error()}
}

// internalError logs the actual error and returns a safe generic message.
func internalError(ctx *gin.Context, err error) ErrorResponse {
	_ = ctx.Error(err)

	evt := log.Error().
		Err(err).
		Str("request_id", GetRequestID(ctx)).
		Str("path", ctx.Request.URL.Path).
		Str("method", ctx.Request.Method)

	var transportErr *wechat.TransportError
	if errors.As(err, &transportErr) {
		evt = evt.
			Int("upstream_status", transportErr.StatusCode).
			Bool("upstream_timeout", transportErr.Timeout)
	}
	var trustErr *wechat.ResponseTrustError
	if errors.As(err, &trustErr) {
		evt = evt.Str("wechatpay_serial", trustErr.Serial)
	}

	evt.Msg("internal error")

	return ErrorResponse{Error: "internal server error"}
}

// respondWechatError 将支付核心的错误映射为 HTTP 状态码
func respondWechatError(ctx *gin.Context, err error) {
	var (
		wxErr        *wechat.WechatPayError
		transportErr *wechat.TransportError
		trustErr     *wechat.ResponseTrustError
	)

	switch {
	case errors.Is(err, wechat.ErrInvalidAmount):
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
	case errors.As(err, &wxErr):
		status := http.StatusUnprocessableEntity
		if wxErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		ctx.JSON(status, ErrorResponse{Error: wxErr.Message, PlatformCode: wxErr.Code})
	case errors.As(err, &transportErr):
		if transportErr.Timeout {
			ctx.JSON(http.StatusGatewayTimeout, internalError(ctx, err))
			return
		}
		ctx.JSON(http.StatusBadGateway, internalError(ctx, err))
	case errors.As(err, &trustErr), errors.Is(err, wechat.ErrMissingPrepayID):
		ctx.JSON(http.StatusBadGateway, internalError(ctx, err))
	default:
		ctx.JSON(http.StatusInternalServerError, internalError(ctx, err))
	}
}
