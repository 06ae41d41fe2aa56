package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// RequestIDHeader HTTP 请求头中的 request_id 键
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey Gin Context 中的 request_id 键
	RequestIDKey = "request_id"
)

// RequestTracingMiddleware 请求追踪中间件
// 为每个请求生成唯一的 request_id，注入到日志和响应头
func RequestTracingMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		// 网关可能已注入 request_id
		requestID := ctx.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx.Set(RequestIDKey, requestID)
		ctx.Header(RequestIDHeader, requestID)

		ctx.Next()
	}
}

// RequestLoggingMiddleware 请求日志中间件
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path
		query := ctx.Request.URL.RawQuery

		ctx.Next()

		latency := time.Since(start)
		status := ctx.Writer.Status()

		// 根据状态码选择日志级别
		var logEvent *zerolog.Event
		switch {
		case status >= 500:
			logEvent = log.Error()
		case status >= 400:
			logEvent = log.Warn()
		default:
			logEvent = log.Info()
		}

		logEvent.
			Str("request_id", GetRequestID(ctx)).
			Str("method", ctx.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", ctx.ClientIP()).
			Str("user_agent", ctx.Request.UserAgent()).
			Int("body_size", ctx.Writer.Size())

		if len(ctx.Errors) > 0 {
			logEvent.Str("errors", ctx.Errors.String())
		}

		logEvent.Msg("HTTP request")
	}
}

// GetRequestID 从 Context 获取 request_id
func GetRequestID(ctx *gin.Context) string {
	if requestID, exists := ctx.Get(RequestIDKey); exists {
		if s, ok := requestID.(string); ok {
			return s
		}
	}
	return ""
}

// LogWithRequestID 创建带有 request_id 的日志器
func LogWithRequestID(ctx *gin.Context) *zerolog.Logger {
	logger := log.With().Str("request_id", GetRequestID(ctx)).Logger()
	return &logger
}
