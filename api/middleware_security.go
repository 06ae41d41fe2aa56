package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware 安全响应头中间件
// 支付接口返回敏感数据，禁止缓存与嵌入
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("X-Frame-Options", "DENY")
		ctx.Header("X-Content-Type-Options", "nosniff")
		ctx.Header("Referrer-Policy", "no-referrer")
		ctx.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		ctx.Header("Cache-Control", "no-store")
		ctx.Header("Pragma", "no-cache")

		ctx.Next()
	}
}

// HSTSMiddleware 强制 HTTPS
// 在反向代理后面时依据 X-Forwarded-Proto 判断
func HSTSMiddleware(maxAge int) gin.HandlerFunc {
	value := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"
	return func(ctx *gin.Context) {
		if ctx.Request.TLS != nil || ctx.GetHeader("X-Forwarded-Proto") == "https" {
			ctx.Header("Strict-Transport-Security", value)
		}
		ctx.Next()
	}
}
