package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddleware 为所有请求设置统一超时时间
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 不要在 goroutine 里调用 c.Next()，Gin 的 Context 不是并发安全的。
		// 这里仅通过 request context 注入超时，确保下游出站请求可被取消。
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// 如果已超时且还未写响应，兜底返回 504。
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorResponse{Error: "request timeout"})
		}
	}
}
