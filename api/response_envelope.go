package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ==================== 统一响应格式 ====================

// APIResponse 统一响应：{code, message, platform_code, data}
//
// 成功时 code=0，data 为处理器原始应答。
// 失败时 code 为 HTTP 状态码乘 100；微信支付拒绝（422/404）时
// platform_code 透传平台错误码，4xx 的 data 保留 ErrorResponse 原文。
type APIResponse struct {
	Code         int             `json:"code" example:"0"`
	Message      string          `json:"message" example:"ok"`
	PlatformCode string          `json:"platform_code,omitempty" example:"ORDERPAID"`
	Data         json.RawMessage `json:"data,omitempty"`
}

const (
	CodeOK             = 0
	CodeBadRequest     = 40000 // 参数校验失败、金额非法
	CodeNotFound       = 40400 // 订单/退款单不存在
	CodeUnprocessable  = 42200 // 微信支付业务拒绝
	CodeTooManyRequest = 42900
	CodeInternalError  = 50000
	CodeBadGateway     = 50200 // 上游网络错误或应答验签失败
	CodeServiceUnavail = 50300 // 未持有平台证书
	CodeGatewayTimeout = 50400
)

var envelopeCodes = map[int]int{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusNotFound:            CodeNotFound,
	http.StatusUnprocessableEntity: CodeUnprocessable,
	http.StatusTooManyRequests:     CodeTooManyRequest,
	http.StatusBadGateway:          CodeBadGateway,
	http.StatusServiceUnavailable:  CodeServiceUnavail,
	http.StatusGatewayTimeout:      CodeGatewayTimeout,
}

// 5xx 只返回固定文案，细节已由 internalError 记录日志
var upstreamMessages = map[int]string{
	http.StatusBadGateway:         "upstream error",
	http.StatusServiceUnavailable: "service unavailable",
	http.StatusGatewayTimeout:     "gateway timeout",
}

func envelopeCode(status int) int {
	if code, ok := envelopeCodes[status]; ok {
		return code
	}
	if status >= 500 {
		return CodeInternalError
	}
	return CodeBadRequest
}

// buildErrorEnvelope 由处理器写出的 ErrorResponse 构造失败响应
func buildErrorEnvelope(status int, body []byte) APIResponse {
	resp := APIResponse{Code: envelopeCode(status)}

	if status >= 500 {
		resp.Message = upstreamMessages[status]
		if resp.Message == "" {
			resp.Message = "internal server error"
		}
		return resp
	}

	var errBody ErrorResponse
	if err := json.Unmarshal(body, &errBody); err != nil || errBody.Error == "" {
		resp.Message = http.StatusText(status)
	} else {
		resp.Message = errBody.Error
		resp.PlatformCode = errBody.PlatformCode
	}
	resp.Data = json.RawMessage(body)
	return resp
}

// envelopeWriter 缓存处理器输出，处理结束后统一改写
type envelopeWriter struct {
	gin.ResponseWriter
	status  int
	written bool
	buf     bytes.Buffer
}

func (w *envelopeWriter) WriteHeader(code int) {
	w.status = code
	w.written = true
}

func (w *envelopeWriter) WriteHeaderNow() {
	w.written = true
}

func (w *envelopeWriter) Write(data []byte) (int, error) {
	w.markWritten()
	return w.buf.Write(data)
}

func (w *envelopeWriter) WriteString(s string) (int, error) {
	w.markWritten()
	return w.buf.WriteString(s)
}

func (w *envelopeWriter) markWritten() {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
}

// Written 超时中间件据此判断处理器是否已应答
func (w *envelopeWriter) Written() bool {
	return w.written
}

func (w *envelopeWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *envelopeWriter) flush(status int, body []byte) {
	w.ResponseWriter.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.ResponseWriter.Write(body)
	}
}

func skipEnvelope(path string) bool {
	// 回调须原样返回 {"code":"SUCCESS"}；/metrics 为 Prometheus 文本格式
	return strings.HasPrefix(path, "/v1/webhooks/") || path == "/metrics"
}

// ResponseEnvelopeMiddleware 将 JSON 应答包装为 APIResponse
func ResponseEnvelopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipEnvelope(c.Request.URL.Path) {
			c.Next()
			return
		}

		w := &envelopeWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		body := w.buf.Bytes()

		// 204 关单等无响应体，非 JSON 原样输出
		if len(bytes.TrimSpace(body)) == 0 ||
			!strings.HasPrefix(strings.ToLower(w.Header().Get("Content-Type")), "application/json") {
			w.flush(status, body)
			return
		}

		var resp APIResponse
		if status < 300 {
			resp = APIResponse{Code: CodeOK, Message: "ok", Data: json.RawMessage(body)}
		} else {
			resp = buildErrorEnvelope(status, body)
		}

		wrapped, err := json.Marshal(resp)
		if err != nil {
			status = http.StatusInternalServerError
			wrapped, _ = json.Marshal(APIResponse{Code: CodeInternalError, Message: "internal server error"})
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.flush(status, wrapped)
	}
}
