package wechat

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnknownCertificate = errors.New("no platform certificate matches serial")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingPrepayID    = errors.New("prepay_id missing in response")
	ErrReplayedNonce      = errors.New("nonce already used")
	ErrStaleTimestamp     = errors.New("timestamp outside allowed window")
)

// CredentialLoadError 商户私钥或平台证书加载失败（启动期致命错误）
type CredentialLoadError struct {
	Path string
	Err  error
}

func (e *CredentialLoadError) Error() string {
	return fmt.Sprintf("load credential %s: %v", e.Path, e.Err)
}

func (e *CredentialLoadError) Unwrap() error { return e.Err }

// SigningError 签名失败，仅影响当前调用
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign message: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// TransportError 网络层失败：连接失败、超时、非2xx且无可信错误体
// 调用方自行决定是否重试
type TransportError struct {
	Method     string
	Path       string
	StatusCode int  // 0 表示未拿到响应
	Timeout    bool // 连接/读取/获取连接超时
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("wechat pay transport: %s %s: status=%d: %v", e.Method, e.Path, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("wechat pay transport: %s %s: status=%d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("wechat pay transport: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseTrustError 应答验签失败或找不到对应平台证书，应答体已丢弃
type ResponseTrustError struct {
	Serial string
	Err    error
}

func (e *ResponseTrustError) Error() string {
	return fmt.Sprintf("untrusted wechat pay response (serial=%s): %v", e.Serial, e.Err)
}

func (e *ResponseTrustError) Unwrap() error { return e.Err }

// WechatPayError 微信支付API错误响应
type WechatPayError struct {
	StatusCode int              `json:"-"`       // HTTP状态码
	Code       string           `json:"code"`    // 错误码
	Message    string           `json:"message"` // 错误描述
	Detail     *WechatPayDetail `json:"detail,omitempty"`
}

// WechatPayDetail 错误详情（参数校验类错误会返回）
type WechatPayDetail struct {
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
	Issue    string `json:"issue,omitempty"`
	Location string `json:"location,omitempty"`
}

// Error 实现error接口
func (e *WechatPayError) Error() string {
	if e.Detail != nil && e.Detail.Issue != "" {
		return fmt.Sprintf("wechat pay error: code=%s, message=%s, detail=%s, status=%d",
			e.Code, e.Message, e.Detail.Issue, e.StatusCode)
	}
	return fmt.Sprintf("wechat pay error: code=%s, message=%s, status=%d",
		e.Code, e.Message, e.StatusCode)
}

// OrderError 平台拒绝下单（应答可信且格式正确）
type OrderError struct {
	OutTradeNo string
	Err        error // *WechatPayError 或 ErrMissingPrepayID
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s rejected: %v", e.OutTradeNo, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// RefundError 平台拒绝退款（应答可信且格式正确）
type RefundError struct {
	OutRefundNo string
	Err         error
}

func (e *RefundError) Error() string {
	return fmt.Sprintf("refund %s rejected: %v", e.OutRefundNo, e.Err)
}

func (e *RefundError) Unwrap() error { return e.Err }

// PlatformCode 返回平台错误码，非平台拒绝时返回空串
func PlatformCode(err error) string {
	var wxErr *WechatPayError
	if errors.As(err, &wxErr) {
		return wxErr.Code
	}
	return ""
}
