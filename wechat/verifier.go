package wechat

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// 平台应答/回调签名相关头
const (
	HeaderWechatpaySerial    = "Wechatpay-Serial"
	HeaderWechatpaySignature = "Wechatpay-Signature"
	HeaderWechatpayTimestamp = "Wechatpay-Timestamp"
	HeaderWechatpayNonce     = "Wechatpay-Nonce"

	// 应答时间戳与本地时间的最大允许偏差
	defaultTimestampSkew = 5 * time.Minute
)

// SignatureHeaders 平台签名头
type SignatureHeaders struct {
	Serial    string
	Signature string
	Timestamp string
	Nonce     string
}

// SignatureHeadersFrom 从 HTTP 头中提取平台签名信息
func SignatureHeadersFrom(h http.Header) SignatureHeaders {
	return SignatureHeaders{
		Serial:    h.Get(HeaderWechatpaySerial),
		Signature: h.Get(HeaderWechatpaySignature),
		Timestamp: h.Get(HeaderWechatpayTimestamp),
		Nonce:     h.Get(HeaderWechatpayNonce),
	}
}

// Present 是否携带了签名头
func (h SignatureHeaders) Present() bool {
	return h.Serial != "" || h.Signature != ""
}

// Verifier 使用平台证书校验应答与回调通知
type Verifier struct {
	certs *CertificateStore
	skew  time.Duration
	now   func() time.Time
}

// NewVerifier 创建验签器
func NewVerifier(certs *CertificateStore) *Verifier {
	return &Verifier{
		certs: certs,
		skew:  defaultTimestampSkew,
		now:   time.Now,
	}
}

// Verify 按序列号找到平台证书，重建 `timestamp\nnonce\nbody\n` 并验签
// 序列号不匹配任何已持有证书时直接失败，不回退到其他证书
func (v *Verifier) Verify(h SignatureHeaders, body []byte) error {
	if h.Serial == "" || h.Signature == "" || h.Timestamp == "" || h.Nonce == "" {
		return &ResponseTrustError{Serial: h.Serial, Err: fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)}
	}

	cert, ok := v.certs.Get(h.Serial)
	if !ok {
		return &ResponseTrustError{Serial: h.Serial, Err: ErrUnknownCertificate}
	}

	now := v.now()
	if !cert.ValidAt(now) {
		return &ResponseTrustError{
			Serial: h.Serial,
			Err:    fmt.Errorf("%w: certificate outside validity window", ErrUnknownCertificate),
		}
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return &ResponseTrustError{Serial: h.Serial, Err: fmt.Errorf("%w: bad timestamp %q", ErrInvalidSignature, h.Timestamp)}
	}
	if d := now.Sub(time.Unix(ts, 0)); d > v.skew || d < -v.skew {
		return &ResponseTrustError{Serial: h.Serial, Err: ErrStaleTimestamp}
	}

	if err := VerifySignature(cert.PublicKey, buildVerifyMessage(h.Timestamp, h.Nonce, body), h.Signature); err != nil {
		return &ResponseTrustError{Serial: h.Serial, Err: err}
	}
	return nil
}

func buildVerifyMessage(timestamp, nonce string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(nonce)+len(body)+3)
	msg = append(msg, timestamp...)
	msg = append(msg, '\n')
	msg = append(msg, nonce...)
	msg = append(msg, '\n')
	msg = append(msg, body...)
	msg = append(msg, '\n')
	return msg
}
