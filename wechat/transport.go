package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	wxPayBaseURL = "https://api.mch.weixin.qq.com"

	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second
	DefaultAcquireTimeout = 5 * time.Second
	DefaultMaxConns       = 16

	headerRequestID = "Request-ID"
)

// TransportConfig 传输层配置，零值字段使用默认值
type TransportConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration // 建立连接（含 TLS 握手）
	ReadTimeout    time.Duration // 等待并读取应答
	AcquireTimeout time.Duration // 从连接池获取连接
	MaxConns       int

	// RoundTripper 测试时可替换；为空使用内置连接池
	RoundTripper http.RoundTripper
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.BaseURL == "" {
		c.BaseURL = wxPayBaseURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	return c
}

// SignedRequest 单次请求的签名材料，每次调用重新生成，不复用
type SignedRequest struct {
	Method    string
	Path      string // 含查询串
	Timestamp string
	Nonce     string
	Body      []byte
	Signature string
}

// Message 待签名串：METHOD\nPATH\nTIMESTAMP\nNONCE\nBODY\n
func (r *SignedRequest) Message() []byte {
	var buf bytes.Buffer
	buf.Grow(len(r.Method) + len(r.Path) + len(r.Timestamp) + len(r.Nonce) + len(r.Body) + 5)
	buf.WriteString(r.Method)
	buf.WriteByte('\n')
	buf.WriteString(r.Path)
	buf.WriteByte('\n')
	buf.WriteString(r.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(r.Nonce)
	buf.WriteByte('\n')
	buf.Write(r.Body)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Authorization 构造 Authorization 头
func (r *SignedRequest) Authorization(mchID, serialNo string) string {
	return fmt.Sprintf(`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		SignatureAlgorithm, mchID, r.Nonce, r.Signature, r.Timestamp, serialNo)
}

// Response 已通过验签的平台应答
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport 带签名与应答验签的 HTTP 传输层，可并发使用
type Transport struct {
	baseURL    string
	credential *MerchantCredential
	signer     *Signer
	verifier   *Verifier
	httpClient *http.Client

	conns           *semaphore.Weighted
	acquireTimeout  time.Duration
	exchangeTimeout time.Duration

	now func() time.Time
}

// NewTransport 创建传输层
func NewTransport(cfg TransportConfig, credential *MerchantCredential, certs *CertificateStore) *Transport {
	cfg = cfg.withDefaults()

	rt := cfg.RoundTripper
	if rt == nil {
		dialer := &net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}
		rt = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			MaxIdleConns:          cfg.MaxConns,
			MaxIdleConnsPerHost:   cfg.MaxConns,
			MaxConnsPerHost:       cfg.MaxConns,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	return &Transport{
		baseURL:         cfg.BaseURL,
		credential:      credential,
		signer:          NewSigner(credential),
		verifier:        NewVerifier(certs),
		httpClient:      &http.Client{Transport: rt},
		conns:           semaphore.NewWeighted(int64(cfg.MaxConns)),
		acquireTimeout:  cfg.AcquireTimeout,
		exchangeTimeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		now:             time.Now,
	}
}

// Verifier 返回传输层使用的验签器（回调通知验签复用）
func (t *Transport) Verifier() *Verifier {
	return t.verifier
}

func (t *Transport) newSignedRequest(method, path string, body []byte) (*SignedRequest, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	req := &SignedRequest{
		Method:    method,
		Path:      path,
		Timestamp: formatTimestamp(t.now()),
		Nonce:     nonce,
		Body:      body,
	}
	req.Signature, err = t.signer.Sign(req.Message())
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Do 发送签名请求并验签应答
// 返回值：2xx 且验签通过时返回 Response；平台可信错误体返回 *WechatPayError；
// 验签失败返回 *ResponseTrustError；其余网络失败返回 *TransportError
func (t *Transport) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	return t.do(ctx, method, path, body, t.verifier.Verify)
}

// verifyFunc 应答验签
type verifyFunc func(h SignatureHeaders, body []byte) error

func (t *Transport) do(ctx context.Context, method, path string, body interface{}, verify verifyFunc) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	signed, err := t.newSignedRequest(method, path, payload)
	if err != nil {
		return nil, err
	}

	route := routeLabel(path)
	start := time.Now()
	resp, outcome, err := t.exchange(ctx, signed, verify)
	platformRequestsTotal.WithLabelValues(route, outcome).Inc()
	platformRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	return resp, err
}

func (t *Transport) exchange(ctx context.Context, signed *SignedRequest, verify verifyFunc) (*Response, string, error) {
	transportErr := func(statusCode int, err error) *TransportError {
		return &TransportError{
			Method:     signed.Method,
			Path:       signed.Path,
			StatusCode: statusCode,
			Timeout:    isTimeout(err),
			Err:        err,
		}
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, t.acquireTimeout)
	err := t.conns.Acquire(acquireCtx, 1)
	cancelAcquire()
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcomeTransport, transportErr(0, ctx.Err())
		}
		return nil, outcomeTransport, transportErr(0, fmt.Errorf("acquire connection: %w", err))
	}
	defer t.conns.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, t.exchangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, signed.Method, t.baseURL+signed.Path, bytes.NewReader(signed.Body))
	if err != nil {
		return nil, outcomeTransport, transportErr(0, fmt.Errorf("create request: %w", err))
	}

	requestID := uuid.New().String()
	req.Header.Set("Authorization", signed.Authorization(t.credential.MchID(), t.credential.SerialNo()))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRequestID, requestID)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Debug().
			Str("request_id", requestID).
			Str("method", signed.Method).
			Str("path", signed.Path).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("wechat pay request failed")
		return nil, outcomeTransport, transportErr(0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeTransport, transportErr(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", signed.Method).
		Str("path", signed.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("wechat pay request")

	headers := SignatureHeadersFrom(resp.Header)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !success && !headers.Present() {
		// 网关类错误不带签名，无法确认来源
		return nil, outcomeTransport, transportErr(resp.StatusCode, errors.New("unsigned error response"))
	}

	if err := verify(headers, respBody); err != nil {
		return nil, outcomeUntrusted, err
	}

	if !success {
		wxErr := &WechatPayError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, wxErr); err != nil || wxErr.Code == "" {
			return nil, outcomeTransport, transportErr(resp.StatusCode, errors.New("error response without platform code"))
		}
		return nil, outcomeRejected, wxErr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, outcomeOK, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
