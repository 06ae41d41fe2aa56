package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMchID           = "1900000109"
	testMerchantSerial  = "5157F09EFDC096DE15EBE81A47057A7232F1B8E1"
	testAppID           = "wx1234"
	testNotifyURL       = "https://example.com/notify"
	testRefundNotifyURL = "https://example.com/refund-notify"
	testAPIV3Key        = "0123456789abcdef0123456789abcdef"

	// big.NewInt(1234567890) 的十六进制
	testPlatformSerial = "499602D2"
)

// 生成测试用的 RSA 密钥对
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

// 创建测试用的私钥 PEM 文件（PKCS8 格式）
func createTestPrivateKeyFile(t *testing.T, dir string, privateKey *rsa.PrivateKey) string {
	path := filepath.Join(dir, "apiclient_key.pem")
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privateKeyBytes,
	})
	require.NoError(t, os.WriteFile(path, privateKeyPEM, 0600))
	return path
}

// 创建自签名测试证书，返回 PEM
func createTestCertificatePEM(t *testing.T, privateKey *rsa.PrivateKey, serial int64, notBefore, notAfter time.Time) string {
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			Organization: []string{"Tenpay.com"},
			CommonName:   "Tenpay.com Root CA",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	}))
}

// 创建测试用的证书 PEM 文件
func createTestCertificateFile(t *testing.T, dir, name, certPEM string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(certPEM), 0644))
	return path
}

func parseTestCertificate(t *testing.T, certPEM string) *PlatformCertificate {
	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block)
	x509Cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	cert, err := NewPlatformCertificate(x509Cert)
	require.NoError(t, err)
	return cert
}

// 使用 APIv3 密钥加密，构造通知/证书下载中的 resource
func encryptTestResource(t *testing.T, apiV3Key string, plaintext []byte) EncryptedResource {
	block, err := aes.NewCipher([]byte(apiV3Key))
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	nonce := "0a1b2c3d4e5f"
	associatedData := "transaction"
	ciphertext := gcm.Seal(nil, []byte(nonce), plaintext, []byte(associatedData))

	return EncryptedResource{
		Algorithm:      algorithmAESGCM,
		Ciphertext:     base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:          nonce,
		AssociatedData: associatedData,
	}
}

// ==================== 模拟微信支付平台 ====================

var authorizationParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

type recordedRequest struct {
	Method        string
	URI           string
	Body          []byte
	Authorization map[string]string
	Verified      bool
}

// fakePlatform 校验商户签名并对应答签名
type fakePlatform struct {
	t           *testing.T
	merchantKey *rsa.PublicKey
	platformKey *rsa.PrivateKey
	serial      string

	server  *httptest.Server
	handler func(r *http.Request, body []byte) (int, []byte)

	// 以下字段用于构造异常应答
	tamper      func(body []byte) []byte
	unsigned    bool
	timestampAt time.Time
	stallBody   time.Duration // 先发送响应头，延迟发送响应体

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakePlatform(t *testing.T, merchantKey *rsa.PublicKey, platformKey *rsa.PrivateKey, serial string) *fakePlatform {
	p := &fakePlatform{
		t:           t,
		merchantKey: merchantKey,
		platformKey: platformKey,
		serial:      serial,
		handler: func(r *http.Request, body []byte) (int, []byte) {
			return http.StatusOK, []byte(`{}`)
		},
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(p.server.Close)
	return p
}

// serveHTTP 运行在 server goroutine，失败只记录并应答 500，由测试 goroutine 断言
func (p *fakePlatform) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if !assert.NoError(p.t, err) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec := recordedRequest{
		Method:        r.Method,
		URI:           r.URL.RequestURI(),
		Body:          body,
		Authorization: map[string]string{},
	}
	for _, m := range authorizationParam.FindAllStringSubmatch(r.Header.Get("Authorization"), -1) {
		rec.Authorization[m[1]] = m[2]
	}
	message := r.Method + "\n" + rec.URI + "\n" + rec.Authorization["timestamp"] + "\n" +
		rec.Authorization["nonce_str"] + "\n" + string(body) + "\n"
	rec.Verified = VerifySignature(p.merchantKey, []byte(message), rec.Authorization["signature"]) == nil

	p.mu.Lock()
	p.requests = append(p.requests, rec)
	p.mu.Unlock()

	status, respBody := p.handler(r, body)
	if !rec.Verified {
		status, respBody = http.StatusUnauthorized, []byte(`{"code":"SIGN_ERROR","message":"签名错误"}`)
	}

	if !p.unsigned {
		ts := time.Now()
		if !p.timestampAt.IsZero() {
			ts = p.timestampAt
		}
		timestamp := strconv.FormatInt(ts.Unix(), 10)
		nonce, err := GenerateNonce()
		if !assert.NoError(p.t, err) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		signature, err := NewSigner(&MerchantCredential{privateKey: p.platformKey}).
			Sign(buildVerifyMessage(timestamp, nonce, respBody))
		if !assert.NoError(p.t, err) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set(HeaderWechatpaySerial, p.serial)
		w.Header().Set(HeaderWechatpaySignature, signature)
		w.Header().Set(HeaderWechatpayTimestamp, timestamp)
		w.Header().Set(HeaderWechatpayNonce, nonce)
	}

	if p.tamper != nil {
		respBody = p.tamper(respBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if p.stallBody > 0 {
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(p.stallBody):
		}
	}
	_, _ = w.Write(respBody)
}

func (p *fakePlatform) Requests() []recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedRequest(nil), p.requests...)
}

// testEnv 一套商户凭据 + 平台证书 + 模拟平台
type testEnv struct {
	merchantKey *rsa.PrivateKey
	platformKey *rsa.PrivateKey
	credential  *MerchantCredential
	certs       *CertificateStore
	platform    *fakePlatform
	transport   *Transport
	client      *PaymentClient
}

func newTestEnv(t *testing.T, cfg TransportConfig) *testEnv {
	merchantKey, merchantPub := generateTestKeyPair(t)
	platformKey, _ := generateTestKeyPair(t)

	credential, err := NewMerchantCredential(testMchID, testMerchantSerial, merchantKey, testNotifyURL, testRefundNotifyURL)
	require.NoError(t, err)

	certPEM := createTestCertificatePEM(t, platformKey, 1234567890, time.Now().Add(-time.Hour), time.Now().Add(365*24*time.Hour))
	certs := NewCertificateStore(parseTestCertificate(t, certPEM))

	platform := newFakePlatform(t, merchantPub, platformKey, testPlatformSerial)
	cfg.BaseURL = platform.server.URL
	transport := NewTransport(cfg, credential, certs)

	return &testEnv{
		merchantKey: merchantKey,
		platformKey: platformKey,
		credential:  credential,
		certs:       certs,
		platform:    platform,
		transport:   transport,
		client:      NewPaymentClient(testAppID, credential, transport),
	}
}
