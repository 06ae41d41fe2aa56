package wechat

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// ==================== 商户凭据 ====================

// MerchantCredential 商户凭据，启动时加载一次，之后只读
type MerchantCredential struct {
	mchID           string          // 商户号
	serialNo        string          // 商户API证书序列号
	privateKey      *rsa.PrivateKey // 商户私钥
	notifyURL       string          // 支付回调 URL
	refundNotifyURL string          // 退款回调 URL
}

// NewMerchantCredential 使用已解析的私钥构造凭据
func NewMerchantCredential(mchID, serialNo string, privateKey *rsa.PrivateKey, notifyURL, refundNotifyURL string) (*MerchantCredential, error) {
	if mchID == "" {
		return nil, errors.New("merchant id is required")
	}
	if serialNo == "" {
		return nil, errors.New("merchant serial number is required")
	}
	if privateKey == nil {
		return nil, errors.New("merchant private key is required")
	}
	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("validate private key: %w", err)
	}

	return &MerchantCredential{
		mchID:           mchID,
		serialNo:        serialNo,
		privateKey:      privateKey,
		notifyURL:       notifyURL,
		refundNotifyURL: refundNotifyURL,
	}, nil
}

func (c *MerchantCredential) MchID() string           { return c.mchID }
func (c *MerchantCredential) SerialNo() string        { return c.serialNo }
func (c *MerchantCredential) NotifyURL() string       { return c.notifyURL }
func (c *MerchantCredential) RefundNotifyURL() string { return c.refundNotifyURL }

// PublicKey 返回商户私钥对应的公钥
func (c *MerchantCredential) PublicKey() *rsa.PublicKey { return &c.privateKey.PublicKey }

// String 不输出私钥
func (c *MerchantCredential) String() string {
	return fmt.Sprintf("MerchantCredential{mchid=%s, serial_no=%s}", c.mchID, c.serialNo)
}

// ==================== 平台证书 ====================

// PlatformCertificate 微信支付平台证书，仅用于验签
type PlatformCertificate struct {
	SerialNo  string
	PublicKey *rsa.PublicKey
	NotBefore time.Time
	NotAfter  time.Time
	Raw       *x509.Certificate
}

// NewPlatformCertificate 从 x509 证书构造平台证书
func NewPlatformCertificate(cert *x509.Certificate) (*PlatformCertificate, error) {
	publicKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("platform certificate key is %T, want RSA", cert.PublicKey)
	}

	return &PlatformCertificate{
		SerialNo:  utils.GetCertificateSerialNumber(*cert),
		PublicKey: publicKey,
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		Raw:       cert,
	}, nil
}

// ValidAt 证书在 t 时刻是否处于有效期内
func (c *PlatformCertificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// CertificateStore 平台证书集合（按序列号索引）
// 读操作无锁；写操作整体替换 map，读方不会看到中间状态
type CertificateStore struct {
	mu    sync.Mutex
	certs atomic.Pointer[map[string]*PlatformCertificate]
}

// NewCertificateStore 创建证书集合
func NewCertificateStore(certs ...*PlatformCertificate) *CertificateStore {
	s := &CertificateStore{}
	s.Replace(certs)
	return s
}

// Get 按序列号查找证书
func (s *CertificateStore) Get(serialNo string) (*PlatformCertificate, bool) {
	m := s.certs.Load()
	if m == nil {
		return nil, false
	}
	cert, ok := (*m)[serialNo]
	return cert, ok
}

// Replace 用给定证书整体替换当前集合
func (s *CertificateStore) Replace(certs []*PlatformCertificate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]*PlatformCertificate, len(certs))
	for _, cert := range certs {
		m[cert.SerialNo] = cert
	}
	s.certs.Store(&m)
}

// Merge 合并新证书并剔除已过期证书（证书轮换重叠期内新旧证书并存）
func (s *CertificateStore) Merge(certs []*PlatformCertificate, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]*PlatformCertificate)
	if old := s.certs.Load(); old != nil {
		for serial, cert := range *old {
			if !now.After(cert.NotAfter) {
				m[serial] = cert
			}
		}
	}
	for _, cert := range certs {
		m[cert.SerialNo] = cert
	}
	s.certs.Store(&m)
}

// Serials 返回当前持有的证书序列号（已排序）
func (s *CertificateStore) Serials() []string {
	m := s.certs.Load()
	if m == nil {
		return nil
	}
	serials := make([]string, 0, len(*m))
	for serial := range *m {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

// Len 当前持有的证书数量
func (s *CertificateStore) Len() int {
	m := s.certs.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

// ==================== 加载 ====================

// CredentialConfig 凭据文件与商户标识
type CredentialConfig struct {
	MchID                    string
	SerialNumber             string
	PrivateKeyPath           string
	PlatformCertificatePaths []string
	NotifyURL                string
	RefundNotifyURL          string
}

// LoadCredentials 加载商户私钥与平台证书
// 文件读完即关闭，只保留解析后的密钥和证书
func LoadCredentials(cfg CredentialConfig) (*MerchantCredential, *CertificateStore, error) {
	privateKey, err := utils.LoadPrivateKeyWithPath(cfg.PrivateKeyPath)
	if err != nil {
		return nil, nil, &CredentialLoadError{Path: cfg.PrivateKeyPath, Err: err}
	}

	credential, err := NewMerchantCredential(cfg.MchID, cfg.SerialNumber, privateKey, cfg.NotifyURL, cfg.RefundNotifyURL)
	if err != nil {
		return nil, nil, &CredentialLoadError{Path: cfg.PrivateKeyPath, Err: err}
	}

	if len(cfg.PlatformCertificatePaths) == 0 {
		return nil, nil, &CredentialLoadError{Err: errors.New("no platform certificate configured")}
	}

	now := time.Now()
	certs := make([]*PlatformCertificate, 0, len(cfg.PlatformCertificatePaths))
	for _, path := range cfg.PlatformCertificatePaths {
		x509Cert, err := utils.LoadCertificateWithPath(path)
		if err != nil {
			return nil, nil, &CredentialLoadError{Path: path, Err: err}
		}

		cert, err := NewPlatformCertificate(x509Cert)
		if err != nil {
			return nil, nil, &CredentialLoadError{Path: path, Err: err}
		}
		if now.After(cert.NotAfter) {
			return nil, nil, &CredentialLoadError{
				Path: path,
				Err:  fmt.Errorf("platform certificate %s expired at %s", cert.SerialNo, cert.NotAfter.Format(time.RFC3339)),
			}
		}
		certs = append(certs, cert)
	}

	return credential, NewCertificateStore(certs...), nil
}
