package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

const certificatesURL = "/v3/certificates"

// ==================== 平台证书下载 ====================

type downloadedCertificate struct {
	SerialNo           string            `json:"serial_no"`
	EffectiveTime      time.Time         `json:"effective_time"`
	ExpireTime         time.Time         `json:"expire_time"`
	EncryptCertificate EncryptedResource `json:"encrypt_certificate"`
}

type certificatesResponse struct {
	Data []downloadedCertificate `json:"data"`
}

// DownloadedCertificate 下载得到的平台证书及其 PEM
type DownloadedCertificate struct {
	*PlatformCertificate
	PEM string
}

// CertificateDownloader 通过 /v3/certificates 下载平台证书
type CertificateDownloader struct {
	transport *Transport
	store     *CertificateStore
	apiV3Key  string
}

// NewCertificateDownloader 创建证书下载器
// store 为当前持有的证书集合，可为空（首次引导）
func NewCertificateDownloader(transport *Transport, store *CertificateStore, apiV3Key string) (*CertificateDownloader, error) {
	if len(apiV3Key) != apiV3KeyLength {
		return nil, fmt.Errorf("apiv3 key must be %d bytes, got %d", apiV3KeyLength, len(apiV3Key))
	}
	if store == nil {
		store = NewCertificateStore()
	}
	return &CertificateDownloader{
		transport: transport,
		store:     store,
		apiV3Key:  apiV3Key,
	}, nil
}

// Download 下载并解密平台证书
// 应答用当前证书与新下载证书的并集验签
func (d *CertificateDownloader) Download(ctx context.Context) ([]*DownloadedCertificate, error) {
	var downloaded []*DownloadedCertificate

	verify := func(h SignatureHeaders, body []byte) error {
		certs, err := d.decode(body)
		if err != nil {
			return &ResponseTrustError{Serial: h.Serial, Err: err}
		}

		candidates := make([]*PlatformCertificate, 0, d.store.Len()+len(certs))
		for _, serial := range d.store.Serials() {
			if cert, ok := d.store.Get(serial); ok {
				candidates = append(candidates, cert)
			}
		}
		for _, cert := range certs {
			candidates = append(candidates, cert.PlatformCertificate)
		}

		verifier := NewVerifier(NewCertificateStore(candidates...))
		verifier.now = d.transport.verifier.now
		if err := verifier.Verify(h, body); err != nil {
			return err
		}
		downloaded = certs
		return nil
	}

	if _, err := d.transport.do(ctx, http.MethodGet, certificatesURL, nil, verify); err != nil {
		return nil, fmt.Errorf("download platform certificates: %w", err)
	}
	return downloaded, nil
}

func (d *CertificateDownloader) decode(body []byte) ([]*DownloadedCertificate, error) {
	var resp certificatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal certificates: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty certificate list")
	}

	certs := make([]*DownloadedCertificate, 0, len(resp.Data))
	for _, item := range resp.Data {
		pem, err := decryptResource(d.apiV3Key, item.EncryptCertificate)
		if err != nil {
			return nil, fmt.Errorf("decrypt certificate %s: %w", item.SerialNo, err)
		}

		x509Cert, err := utils.LoadCertificate(string(pem))
		if err != nil {
			return nil, fmt.Errorf("parse certificate %s: %w", item.SerialNo, err)
		}

		cert, err := NewPlatformCertificate(x509Cert)
		if err != nil {
			return nil, err
		}
		if cert.SerialNo != item.SerialNo {
			return nil, fmt.Errorf("certificate serial mismatch: listed %s, got %s", item.SerialNo, cert.SerialNo)
		}
		certs = append(certs, &DownloadedCertificate{PlatformCertificate: cert, PEM: string(pem)})
	}
	return certs, nil
}

// ==================== 定时刷新 ====================

// CertificateRefresher 定时下载平台证书并合并进证书集合
type CertificateRefresher struct {
	cron       *cron.Cron
	spec       string
	downloader *CertificateDownloader
	store      *CertificateStore
}

// NewCertificateRefresher 创建证书刷新调度器，spec 为 cron 表达式（如 "@every 12h"）
func NewCertificateRefresher(spec string, downloader *CertificateDownloader, store *CertificateStore) *CertificateRefresher {
	platformCertificatesHeld.Set(float64(store.Len()))
	return &CertificateRefresher{
		cron:       cron.New(),
		spec:       spec,
		downloader: downloader,
		store:      store,
	}
}

// Start 启动调度器
func (r *CertificateRefresher) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := r.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("failed to refresh platform certificates")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule certificate refresh %q: %w", r.spec, err)
	}

	r.cron.Start()
	log.Info().Str("spec", r.spec).Msg("certificate refresher started")
	return nil
}

// Stop 停止调度器并等待进行中的任务结束
func (r *CertificateRefresher) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("certificate refresher stopped")
}

// Refresh 下载一次证书并合并；失败时保留现有证书集合
func (r *CertificateRefresher) Refresh(ctx context.Context) error {
	downloaded, err := r.downloader.Download(ctx)
	if err != nil {
		certificateRefreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	certs := make([]*PlatformCertificate, 0, len(downloaded))
	for _, cert := range downloaded {
		certs = append(certs, cert.PlatformCertificate)
	}
	r.store.Merge(certs, time.Now())

	certificateRefreshTotal.WithLabelValues("success").Inc()
	platformCertificatesHeld.Set(float64(r.store.Len()))
	log.Info().Strs("serials", r.store.Serials()).Msg("platform certificates refreshed")
	return nil
}
