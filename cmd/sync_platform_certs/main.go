package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/merrydance/paygate/util"
	"github.com/merrydance/paygate/wechat"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// 下载微信支付平台证书并写入本地目录，用于首次部署或手动轮换。
// 已配置平台证书时以其为信任根；未配置时仅以下载结果自身验签。
func main() {
	var (
		configPath = flag.String("config", ".", "config path containing app.env")
		outDir     = flag.String("out", "certs", "directory to write wechatpay_<serial>.pem files")
		dryRun     = flag.Bool("dry-run", false, "print certificates without writing files")
		timeout    = flag.Duration("timeout", 30*time.Second, "overall request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := util.LoadConfig(*configPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	if cfg.WechatPayAPIV3Key == "" {
		exitErr(errors.New("WECHAT_PAY_API_V3_KEY is empty (set it in app.env or env var)"))
	}

	credential, certs, err := loadCredential(cfg)
	if err != nil {
		exitErr(err)
	}

	transport := wechat.NewTransport(wechat.TransportConfig{
		BaseURL:        cfg.WechatPayBaseURL,
		ConnectTimeout: cfg.WechatPayConnectTimeout,
		ReadTimeout:    cfg.WechatPayReadTimeout,
		AcquireTimeout: cfg.WechatPayAcquireTimeout,
		MaxConns:       1,
	}, credential, certs)

	downloader, err := wechat.NewCertificateDownloader(transport, certs, cfg.WechatPayAPIV3Key)
	if err != nil {
		exitErr(err)
	}

	downloaded, err := downloader.Download(ctx)
	if err != nil {
		exitErr(err)
	}

	fmt.Printf("下载到 %d 张平台证书 (dry-run=%v)\n", len(downloaded), *dryRun)
	for _, cert := range downloaded {
		fmt.Printf("  %s  %s ~ %s\n",
			cert.SerialNo,
			cert.NotBefore.Format(time.RFC3339),
			cert.NotAfter.Format(time.RFC3339))
	}

	if *dryRun {
		return
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		exitErr(fmt.Errorf("create %s: %w", *outDir, err))
	}
	for _, cert := range downloaded {
		path := filepath.Join(*outDir, "wechatpay_"+cert.SerialNo+".pem")
		if err := os.WriteFile(path, []byte(cert.PEM), 0o644); err != nil {
			exitErr(fmt.Errorf("write %s: %w", path, err))
		}
		fmt.Println("  ->", path)
	}

	fmt.Println("✅ 平台证书同步完成")
}

// loadCredential 未配置平台证书时返回空证书集合
func loadCredential(cfg util.Config) (*wechat.MerchantCredential, *wechat.CertificateStore, error) {
	if len(cfg.WechatPayPlatformCertificatePaths) > 0 {
		return wechat.LoadCredentials(wechat.CredentialConfig{
			MchID:                    cfg.WechatPayMchID,
			SerialNumber:             cfg.WechatPaySerialNumber,
			PrivateKeyPath:           cfg.WechatPayPrivateKeyPath,
			PlatformCertificatePaths: cfg.WechatPayPlatformCertificatePaths,
		})
	}

	privateKey, err := utils.LoadPrivateKeyWithPath(cfg.WechatPayPrivateKeyPath)
	if err != nil {
		return nil, nil, &wechat.CredentialLoadError{Path: cfg.WechatPayPrivateKeyPath, Err: err}
	}
	credential, err := wechat.NewMerchantCredential(cfg.WechatPayMchID, cfg.WechatPaySerialNumber, privateKey, "", "")
	if err != nil {
		return nil, nil, err
	}
	return credential, wechat.NewCertificateStore(), nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
