package util

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	Environment       string `mapstructure:"ENVIRONMENT"`
	HTTPServerAddress string `mapstructure:"HTTP_SERVER_ADDRESS"`
	RedisAddress      string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	WechatMiniAppID   string `mapstructure:"WECHAT_MINI_APP_ID"`

	// 微信支付配置
	WechatPayMchID                    string        `mapstructure:"WECHAT_PAY_MCH_ID"`                    // 商户号
	WechatPaySerialNumber             string        `mapstructure:"WECHAT_PAY_SERIAL_NUMBER"`             // 商户API证书序列号
	WechatPayPrivateKeyPath           string        `mapstructure:"WECHAT_PAY_PRIVATE_KEY_PATH"`          // 商户API私钥文件路径
	WechatPayPlatformCertificatePaths []string      `mapstructure:"WECHAT_PAY_PLATFORM_CERTIFICATE_PATH"` // 平台证书路径，多个用逗号分隔
	WechatPayAPIV3Key                 string        `mapstructure:"WECHAT_PAY_API_V3_KEY"`                // APIv3密钥
	WechatPayNotifyURL                string        `mapstructure:"WECHAT_PAY_NOTIFY_URL"`                // 支付回调URL
	WechatPayRefundNotifyURL          string        `mapstructure:"WECHAT_PAY_REFUND_NOTIFY_URL"`         // 退款回调URL
	WechatPayBaseURL                  string        `mapstructure:"WECHAT_PAY_BASE_URL"`
	WechatPayConnectTimeout           time.Duration `mapstructure:"WECHAT_PAY_CONNECT_TIMEOUT"`
	WechatPayReadTimeout              time.Duration `mapstructure:"WECHAT_PAY_READ_TIMEOUT"`
	WechatPayAcquireTimeout           time.Duration `mapstructure:"WECHAT_PAY_ACQUIRE_TIMEOUT"`
	WechatPayMaxConns                 int           `mapstructure:"WECHAT_PAY_MAX_CONNS"`
	WechatPayCertRefreshSpec          string        `mapstructure:"WECHAT_PAY_CERT_REFRESH_SPEC"` // 平台证书刷新 cron 表达式

	// 支付接口限流（每IP）
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("HTTP_SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("WECHAT_PAY_BASE_URL", "https://api.mch.weixin.qq.com")
	v.SetDefault("WECHAT_PAY_CONNECT_TIMEOUT", 5*time.Second)
	v.SetDefault("WECHAT_PAY_READ_TIMEOUT", 5*time.Second)
	v.SetDefault("WECHAT_PAY_ACQUIRE_TIMEOUT", 5*time.Second)
	v.SetDefault("WECHAT_PAY_MAX_CONNS", 16)
	v.SetDefault("WECHAT_PAY_CERT_REFRESH_SPEC", "@every 12h")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.AutomaticEnv()

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	// Normalize common quoted values from .env (e.g. REDIS_PASSWORD="...")
	config.RedisPassword = trimOptionalQuotes(config.RedisPassword)
	config.WechatPayAPIV3Key = trimOptionalQuotes(config.WechatPayAPIV3Key)
	for i, p := range config.WechatPayPlatformCertificatePaths {
		config.WechatPayPlatformCertificatePaths[i] = strings.TrimSpace(p)
	}
	return
}

func trimOptionalQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}
