package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// ==================== 回调通知 ====================

// 通知事件类型
const (
	EventTransactionSuccess = "TRANSACTION.SUCCESS"
	EventRefundSuccess      = "REFUND.SUCCESS"
	EventRefundAbnormal     = "REFUND.ABNORMAL"
	EventRefundClosed       = "REFUND.CLOSED"

	algorithmAESGCM = "AEAD_AES_256_GCM"
	apiV3KeyLength  = 32
)

// EncryptedResource APIv3 加密数据
type EncryptedResource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	AssociatedData string `json:"associated_data"`
	OriginalType   string `json:"original_type,omitempty"`
}

// Notification 支付/退款通知
type Notification struct {
	ID           string            `json:"id"`
	CreateTime   time.Time         `json:"create_time"`
	EventType    string            `json:"event_type"`
	ResourceType string            `json:"resource_type"`
	Resource     EncryptedResource `json:"resource"`
	Summary      string            `json:"summary"`

	nonce string // 验签通过的 Wechatpay-Nonce，解密失败时用于释放
}

// PaymentNotificationResource 支付通知解密后的资源
type PaymentNotificationResource struct {
	AppID          string `json:"appid"`
	MchID          string `json:"mchid"`
	TransactionID  string `json:"transaction_id"`
	OutTradeNo     string `json:"out_trade_no"`
	TradeType      string `json:"trade_type"`
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc"`
	BankType       string `json:"bank_type"`
	Attach         string `json:"attach"`
	SuccessTime    string `json:"success_time"`
	Payer          struct {
		OpenID string `json:"openid"`
	} `json:"payer"`
	Amount struct {
		Total         int64  `json:"total"`
		PayerTotal    int64  `json:"payer_total"`
		Currency      string `json:"currency"`
		PayerCurrency string `json:"payer_currency"`
	} `json:"amount"`
}

// RefundNotificationResource 退款通知解密后的资源
type RefundNotificationResource struct {
	MchID               string `json:"mchid"`
	OutTradeNo          string `json:"out_trade_no"`
	TransactionID       string `json:"transaction_id"`
	OutRefundNo         string `json:"out_refund_no"`
	RefundID            string `json:"refund_id"`
	RefundStatus        string `json:"refund_status"`
	SuccessTime         string `json:"success_time,omitempty"`
	UserReceivedAccount string `json:"user_received_account"`
	Amount              struct {
		Total       int64 `json:"total"`
		Refund      int64 `json:"refund"`
		PayerTotal  int64 `json:"payer_total"`
		PayerRefund int64 `json:"payer_refund"`
	} `json:"amount"`
}

// NonceGuard 回调随机串防重放
type NonceGuard interface {
	// Claim 首次出现返回 nil，重复出现返回 ErrReplayedNonce
	Claim(ctx context.Context, nonce string) error

	// Release 撤销占用，使平台重新投递时能够再次处理
	Release(ctx context.Context, nonce string) error
}

// RedisNonceGuard 基于 SETNX 的防重放实现
type RedisNonceGuard struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisNonceGuard 创建防重放器；ttl 应覆盖时间戳允许偏差窗口
func NewRedisNonceGuard(client redis.Cmdable, ttl time.Duration) *RedisNonceGuard {
	if ttl <= 0 {
		ttl = 2 * defaultTimestampSkew
	}
	return &RedisNonceGuard{
		client: client,
		prefix: "wechatpay:notify:nonce:",
		ttl:    ttl,
	}
}

// Claim 实现 NonceGuard
func (g *RedisNonceGuard) Claim(ctx context.Context, nonce string) error {
	ok, err := g.client.SetNX(ctx, g.prefix+nonce, 1, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim notification nonce: %w", err)
	}
	if !ok {
		return ErrReplayedNonce
	}
	return nil
}

// Release 实现 NonceGuard
func (g *RedisNonceGuard) Release(ctx context.Context, nonce string) error {
	if err := g.client.Del(ctx, g.prefix+nonce).Err(); err != nil {
		return fmt.Errorf("release notification nonce: %w", err)
	}
	return nil
}

// NotificationParser 回调通知验签、防重放与解密
type NotificationParser struct {
	verifier *Verifier
	apiV3Key string
	guard    NonceGuard
}

// NewNotificationParser 创建通知解析器；guard 为 nil 时不做防重放
func NewNotificationParser(verifier *Verifier, apiV3Key string, guard NonceGuard) (*NotificationParser, error) {
	if len(apiV3Key) != apiV3KeyLength {
		return nil, fmt.Errorf("apiv3 key must be %d bytes, got %d", apiV3KeyLength, len(apiV3Key))
	}
	return &NotificationParser{
		verifier: verifier,
		apiV3Key: apiV3Key,
		guard:    guard,
	}, nil
}

// Parse 验签并解析通知外层结构，成功后占用随机串
func (p *NotificationParser) Parse(ctx context.Context, header http.Header, body []byte) (*Notification, error) {
	headers := SignatureHeadersFrom(header)
	if err := p.verifier.Verify(headers, body); err != nil {
		return nil, err
	}

	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	notification.nonce = headers.Nonce

	if p.guard != nil {
		if err := p.guard.Claim(ctx, headers.Nonce); err != nil {
			return nil, err
		}
	}
	return &notification, nil
}

// Release 释放通知占用的随机串；处理未完成时调用，平台重投后可再次处理
func (p *NotificationParser) Release(ctx context.Context, n *Notification) error {
	if p.guard == nil || n == nil || n.nonce == "" {
		return nil
	}
	return p.guard.Release(ctx, n.nonce)
}

// DecryptPayment 解密支付通知
func (p *NotificationParser) DecryptPayment(n *Notification) (*PaymentNotificationResource, error) {
	plaintext, err := decryptResource(p.apiV3Key, n.Resource)
	if err != nil {
		return nil, fmt.Errorf("decrypt notification %s: %w", n.ID, err)
	}

	var resource PaymentNotificationResource
	if err := json.Unmarshal(plaintext, &resource); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	return &resource, nil
}

// DecryptRefund 解密退款通知
func (p *NotificationParser) DecryptRefund(n *Notification) (*RefundNotificationResource, error) {
	plaintext, err := decryptResource(p.apiV3Key, n.Resource)
	if err != nil {
		return nil, fmt.Errorf("decrypt notification %s: %w", n.ID, err)
	}

	var resource RefundNotificationResource
	if err := json.Unmarshal(plaintext, &resource); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	return &resource, nil
}

func decryptResource(apiV3Key string, r EncryptedResource) ([]byte, error) {
	if r.Algorithm != algorithmAESGCM {
		return nil, fmt.Errorf("unsupported algorithm %q", r.Algorithm)
	}
	plaintext, err := utils.DecryptAES256GCM(apiV3Key, r.AssociatedData, r.Nonce, r.Ciphertext)
	if err != nil {
		return nil, err
	}
	return []byte(plaintext), nil
}
