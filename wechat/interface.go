package wechat

import (
	"context"
	"net/http"
)

// PaymentClientInterface 微信支付客户端接口（小程序直连支付），便于测试mock
type PaymentClientInterface interface {
	// CreateOrder 创建 JSAPI 订单，返回 prepay_id
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)

	// Pay 下单并生成小程序调起支付参数
	Pay(ctx context.Context, req OrderRequest) (*PayResult, error)

	// BuildInvocation 为已有 prepay_id 重新生成调起支付参数
	BuildInvocation(prepayID string) (*InvocationPayload, error)

	// QueryOrderByOutTradeNo 根据商户订单号查询订单
	QueryOrderByOutTradeNo(ctx context.Context, outTradeNo string) (*OrderQueryResponse, error)

	// CloseOrder 关闭订单
	CloseOrder(ctx context.Context, outTradeNo string) error

	// Refund 申请退款，返回平台原始应答体
	Refund(ctx context.Context, req RefundRequest) ([]byte, error)

	// QueryRefund 查询退款
	QueryRefund(ctx context.Context, outRefundNo string) (*RefundResponse, error)
}

// NotificationParserInterface 回调通知解析接口
type NotificationParserInterface interface {
	// Parse 验签、防重放并解析通知外层结构
	Parse(ctx context.Context, header http.Header, body []byte) (*Notification, error)

	// DecryptPayment 解密支付通知
	DecryptPayment(n *Notification) (*PaymentNotificationResource, error)

	// DecryptRefund 解密退款通知
	DecryptRefund(n *Notification) (*RefundNotificationResource, error)

	// Release 解密或处理失败时释放随机串
	Release(ctx context.Context, n *Notification) error
}

// 确保实现了接口
var (
	_ PaymentClientInterface      = (*PaymentClient)(nil)
	_ NotificationParserInterface = (*NotificationParser)(nil)
	_ NonceGuard                  = (*RedisNonceGuard)(nil)
)
