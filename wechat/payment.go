package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	// 微信支付 API 端点
	jsapiOrderURL        = "/v3/pay/transactions/jsapi"
	queryOrderByOutNoURL = "/v3/pay/transactions/out-trade-no"
	closeOrderURL        = "/v3/pay/transactions/out-trade-no/%s/close"
	refundURL            = "/v3/refund/domestic/refunds"
	queryRefundURL       = "/v3/refund/domestic/refunds/%s"
)

// PaymentClient 微信支付客户端：下单、退款、查询、关单
type PaymentClient struct {
	appID      string
	credential *MerchantCredential
	transport  *Transport
	invocation *InvocationSigner
}

// NewPaymentClient 创建微信支付客户端
// credential 与 transport 由启动流程一次性构造后注入
func NewPaymentClient(appID string, credential *MerchantCredential, transport *Transport) *PaymentClient {
	return &PaymentClient{
		appID:      appID,
		credential: credential,
		transport:  transport,
		invocation: NewInvocationSigner(credential),
	}
}

// AppID 小程序 AppID
func (c *PaymentClient) AppID() string {
	return c.appID
}

// ==================== JSAPI 下单 ====================

// OrderRequest JSAPI 下单请求
type OrderRequest struct {
	OutTradeNo    string          // 商户订单号
	Description   string          // 商品描述
	Amount        decimal.Decimal // 订单金额（元）
	OpenID        string          // 用户 OpenID
	ExpireTime    time.Time       // 订单失效时间（选填）
	Attach        string          // 商户数据包（选填）
	PayerClientIP string          // 用户终端IP（选填）
}

type orderAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type orderPayer struct {
	OpenID string `json:"openid"`
}

type sceneInfo struct {
	PayerClientIP string `json:"payer_client_ip"`
}

type jsapiOrderPayload struct {
	AppID       string      `json:"appid"`
	MchID       string      `json:"mchid"`
	Description string      `json:"description"`
	OutTradeNo  string      `json:"out_trade_no"`
	TimeExpire  string      `json:"time_expire,omitempty"`
	Attach      string      `json:"attach,omitempty"`
	NotifyURL   string      `json:"notify_url"`
	Amount      orderAmount `json:"amount"`
	Payer       orderPayer  `json:"payer"`
	SceneInfo   *sceneInfo  `json:"scene_info,omitempty"`
}

type jsapiOrderResponse struct {
	PrepayID string `json:"prepay_id"`
}

// PayResult 下单并生成调起参数的结果
type PayResult struct {
	PrepayID   string             `json:"prepay_id"`
	Invocation *InvocationPayload `json:"pay_params"`
}

func (c *PaymentClient) buildOrderPayload(req OrderRequest) (*jsapiOrderPayload, error) {
	total, err := ToMinor(req.Amount)
	if err != nil {
		return nil, err
	}

	payload := &jsapiOrderPayload{
		AppID:       c.appID,
		MchID:       c.credential.MchID(),
		Description: req.Description,
		OutTradeNo:  req.OutTradeNo,
		Attach:      req.Attach,
		NotifyURL:   c.credential.NotifyURL(),
		Amount:      orderAmount{Total: total, Currency: CurrencyCNY},
		Payer:       orderPayer{OpenID: req.OpenID},
	}
	if !req.ExpireTime.IsZero() {
		payload.TimeExpire = req.ExpireTime.Format(time.RFC3339)
	}
	if req.PayerClientIP != "" {
		payload.SceneInfo = &sceneInfo{PayerClientIP: req.PayerClientIP}
	}
	return payload, nil
}

// CreateOrder 创建 JSAPI 订单，返回 prepay_id
func (c *PaymentClient) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	payload, err := c.buildOrderPayload(req)
	if err != nil {
		return "", fmt.Errorf("create order %s: %w", req.OutTradeNo, err)
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, jsapiOrderURL, payload)
	if err != nil {
		return "", orderFailure(req.OutTradeNo, err)
	}

	var out jsapiOrderResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", &OrderError{OutTradeNo: req.OutTradeNo, Err: fmt.Errorf("%w: %v", ErrMissingPrepayID, err)}
	}
	if out.PrepayID == "" {
		return "", &OrderError{OutTradeNo: req.OutTradeNo, Err: ErrMissingPrepayID}
	}

	log.Info().
		Str("out_trade_no", req.OutTradeNo).
		Int64("total", payload.Amount.Total).
		Msg("jsapi order created")

	return out.PrepayID, nil
}

// Pay 下单后生成小程序调起支付参数（二次签名使用新的时间戳和随机串）
func (c *PaymentClient) Pay(ctx context.Context, req OrderRequest) (*PayResult, error) {
	prepayID, err := c.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	invocation, err := c.BuildInvocation(prepayID)
	if err != nil {
		return nil, fmt.Errorf("build invocation for %s: %w", req.OutTradeNo, err)
	}

	return &PayResult{PrepayID: prepayID, Invocation: invocation}, nil
}

// BuildInvocation 使用客户端 AppID 生成调起支付参数
func (c *PaymentClient) BuildInvocation(prepayID string) (*InvocationPayload, error) {
	return c.invocation.Build(c.appID, prepayID)
}

// ==================== 查询订单 ====================

// OrderQueryResponse 订单查询响应
type OrderQueryResponse struct {
	AppID          string `json:"appid"`
	MchID          string `json:"mchid"`
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
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

// TradeState 交易状态常量
const (
	TradeStateSuccess    = "SUCCESS"    // 支付成功
	TradeStateRefund     = "REFUND"     // 转入退款
	TradeStateNotPay     = "NOTPAY"     // 未支付
	TradeStateClosed     = "CLOSED"     // 已关闭
	TradeStateUserPaying = "USERPAYING" // 用户支付中
	TradeStatePayError   = "PAYERROR"   // 支付失败
)

// QueryOrderByOutTradeNo 根据商户订单号查询订单
func (c *PaymentClient) QueryOrderByOutTradeNo(ctx context.Context, outTradeNo string) (*OrderQueryResponse, error) {
	path := fmt.Sprintf("%s/%s?mchid=%s", queryOrderByOutNoURL, url.PathEscape(outTradeNo), url.QueryEscape(c.credential.MchID()))

	resp, err := c.transport.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, orderFailure(outTradeNo, err)
	}

	var out OrderQueryResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", outTradeNo, err)
	}
	return &out, nil
}

// ==================== 关闭订单 ====================

type closeOrderPayload struct {
	MchID string `json:"mchid"`
}

// CloseOrder 关闭订单（成功时平台返回 204）
func (c *PaymentClient) CloseOrder(ctx context.Context, outTradeNo string) error {
	path := fmt.Sprintf(closeOrderURL, url.PathEscape(outTradeNo))

	if _, err := c.transport.Do(ctx, http.MethodPost, path, closeOrderPayload{MchID: c.credential.MchID()}); err != nil {
		return orderFailure(outTradeNo, err)
	}

	log.Info().Str("out_trade_no", outTradeNo).Msg("order closed")
	return nil
}

// ==================== 申请退款 ====================

// RefundRequest 退款请求
type RefundRequest struct {
	OutTradeNo   string          // 原商户订单号
	OutRefundNo  string          // 商户退款单号
	Reason       string          // 退款原因（选填）
	RefundAmount decimal.Decimal // 退款金额（元）
	TotalAmount  decimal.Decimal // 原订单金额（元）
}

type refundAmount struct {
	Refund   int64  `json:"refund"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type refundPayload struct {
	OutTradeNo  string       `json:"out_trade_no"`
	OutRefundNo string       `json:"out_refund_no"`
	Reason      string       `json:"reason,omitempty"`
	NotifyURL   string       `json:"notify_url"`
	Amount      refundAmount `json:"amount"`
}

// RefundResponse 退款查询响应
type RefundResponse struct {
	RefundID            string `json:"refund_id"`
	OutRefundNo         string `json:"out_refund_no"`
	TransactionID       string `json:"transaction_id"`
	OutTradeNo          string `json:"out_trade_no"`
	Channel             string `json:"channel"`
	UserReceivedAccount string `json:"user_received_account"`
	SuccessTime         string `json:"success_time,omitempty"`
	CreateTime          string `json:"create_time"`
	Status              string `json:"status"`
	Amount              struct {
		Total       int64 `json:"total"`
		Refund      int64 `json:"refund"`
		PayerTotal  int64 `json:"payer_total"`
		PayerRefund int64 `json:"payer_refund"`
	} `json:"amount"`
}

// RefundStatus 退款状态常量
const (
	RefundStatusSuccess    = "SUCCESS"    // 退款成功
	RefundStatusClosed     = "CLOSED"     // 退款关闭
	RefundStatusProcessing = "PROCESSING" // 退款处理中
	RefundStatusAbnormal   = "ABNORMAL"   // 退款异常
)

func (c *PaymentClient) buildRefundPayload(req RefundRequest) (*refundPayload, error) {
	refund, err := ToMinor(req.RefundAmount)
	if err != nil {
		return nil, fmt.Errorf("refund amount: %w", err)
	}
	total, err := ToMinor(req.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("total amount: %w", err)
	}
	if refund > total {
		return nil, fmt.Errorf("%w: refund %d exceeds total %d", ErrInvalidAmount, refund, total)
	}

	return &refundPayload{
		OutTradeNo:  req.OutTradeNo,
		OutRefundNo: req.OutRefundNo,
		Reason:      req.Reason,
		NotifyURL:   c.credential.RefundNotifyURL(),
		Amount: refundAmount{
			Refund:   refund,
			Total:    total,
			Currency: CurrencyCNY,
		},
	}, nil
}

// Refund 申请退款，返回平台原始应答体（退款状态由调用方解析）
func (c *PaymentClient) Refund(ctx context.Context, req RefundRequest) ([]byte, error) {
	payload, err := c.buildRefundPayload(req)
	if err != nil {
		return nil, fmt.Errorf("refund %s: %w", req.OutRefundNo, err)
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, refundURL, payload)
	if err != nil {
		return nil, refundFailure(req.OutRefundNo, err)
	}

	log.Info().
		Str("out_trade_no", req.OutTradeNo).
		Str("out_refund_no", req.OutRefundNo).
		Int64("refund", payload.Amount.Refund).
		Msg("refund submitted")

	return resp.Body, nil
}

// QueryRefund 查询退款
func (c *PaymentClient) QueryRefund(ctx context.Context, outRefundNo string) (*RefundResponse, error) {
	path := fmt.Sprintf(queryRefundURL, url.PathEscape(outRefundNo))

	resp, err := c.transport.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, refundFailure(outRefundNo, err)
	}

	var out RefundResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal refund %s: %w", outRefundNo, err)
	}
	return &out, nil
}

// orderFailure 平台业务拒绝包装为 OrderError，其他错误原样返回
func orderFailure(outTradeNo string, err error) error {
	var wxErr *WechatPayError
	if errors.As(err, &wxErr) {
		return &OrderError{OutTradeNo: outTradeNo, Err: wxErr}
	}
	return err
}

func refundFailure(outRefundNo string, err error) error {
	var wxErr *WechatPayError
	if errors.As(err, &wxErr) {
		return &RefundError{OutRefundNo: outRefundNo, Err: wxErr}
	}
	return err
}
