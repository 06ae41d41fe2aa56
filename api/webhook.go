package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/merrydance/paygate/wechat"
)

// ==================== 微信支付回调 ====================

const (
	notifyKindPayment = "payment"
	notifyKindRefund  = "refund"

	// 回调报文上限
	maxNotifyBodyBytes = 64 << 10
)

// wechatNotifyResponse 微信支付回调应答
type wechatNotifyResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func notifySuccess(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, wechatNotifyResponse{Code: "SUCCESS", Message: "成功"})
}

func notifyFail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, wechatNotifyResponse{Code: "FAIL", Message: message})
}

// parseNotification 读取报文并验签、防重放；返回 nil 表示已写入应答
func (server *Server) parseNotification(ctx *gin.Context, kind string) *wechat.Notification {
	logger := LogWithRequestID(ctx)

	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxNotifyBodyBytes))
	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Msg("read notification body")
		RecordNotification(kind, "bad_request")
		notifyFail(ctx, http.StatusBadRequest, "read body failed")
		return nil
	}

	notification, err := server.notificationParser.Parse(ctx.Request.Context(), ctx.Request.Header, body)
	if err != nil {
		var trustErr *wechat.ResponseTrustError
		switch {
		case errors.Is(err, wechat.ErrReplayedNonce):
			// 同一随机串已处理过，不再重复处理
			logger.Warn().Str("kind", kind).Str("nonce", ctx.GetHeader(wechat.HeaderWechatpayNonce)).Msg("replayed notification ignored")
			RecordNotification(kind, "replayed")
			notifySuccess(ctx)
		case errors.As(err, &trustErr):
			logger.Error().Err(err).Str("kind", kind).Str("serial", trustErr.Serial).Msg("invalid wechatpay signature")
			RecordNotification(kind, "untrusted")
			notifyFail(ctx, http.StatusUnauthorized, "signature verification failed")
		default:
			logger.Error().Err(err).Str("kind", kind).Msg("parse notification")
			RecordNotification(kind, "bad_request")
			notifyFail(ctx, http.StatusBadRequest, "parse notification failed")
		}
		return nil
	}

	return notification
}

// releaseNotification 处理失败时释放随机串，平台重投可再次处理
func (server *Server) releaseNotification(ctx *gin.Context, notification *wechat.Notification) {
	if err := server.notificationParser.Release(ctx.Request.Context(), notification); err != nil {
		LogWithRequestID(ctx).Error().Err(err).Str("notification_id", notification.ID).Msg("release notification nonce")
	}
}

// handlePaymentNotify 处理支付结果通知
// POST /v1/webhooks/wechat-pay/notify
func (server *Server) handlePaymentNotify(ctx *gin.Context) {
	notification := server.parseNotification(ctx, notifyKindPayment)
	if notification == nil {
		return
	}
	logger := LogWithRequestID(ctx)

	if notification.EventType != wechat.EventTransactionSuccess {
		logger.Info().Str("event_type", notification.EventType).Msg("ignore non-success payment notification")
		RecordNotification(notifyKindPayment, "ignored")
		notifySuccess(ctx)
		return
	}

	resource, err := server.notificationParser.DecryptPayment(notification)
	if err != nil {
		logger.Error().Err(err).Str("notification_id", notification.ID).Msg("decrypt payment notification")
		RecordNotification(notifyKindPayment, "decrypt_failed")
		server.releaseNotification(ctx, notification)
		notifyFail(ctx, http.StatusBadRequest, "decrypt failed")
		return
	}

	logger.Info().
		Str("notification_id", notification.ID).
		Str("out_trade_no", resource.OutTradeNo).
		Str("transaction_id", resource.TransactionID).
		Str("trade_state", resource.TradeState).
		Int64("amount", resource.Amount.Total).
		Str("amount_yuan", wechat.ToMajor(resource.Amount.Total).StringFixed(2)).
		Str("success_time", resource.SuccessTime).
		Msg("payment notification received")

	RecordNotification(notifyKindPayment, "ok")
	notifySuccess(ctx)
}

// handleRefundNotify 处理退款结果通知
// POST /v1/webhooks/wechat-pay/refund-notify
func (server *Server) handleRefundNotify(ctx *gin.Context) {
	notification := server.parseNotification(ctx, notifyKindRefund)
	if notification == nil {
		return
	}
	logger := LogWithRequestID(ctx)

	switch notification.EventType {
	case wechat.EventRefundSuccess, wechat.EventRefundAbnormal, wechat.EventRefundClosed:
	default:
		logger.Info().Str("event_type", notification.EventType).Msg("ignore unknown refund notification")
		RecordNotification(notifyKindRefund, "ignored")
		notifySuccess(ctx)
		return
	}

	resource, err := server.notificationParser.DecryptRefund(notification)
	if err != nil {
		logger.Error().Err(err).Str("notification_id", notification.ID).Msg("decrypt refund notification")
		RecordNotification(notifyKindRefund, "decrypt_failed")
		server.releaseNotification(ctx, notification)
		notifyFail(ctx, http.StatusBadRequest, "decrypt failed")
		return
	}

	evt := logger.Info()
	if resource.RefundStatus != wechat.RefundStatusSuccess {
		evt = logger.Warn()
	}
	evt.
		Str("notification_id", notification.ID).
		Str("event_type", notification.EventType).
		Str("out_trade_no", resource.OutTradeNo).
		Str("out_refund_no", resource.OutRefundNo).
		Str("refund_id", resource.RefundID).
		Str("refund_status", resource.RefundStatus).
		Int64("refund", resource.Amount.Refund).
		Str("refund_yuan", wechat.ToMajor(resource.Amount.Refund).StringFixed(2)).
		Msg("refund notification received")

	RecordNotification(notifyKindRefund, "ok")
	notifySuccess(ctx)
}
