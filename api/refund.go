package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/merrydance/paygate/wechat"
	"github.com/merrydance/paygate/worker"
	"github.com/shopspring/decimal"
)

// 退款重试任务最大重试次数
const refundTaskMaxRetry = 10

type createRefundRequest struct {
	OutTradeNo   string          `json:"out_trade_no" binding:"required,outTradeNo"`
	OutRefundNo  string          `json:"out_refund_no" binding:"required,outRefundNo"`
	RefundAmount decimal.Decimal `json:"refund_amount" binding:"required,gt=0"` // 元
	TotalAmount  decimal.Decimal `json:"total_amount" binding:"required,gt=0"`  // 元
	Reason       string          `json:"reason,omitempty" binding:"max=80"`
}

type refundQueuedResponse struct {
	OutRefundNo string `json:"out_refund_no"`
	Status      string `json:"status" example:"QUEUED"`
}

// createRefund godoc
// @Summary 申请退款
// @Description 成功时透传微信支付应答；网络层失败时转入异步重试并返回 202
// @Tags 退款
// @Accept json
// @Produce json
// @Param request body createRefundRequest true "退款参数"
// @Success 200 {object} wechat.RefundResponse
// @Success 202 {object} refundQueuedResponse "已转入重试队列"
// @Failure 400 {object} ErrorResponse "参数错误或退款金额超出订单金额"
// @Failure 422 {object} ErrorResponse "微信支付拒绝"
// @Router /v1/refunds [post]
func (server *Server) createRefund(ctx *gin.Context) {
	var req createRefundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	body, err := server.paymentClient.Refund(ctx.Request.Context(), wechat.RefundRequest{
		OutTradeNo:   req.OutTradeNo,
		OutRefundNo:  req.OutRefundNo,
		Reason:       req.Reason,
		RefundAmount: req.RefundAmount,
		TotalAmount:  req.TotalAmount,
	})
	if err != nil {
		var transportErr *wechat.TransportError
		if errors.As(err, &transportErr) && server.taskDistributor != nil {
			server.enqueueRefund(ctx, req, err)
			return
		}
		RecordRefundRequested("failed")
		respondWechatError(ctx, err)
		return
	}
	RecordRefundRequested("success")

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// enqueueRefund 网络层失败时交给 worker 重试，同一退款单号在微信侧幂等
func (server *Server) enqueueRefund(ctx *gin.Context, req createRefundRequest, cause error) {
	payload := &worker.PayloadProcessRefund{
		OutTradeNo:   req.OutTradeNo,
		OutRefundNo:  req.OutRefundNo,
		RefundAmount: req.RefundAmount,
		TotalAmount:  req.TotalAmount,
		Reason:       req.Reason,
	}

	err := server.taskDistributor.DistributeTaskProcessRefund(
		ctx.Request.Context(),
		payload,
		asynq.MaxRetry(refundTaskMaxRetry),
		asynq.Queue(worker.QueueCritical),
	)
	if err != nil {
		RecordRefundRequested("failed")
		ctx.JSON(http.StatusInternalServerError, internalError(ctx, fmt.Errorf("enqueue refund after %v: %w", cause, err)))
		return
	}
	RecordRefundRequested("queued")

	LogWithRequestID(ctx).Warn().
		Err(cause).
		Str("out_refund_no", req.OutRefundNo).
		Msg("refund deferred to retry queue")

	ctx.JSON(http.StatusAccepted, refundQueuedResponse{
		OutRefundNo: req.OutRefundNo,
		Status:      "QUEUED",
	})
}

type outRefundNoURI struct {
	OutRefundNo string `uri:"out_refund_no" binding:"required,outRefundNo"`
}

// getRefund godoc
// @Summary 查询退款
// @Tags 退款
// @Produce json
// @Param out_refund_no path string true "商户退款单号"
// @Success 200 {object} wechat.RefundResponse
// @Failure 404 {object} ErrorResponse "退款单不存在"
// @Router /v1/refunds/{out_refund_no} [get]
func (server *Server) getRefund(ctx *gin.Context) {
	var uri outRefundNoURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	refund, err := server.paymentClient.QueryRefund(ctx.Request.Context(), uri.OutRefundNo)
	if err != nil {
		respondWechatError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, refund)
}
