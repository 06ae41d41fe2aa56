package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/merrydance/paygate/wechat"
	"github.com/shopspring/decimal"
)

// ==================== JSAPI 下单 ====================

type createJSAPIPaymentRequest struct {
	OutTradeNo    string          `json:"out_trade_no" binding:"required,outTradeNo"`
	Description   string          `json:"description" binding:"required,max=127"`
	Amount        decimal.Decimal `json:"amount" binding:"required,gt=0"` // 元
	OpenID        string          `json:"openid" binding:"required,max=128"`
	Attach        string          `json:"attach,omitempty" binding:"max=128"`
	ExpireMinutes int             `json:"expire_minutes,omitempty" binding:"omitempty,min=1,max=10080"`
}

// createJSAPIPayment godoc
// @Summary 小程序下单
// @Description 调用 JSAPI 下单接口并返回小程序 wx.requestPayment 所需参数
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body createJSAPIPaymentRequest true "下单参数"
// @Success 200 {object} wechat.PayResult
// @Failure 400 {object} ErrorResponse "参数错误或金额非法"
// @Failure 422 {object} ErrorResponse "微信支付拒绝"
// @Failure 502 {object} ErrorResponse "上游异常"
// @Failure 504 {object} ErrorResponse "上游超时"
// @Router /v1/payments/jsapi [post]
func (server *Server) createJSAPIPayment(ctx *gin.Context) {
	var req createJSAPIPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	orderReq := wechat.OrderRequest{
		OutTradeNo:    req.OutTradeNo,
		Description:   req.Description,
		Amount:        req.Amount,
		OpenID:        req.OpenID,
		Attach:        req.Attach,
		PayerClientIP: ctx.ClientIP(),
	}
	if req.ExpireMinutes > 0 {
		orderReq.ExpireTime = time.Now().Add(time.Duration(req.ExpireMinutes) * time.Minute)
	}

	result, err := server.paymentClient.Pay(ctx.Request.Context(), orderReq)
	if err != nil {
		RecordPaymentCreated(false)
		respondWechatError(ctx, err)
		return
	}
	RecordPaymentCreated(true)

	LogWithRequestID(ctx).Info().
		Str("out_trade_no", req.OutTradeNo).
		Str("prepay_id", result.PrepayID).
		Msg("jsapi order created")

	ctx.JSON(http.StatusOK, result)
}

// ==================== 查询 / 关闭 ====================

type outTradeNoURI struct {
	OutTradeNo string `uri:"out_trade_no" binding:"required,outTradeNo"`
}

// getPayment godoc
// @Summary 查询订单
// @Tags 支付
// @Produce json
// @Param out_trade_no path string true "商户订单号"
// @Success 200 {object} wechat.OrderQueryResponse
// @Failure 404 {object} ErrorResponse "订单不存在"
// @Router /v1/payments/{out_trade_no} [get]
func (server *Server) getPayment(ctx *gin.Context) {
	var uri outTradeNoURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	order, err := server.paymentClient.QueryOrderByOutTradeNo(ctx.Request.Context(), uri.OutTradeNo)
	if err != nil {
		respondWechatError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, order)
}

// closePayment godoc
// @Summary 关闭订单
// @Tags 支付
// @Param out_trade_no path string true "商户订单号"
// @Success 204
// @Failure 422 {object} ErrorResponse "订单已支付等"
// @Router /v1/payments/{out_trade_no}/close [post]
func (server *Server) closePayment(ctx *gin.Context) {
	var uri outTradeNoURI
	if err := ctx.ShouldBindUri(&uri); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	if err := server.paymentClient.CloseOrder(ctx.Request.Context(), uri.OutTradeNo); err != nil {
		respondWechatError(ctx, err)
		return
	}

	LogWithRequestID(ctx).Info().Str("out_trade_no", uri.OutTradeNo).Msg("order closed")
	ctx.Status(http.StatusNoContent)
}
