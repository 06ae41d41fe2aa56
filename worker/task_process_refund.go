package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/merrydance/paygate/wechat"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	TaskProcessRefund = "payment:initiate_refund"
)

// PayloadProcessRefund 退款任务载荷（金额单位：元）
type PayloadProcessRefund struct {
	OutTradeNo   string          `json:"out_trade_no"`
	OutRefundNo  string          `json:"out_refund_no"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Reason       string          `json:"reason"`
}

// DistributeTaskProcessRefund 分发退款重试任务
func (distributor *RedisTaskDistributor) DistributeTaskProcessRefund(
	ctx context.Context,
	payload *PayloadProcessRefund,
	opts ...asynq.Option,
) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskProcessRefund, jsonPayload, opts...)
	info, err := distributor.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	log.Info().
		Str("type", task.Type()).
		Str("queue", info.Queue).
		Int("max_retry", info.MaxRetry).
		Str("out_trade_no", payload.OutTradeNo).
		Str("out_refund_no", payload.OutRefundNo).
		Msg("enqueued refund task")

	return nil
}

// ProcessTaskProcessRefund 重新提交退款
// 仅网络层失败返回可重试错误，其余失败跳过重试
func (processor *RedisTaskProcessor) ProcessTaskProcessRefund(ctx context.Context, task *asynq.Task) error {
	var payload PayloadProcessRefund
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log.Info().
		Str("type", task.Type()).
		Str("out_trade_no", payload.OutTradeNo).
		Str("out_refund_no", payload.OutRefundNo).
		Str("refund_amount", payload.RefundAmount.String()).
		Msg("processing refund task")

	body, err := processor.paymentClient.Refund(ctx, wechat.RefundRequest{
		OutTradeNo:   payload.OutTradeNo,
		OutRefundNo:  payload.OutRefundNo,
		Reason:       payload.Reason,
		RefundAmount: payload.RefundAmount,
		TotalAmount:  payload.TotalAmount,
	})
	if err != nil {
		var transportErr *wechat.TransportError
		if errors.As(err, &transportErr) {
			return fmt.Errorf("refund %s: %w", payload.OutRefundNo, err)
		}

		log.Error().
			Err(err).
			Str("out_refund_no", payload.OutRefundNo).
			Str("platform_code", wechat.PlatformCode(err)).
			Msg("refund failed permanently")
		return fmt.Errorf("refund %s: %w: %w", payload.OutRefundNo, err, asynq.SkipRetry)
	}

	var refund wechat.RefundResponse
	if err := json.Unmarshal(body, &refund); err != nil {
		log.Warn().Err(err).Str("out_refund_no", payload.OutRefundNo).Msg("refund accepted with unreadable body")
		return nil
	}

	log.Info().
		Str("out_refund_no", payload.OutRefundNo).
		Str("refund_id", refund.RefundID).
		Str("status", refund.Status).
		Msg("refund submitted")

	return nil
}
