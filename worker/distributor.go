package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskDistributor 任务分发接口
type TaskDistributor interface {
	// DistributeTaskProcessRefund 分发退款重试任务
	DistributeTaskProcessRefund(
		ctx context.Context,
		payload *PayloadProcessRefund,
		opts ...asynq.Option,
	) error
}

type RedisTaskDistributor struct {
	client *asynq.Client
}

func NewRedisTaskDistributor(redisOpt asynq.RedisClientOpt) TaskDistributor {
	client := asynq.NewClient(redisOpt)
	return &RedisTaskDistributor{
		client: client,
	}
}
