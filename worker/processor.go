package worker

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/merrydance/paygate/wechat"
	"github.com/rs/zerolog/log"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// TaskProcessor 任务处理接口
type TaskProcessor interface {
	Start() error
	Shutdown()
	// ProcessTaskProcessRefund 处理退款重试任务
	ProcessTaskProcessRefund(ctx context.Context, task *asynq.Task) error
}

type RedisTaskProcessor struct {
	server        *asynq.Server
	paymentClient wechat.PaymentClientInterface
}

func NewRedisTaskProcessor(
	redisOpt asynq.RedisClientOpt,
	paymentClient wechat.PaymentClientInterface,
) TaskProcessor {
	logger := NewLogger()
	redis.SetLogger(logger)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger:          logger,
			ShutdownTimeout: 10 * time.Second,
		},
	)

	return &RedisTaskProcessor{
		server:        server,
		paymentClient: paymentClient,
	}
}

// NewTestTaskProcessor 创建用于测试的处理器实例（不需要Redis连接）
func NewTestTaskProcessor(paymentClient wechat.PaymentClientInterface) *RedisTaskProcessor {
	return &RedisTaskProcessor{
		paymentClient: paymentClient,
	}
}

func (processor *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskProcessRefund, processor.ProcessTaskProcessRefund)

	return processor.server.Start(mux)
}

func (processor *RedisTaskProcessor) Shutdown() {
	processor.server.Shutdown()
}
