package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/merrydance/paygate/api"
	"github.com/merrydance/paygate/util"
	"github.com/merrydance/paygate/wechat"
	"github.com/merrydance/paygate/worker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGINT,
}

// 回调随机串保留时长，覆盖平台重试窗口
const notifyNonceTTL = 24 * time.Hour

func main() {
	config, err := util.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	if config.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	// 凭据只在启动时加载一次，之后所有请求共享
	credential, certs, err := wechat.LoadCredentials(wechat.CredentialConfig{
		MchID:                    config.WechatPayMchID,
		SerialNumber:             config.WechatPaySerialNumber,
		PrivateKeyPath:           config.WechatPayPrivateKeyPath,
		PlatformCertificatePaths: config.WechatPayPlatformCertificatePaths,
		NotifyURL:                config.WechatPayNotifyURL,
		RefundNotifyURL:          config.WechatPayRefundNotifyURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load wechat pay credentials")
	}
	log.Info().
		Str("merchant", credential.String()).
		Strs("platform_serials", certs.Serials()).
		Msg("wechat pay credentials loaded")

	transport := wechat.NewTransport(wechat.TransportConfig{
		BaseURL:        config.WechatPayBaseURL,
		ConnectTimeout: config.WechatPayConnectTimeout,
		ReadTimeout:    config.WechatPayReadTimeout,
		AcquireTimeout: config.WechatPayAcquireTimeout,
		MaxConns:       config.WechatPayMaxConns,
	}, credential, certs)

	paymentClient := wechat.NewPaymentClient(config.WechatMiniAppID, credential, transport)

	if config.RedisAddress == "" {
		log.Fatal().Msg("REDIS_ADDRESS is not configured")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis - check REDIS_ADDRESS configuration")
	}
	log.Info().Str("redis_address", config.RedisAddress).Msg("Redis connection verified")

	notificationParser, err := wechat.NewNotificationParser(
		transport.Verifier(),
		config.WechatPayAPIV3Key,
		wechat.NewRedisNonceGuard(redisClient, notifyNonceTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create notification parser")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
	}

	waitGroup, ctx := errgroup.WithContext(ctx)

	runCertificateRefresher(ctx, waitGroup, config, transport, certs)
	taskDistributor := runTaskProcessor(ctx, waitGroup, redisOpt, paymentClient)
	runGinServer(ctx, waitGroup, config, paymentClient, notificationParser, certs, taskDistributor)

	err = waitGroup.Wait()
	if err != nil {
		log.Fatal().Err(err).Msg("error from wait group")
	}
}

// runCertificateRefresher 定时下载平台证书，轮换期间新旧证书并存
func runCertificateRefresher(
	ctx context.Context,
	waitGroup *errgroup.Group,
	config util.Config,
	transport *wechat.Transport,
	certs *wechat.CertificateStore,
) {
	downloader, err := wechat.NewCertificateDownloader(transport, certs, config.WechatPayAPIV3Key)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create certificate downloader")
	}

	refresher := wechat.NewCertificateRefresher(config.WechatPayCertRefreshSpec, downloader, certs)
	if err := refresher.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start certificate refresher")
	}

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown certificate refresher")
		refresher.Stop()
		return nil
	})
}

func runTaskProcessor(
	ctx context.Context,
	waitGroup *errgroup.Group,
	redisOpt asynq.RedisClientOpt,
	paymentClient wechat.PaymentClientInterface,
) worker.TaskDistributor {
	taskDistributor := worker.NewRedisTaskDistributor(redisOpt)

	taskProcessor := worker.NewRedisTaskProcessor(redisOpt, paymentClient)
	log.Info().Msg("start task processor")

	waitGroup.Go(func() error {
		return taskProcessor.Start()
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown task processor")
		taskProcessor.Shutdown()
		log.Info().Msg("task processor is stopped")
		return nil
	})

	return taskDistributor
}

// runGinServer starts the Gin HTTP server
func runGinServer(
	ctx context.Context,
	waitGroup *errgroup.Group,
	config util.Config,
	paymentClient wechat.PaymentClientInterface,
	notificationParser wechat.NotificationParserInterface,
	certs *wechat.CertificateStore,
	taskDistributor worker.TaskDistributor,
) {
	server, err := api.NewServer(config, paymentClient, notificationParser, certs, taskDistributor)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create server")
	}

	httpServer := &http.Server{
		Addr:              config.HTTPServerAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	waitGroup.Go(func() error {
		log.Info().Msgf("start HTTP server at %s", config.HTTPServerAddress)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed to serve")
			return err
		}
		return nil
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")
		defer server.Close()

		// 给予10秒时间完成正在处理的请求
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server forced to shutdown")
			return err
		}

		log.Info().Msg("HTTP server is stopped")
		return nil
	})
}
