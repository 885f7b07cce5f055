package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/postline-app/PublishDispatcher/internal/adapter"
	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/dispatcher"
	"github.com/postline-app/PublishDispatcher/internal/queue"
	"github.com/postline-app/PublishDispatcher/internal/quota"
	"github.com/postline-app/PublishDispatcher/internal/repository"
	"github.com/postline-app/PublishDispatcher/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig(os.Getenv("PUBLISH_DISPATCHER_ENV_FILE"), "")
	if err != nil {
		log.Fatal(err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.Env); err != nil {
		log.Fatal(fmt.Errorf("error setting log level to '%s': %w", cfg.Env, err))
	}

	zlog.Logger.Info().Str("env", cfg.Env).Msg("starting dispatcher")

	postgresRetryStrategy := config.MakeStrategy(cfg.PostgresRetry)
	rabbitmqRetryStrategy := config.MakeStrategy(cfg.RabbitMQRetry)

	var postgresDB *dbpg.DB
	err = retry.DoContext(ctx, postgresRetryStrategy, func() error {
		var connErr error
		postgresDB, connErr = dbpg.New(cfg.Database.MasterDSN, cfg.Database.SlaveDSNs,
			&dbpg.Options{
				MaxOpenConns:    cfg.Database.MaxOpenConnections,
				MaxIdleConns:    cfg.Database.MaxIdleConnections,
				ConnMaxLifetime: time.Duration(cfg.Database.ConnectionMaxLifetimeSeconds) * time.Second,
			})
		return connErr
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	reservationTTL := time.Duration(cfg.Dispatcher.ReservationTTLSeconds) * time.Second
	if reservationTTL <= 0 {
		reservationTTL = 30 * time.Second
	}
	adapterTimeout := time.Duration(cfg.Dispatcher.AdapterTimeoutSeconds) * time.Second
	if adapterTimeout <= 0 {
		adapterTimeout = 10 * time.Second
	}

	allow := allowlist.New(cfg.RelayAllowList)

	configRepository := repository.NewConfigRepository(postgresDB, postgresRetryStrategy)
	attemptRepository := repository.NewAttemptRepository(postgresDB, postgresRetryStrategy)
	deadLetterRepository := repository.NewDeadLetterRepository(postgresDB, postgresRetryStrategy)
	resultRepository := repository.NewResultRepository(postgresDB, postgresRetryStrategy)
	ledgerRepository := repository.NewLedgerRepository(redisClient, reservationTTL)
	quotaRepository := repository.NewQuotaRepository(redisClient)

	resolver := service.NewResolverService(configRepository, allow)
	quotaRouter := quota.NewRouter(quotaRepository, resolver, cfg.Quota)
	adapters := adapter.NewRegistry(quotaRouter, cfg.Adapters, adapterTimeout)

	disp := dispatcher.New(
		ledgerRepository,
		resolver,
		adapters,
		attemptRepository,
		deadLetterRepository,
		resultRepository,
		dispatcher.NewPolicy(cfg.Dispatcher),
		dispatcher.Options{
			AdapterTimeout: adapterTimeout,
			ResultTTL:      time.Duration(cfg.Dispatcher.ResultTTLHours) * time.Hour,
		},
	)

	publisher, err := queue.NewPublisher(ctx, cfg.RabbitMQ, rabbitmqRetryStrategy)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect rabbitmq publisher")
	}
	defer publisher.Close()

	consumer, err := queue.NewConsumer(ctx, cfg.RabbitMQ, rabbitmqRetryStrategy)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect rabbitmq consumer")
	}
	defer consumer.Close()

	if cfg.Dispatcher.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.Dispatcher.MetricsAddr,
			Handler: promhttp.Handler(),
		}
		go func() {
			zlog.Logger.Info().Str("addr", cfg.Dispatcher.MetricsAddr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	zlog.Logger.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("consuming publish jobs")
	if err := consumer.Run(ctx, disp, publisher); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("consumer stopped")
	}

	zlog.Logger.Info().Msg("dispatcher stopped")
}
