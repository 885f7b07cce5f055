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

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/postline-app/PublishDispatcher/internal/allowlist"
	"github.com/postline-app/PublishDispatcher/internal/config"
	"github.com/postline-app/PublishDispatcher/internal/handler"
	"github.com/postline-app/PublishDispatcher/internal/queue"
	"github.com/postline-app/PublishDispatcher/internal/repository"
	"github.com/postline-app/PublishDispatcher/internal/service"
	"github.com/postline-app/PublishDispatcher/pkg/postgres"
)

const migrationsPath = "file://./db/migrations"

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

	zlog.Logger.Info().Str("env", cfg.Env).Msg("starting publish api")

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

	if err := postgres.MigrateUp(cfg.Database.MasterDSN, migrationsPath); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("couldn't migrate postgres on master DSN")
	}

	allow := allowlist.New(cfg.RelayAllowList)

	configRepository := repository.NewConfigRepository(postgresDB, postgresRetryStrategy)
	jobRepository := repository.NewJobRepository(postgresDB, postgresRetryStrategy)
	resultRepository := repository.NewResultRepository(postgresDB, postgresRetryStrategy)
	deadLetterRepository := repository.NewDeadLetterRepository(postgresDB, postgresRetryStrategy)

	publisher, err := queue.NewPublisher(ctx, cfg.RabbitMQ, rabbitmqRetryStrategy)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect rabbitmq publisher")
	}
	defer publisher.Close()

	publishService := service.NewPublishService(jobRepository, publisher, resultRepository)
	adminService := service.NewAdminService(configRepository, deadLetterRepository, allow)

	router := handler.NewRouter(
		handler.NewPublishHandler(publishService),
		handler.NewAdminHandler(adminService),
	)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("http server shutdown")
	}
}
