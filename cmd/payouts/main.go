// Package main запускает HTTP-сервер сервиса выплат продавцам маркетплейса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace-payouts/internal/config"
	"github.com/mmeshcher/marketplace-payouts/internal/handler"
	"github.com/mmeshcher/marketplace-payouts/internal/logger"
	"github.com/mmeshcher/marketplace-payouts/internal/metrics"
	"github.com/mmeshcher/marketplace-payouts/internal/middleware"
	"github.com/mmeshcher/marketplace-payouts/internal/repository"
	"github.com/mmeshcher/marketplace-payouts/internal/service"
	"github.com/mmeshcher/marketplace-payouts/internal/transfer"
)

func main() {
	bootstrap, _ := zap.NewProduction()

	cfg, err := config.Parse()
	if err != nil {
		bootstrap.Sugar().Fatalw("configuration error", "error", err.Error())
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		bootstrap.Sugar().Fatalw("logger initialization error", "error", err.Error())
	}
	_ = bootstrap.Sync()
	defer log.Sync()

	sugar := log.Sugar()

	repo, err := repository.NewPostgresRepository(repository.Options{
		DSN:               cfg.DatabaseURI,
		MaxConns:          int32(cfg.DBMaxConns),
		DefaultCommission: cfg.Commission(),
	})
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var transfers service.TransferClient
	if cfg.TransferProviderAddress != "" {
		transfers = transfer.NewClient(cfg.TransferProviderAddress)
	}

	svc := service.NewService(repo, transfers, service.Options{
		HoldPeriod:           cfg.HoldPeriod,
		MinimumPayout:        cfg.MinimumPayout,
		MaturationInterval:   cfg.MaturationInterval,
		TransferSyncInterval: cfg.TransferSyncInterval,
		Logger:               log,
		Metrics:              metrics.New(nil),
	})
	defer svc.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisClient.Close()
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, tokens are signed with a random key")
	}
	idempotency := middleware.NewIdempotency(redisClient, cfg.IdempotencyTTL, log)
	rateLimiter := middleware.NewRateLimiter(cfg.PayoutRateLimit, cfg.PayoutRateBurst)

	h := handler.NewHandler(svc, log, authMiddleware, idempotency, rateLimiter)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновый перевод созревших начислений в доступный баланс
	g.Go(func() error {
		svc.StartMaturation(ctx)
		return nil
	})

	// Фоновая синхронизация статусов переводов с провайдером
	g.Go(func() error {
		svc.StartTransferSync(ctx)
		return nil
	})

	g.Go(func() error {
		rateLimiter.Cleanup(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting payouts server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
