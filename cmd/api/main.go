package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/curveflow/internal/api"
	"github.com/dunamismax/curveflow/internal/config"
	"github.com/dunamismax/curveflow/internal/curvenodes"
	"github.com/dunamismax/curveflow/internal/logging"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/queue"
	"github.com/dunamismax/curveflow/internal/ratelimit"
	"github.com/dunamismax/curveflow/internal/storage"
	"github.com/dunamismax/curveflow/internal/store"
	"github.com/dunamismax/curveflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("CURVEFLOW_ENV_FILE")); err != nil {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
	}
	cfg := config.Load()
	logger := logging.New("api", cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "curveflow-api", cfg.Trace, logger)
	if err != nil {
		logger.Fatal("setup tracing", "err", err)
	}

	registry := node.NewRegistry()
	if err := registry.Install(curvenodes.New(logger)); err != nil {
		logger.Fatal("install nodes", "err", err)
	}

	invocations, closeStore, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open invocation store", "err", err)
	}
	defer closeStore()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", "err", err)
		}
	}()

	opts := api.Options{
		Logger:                logger,
		Registry:              registry,
		Store:                 invocations,
		Queue:                 queueClient,
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
		Tracer:                otel.Tracer("curveflow/api"),
	}

	if cfg.Worker.Emitter == "object" {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
			Prefix:   cfg.Storage.Prefix,
		})
		if err != nil {
			logger.Fatal("create storage client", "err", err)
		}
		opts.Storage = storageClient
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			logger.Fatal("create rate limiter", "err", err)
		}
		opts.RateLimiter = limiter
	}

	app, err := api.NewServer(opts)
	if err != nil {
		logger.Fatal("create api server", "err", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.API.Addr, "nodes", len(registry.List()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "err", err)
	}
}
