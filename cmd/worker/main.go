package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/config"
	"github.com/dunamismax/curveflow/internal/curvenodes"
	"github.com/dunamismax/curveflow/internal/logging"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/pipeline"
	"github.com/dunamismax/curveflow/internal/storage"
	"github.com/dunamismax/curveflow/internal/store"
	"github.com/dunamismax/curveflow/internal/telemetry"
	"github.com/dunamismax/curveflow/internal/webhook"
	"github.com/dunamismax/curveflow/internal/worker"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("CURVEFLOW_ENV_FILE")); err != nil {
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
	}
	cfg := config.Load()
	logger := logging.New("worker", cfg.Log)
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "curveflow-worker", cfg.Trace, logger)
	if err != nil {
		logger.Fatal("setup tracing", "err", err)
	}
	defer shutdownTracing(context.Background())

	registry := node.NewRegistry()
	if err := registry.Install(curvenodes.New(logger)); err != nil {
		logger.Fatal("install nodes", "err", err)
	}

	invocations, closeStore, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open invocation store", "err", err)
	}
	defer closeStore()

	processor, err := newProcessor(ctx, cfg, registry)
	if err != nil {
		logger.Fatal("create processor", "err", err)
	}

	handler, err := worker.NewHandler(worker.HandlerOptions{
		Logger:    logger,
		Processor: processor,
		Store:     invocations,
		Webhooks: webhook.NewClient(webhook.Config{
			SigningSecret:  cfg.Webhook.SigningSecret,
			Timeout:        cfg.Webhook.Timeout,
			MaxAttempts:    cfg.Webhook.MaxAttempts,
			InitialBackoff: cfg.Webhook.InitialBackoff,
			MaxBackoff:     cfg.Webhook.MaxBackoff,
		}),
		MaxActiveJobs: cfg.Worker.MaxActiveJobs,
	})
	if err != nil {
		logger.Fatal("create handler", "err", err)
	}

	srv := worker.NewServer(logger, cfg.Queue, cfg.Worker, handler)
	go serveMetrics(logger, cfg.Worker.MetricsAddr, srv.MetricsHandler())

	logger.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"max_active_jobs", cfg.Worker.MaxActiveJobs,
		"queue", cfg.Queue.Name,
		"redis", cfg.Queue.RedisAddr,
		"emitter", cfg.Worker.Emitter,
	)
	if err := srv.Run(); err != nil {
		logger.Fatal("worker failed", "err", err)
	}
}

func newProcessor(ctx context.Context, cfg config.Config, registry *node.Registry) (*pipeline.Processor, error) {
	switch cfg.Worker.Emitter {
	case "", "local":
		return pipeline.NewLocalProcessor(registry, cfg.Worker.LocalOutputDir)
	case "object":
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
			Prefix:   cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, err
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := storageClient.EnsureBucket(bucketCtx); err != nil {
			return nil, err
		}
		return pipeline.NewObjectStoreProcessor(registry, pipeline.ObjectStoreEmitter{Storage: storageClient})
	default:
		return nil, errors.New("WORKER_EMITTER must be local or object")
	}
}

func serveMetrics(logger *log.Logger, addr string, handler http.Handler) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "err", err)
	}
}
