// Package worker executes queued node invocations.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/config"
	"github.com/dunamismax/curveflow/internal/domain"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/pipeline"
	"github.com/dunamismax/curveflow/internal/queue"
	"github.com/dunamismax/curveflow/internal/store"
	"github.com/dunamismax/curveflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type processor interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type HandlerOptions struct {
	Logger    *log.Logger
	Processor processor
	Store     store.InvocationStore
	// Webhooks may be nil when no invocation carries a webhook URL.
	Webhooks      webhookSender
	MaxActiveJobs int
}

// Handler runs node:execute tasks. It is independent of the asynq server so
// it can be driven directly.
type Handler struct {
	logger    *log.Logger
	processor processor
	store     store.InvocationStore
	webhooks  webhookSender
	sem       chan struct{}
	metrics   *metrics
	tracer    trace.Tracer
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if opts.Store == nil {
		return nil, errors.New("invocation store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		logger:    logger,
		processor: opts.Processor,
		store:     opts.Store,
		webhooks:  opts.Webhooks,
		sem:       make(chan struct{}, max(1, opts.MaxActiveJobs)),
		metrics:   newMetrics(),
		tracer:    otel.Tracer("curveflow/worker"),
	}, nil
}

func (h *Handler) MetricsHandler() http.Handler {
	return h.metrics.Handler()
}

func (h *Handler) HandleExecuteNode(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.InvocationStatusFailed

	payload, err := queue.ParseExecuteNodePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := h.tracer.Start(ctx, "worker.execute_node", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("invocation.id", payload.InvocationID),
		attribute.String("invocation.node", payload.Node),
		attribute.Int("invocation.inputs", len(payload.Inputs)),
	)
	defer span.End()
	defer func() {
		h.metrics.invocationDuration.WithLabelValues(payload.Node, outcome).Observe(time.Since(startedAt).Seconds())
		h.metrics.invocationsTotal.WithLabelValues(payload.Node, outcome).Inc()
	}()

	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.metrics.activeInvocations.Inc()
	defer func() {
		<-h.sem
		h.metrics.activeInvocations.Dec()
	}()

	logger := h.logger.With("invocation", payload.InvocationID, "node", payload.Node)
	logger.Info("executing")
	h.updateStatus(ctx, logger, payload.InvocationID, domain.InvocationStatusProcessing)

	result, err := h.processor.Process(ctx, pipeline.Request{
		InvocationID: payload.InvocationID,
		Node:         payload.Node,
		Inputs:       payload.Inputs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")

		permanent := isPermanent(err)
		if !permanent && !finalAttempt(ctx) {
			logger.Warn("execution failed, will retry", "err", err)
			return fmt.Errorf("execute node: %w", err)
		}

		logger.Error("execution failed", "err", err)
		h.complete(ctx, logger, payload.InvocationID, domain.InvocationStatusFailed, nil, err.Error())
		h.dispatchWebhook(ctx, logger, payload, webhook.EventInvocationFailed, map[string]any{
			"invocation_id": payload.InvocationID,
			"node":          payload.Node,
			"status":        domain.InvocationStatusFailed,
			"requested_at":  payload.RequestedAt,
			"failed_at":     time.Now().UTC(),
			"error":         err.Error(),
		})
		if permanent {
			return fmt.Errorf("execute node: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("execute node: %w", err)
	}

	doc, err := json.Marshal(result)
	if err != nil {
		span.RecordError(err)
		h.complete(ctx, logger, payload.InvocationID, domain.InvocationStatusFailed, nil, "result is not serializable")
		return fmt.Errorf("marshal result: %v: %w", err, asynq.SkipRetry)
	}

	h.complete(ctx, logger, payload.InvocationID, domain.InvocationStatusSucceeded, doc, "")
	for _, a := range result.Artifacts {
		h.metrics.artifactsTotal.WithLabelValues(a.Name).Inc()
	}
	logger.Info("executed", "artifacts", len(result.Artifacts), "elapsed", time.Since(startedAt).Round(time.Millisecond))

	h.dispatchWebhook(ctx, logger, payload, webhook.EventInvocationCompleted, map[string]any{
		"invocation_id": payload.InvocationID,
		"node":          payload.Node,
		"status":        domain.InvocationStatusSucceeded,
		"requested_at":  payload.RequestedAt,
		"completed_at":  time.Now().UTC(),
		"ui":            result.UI,
		"outputs":       result.Outputs,
		"artifacts":     result.Artifacts,
	})

	outcome = domain.InvocationStatusSucceeded
	span.SetStatus(codes.Ok, "executed")
	return nil
}

// isPermanent reports errors that a retry cannot fix: unknown nodes and
// inputs that do not bind.
func isPermanent(err error) bool {
	return errors.Is(err, node.ErrNodeNotFound) ||
		errors.Is(err, node.ErrMissingInput) ||
		errors.Is(err, node.ErrInvalidInput)
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return !ok || retried >= maxRetry
}

func (h *Handler) updateStatus(ctx context.Context, logger *log.Logger, invocationID, status string) {
	if _, err := h.store.UpdateStatus(ctx, invocationID, status); err != nil {
		logger.Warn("status update failed", "status", status, "err", err)
	}
}

func (h *Handler) complete(ctx context.Context, logger *log.Logger, invocationID, status string, result json.RawMessage, errMsg string) {
	if _, err := h.store.Complete(ctx, invocationID, status, result, errMsg); err != nil {
		logger.Warn("completing invocation failed", "status", status, "err", err)
	}
}

// dispatchWebhook delivers an event. Delivery failures are logged and
// counted; the invocation outcome stands.
func (h *Handler) dispatchWebhook(ctx context.Context, logger *log.Logger, payload queue.ExecuteNodePayload, event string, body map[string]any) {
	if payload.WebhookURL == "" || h.webhooks == nil {
		return
	}
	if err := h.webhooks.Send(ctx, payload.WebhookURL, event, body); err != nil {
		h.metrics.webhookDeliveries.WithLabelValues(event, "failed").Inc()
		logger.Error("webhook delivery failed", "event", event, "err", err)
		return
	}
	h.metrics.webhookDeliveries.WithLabelValues(event, "delivered").Inc()
}

// Server consumes the invocation queue with asynq.
type Server struct {
	logger  *log.Logger
	server  *asynq.Server
	handler *Handler
}

func NewServer(logger *log.Logger, queueCfg config.QueueConfig, workerCfg config.WorkerConfig, handler *Handler) *Server {
	return &Server{
		logger:  logger,
		handler: handler,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: max(1, workerCfg.Concurrency),
				Queues:      map[string]int{queueCfg.Name: 1},
				Logger:      asynqLogger{logger.WithPrefix("asynq")},
				LogLevel:    asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Error("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "err", err)
				}),
			},
		),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExecuteNode, s.handler.HandleExecuteNode)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.handler.MetricsHandler()
}

// asynqLogger adapts the process logger to asynq.Logger.
type asynqLogger struct {
	l *log.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal(fmt.Sprint(args...)) }
