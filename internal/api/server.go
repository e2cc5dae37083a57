// Package api serves the node catalog over HTTP: synchronous execution,
// asynchronous invocations and their artifacts.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/domain"
	"github.com/dunamismax/curveflow/internal/id"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/pipeline"
	"github.com/dunamismax/curveflow/internal/queue"
	"github.com/dunamismax/curveflow/internal/ratelimit"
	"github.com/dunamismax/curveflow/internal/storage"
	"github.com/dunamismax/curveflow/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type catalog interface {
	pipeline.Executor
	List() []node.Descriptor
	Lookup(name string) (node.Descriptor, bool)
}

type queueEnqueuer interface {
	EnqueueExecuteNode(ctx context.Context, payload queue.ExecuteNodePayload) (*asynq.TaskInfo, error)
}

type artifactLinker interface {
	ArtifactURL(ctx context.Context, invocationID, name string, expiry time.Duration) (string, error)
}

type Options struct {
	Logger   *log.Logger
	Registry catalog
	Store    store.InvocationStore
	// Queue may be nil; asynchronous invocations then answer 503.
	Queue queueEnqueuer
	// Storage may be nil; artifact links then answer 501.
	Storage    artifactLinker
	PresignTTL time.Duration

	RateLimiter           ratelimit.Limiter
	RateLimitUserIDHeader string
	Tracer                trace.Tracer
}

type Server struct {
	logger       *log.Logger
	registry     catalog
	store        store.InvocationStore
	queue        queueEnqueuer
	storage    artifactLinker
	presignTTL time.Duration
	syncRunner *pipeline.Processor

	rateLimiter           ratelimit.Limiter
	rateLimitUserIDHeader string
	tracer                trace.Tracer
	metrics               *metrics

	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("node registry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("invocation store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	presignTTL := opts.PresignTTL
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	userHeader := strings.TrimSpace(opts.RateLimitUserIDHeader)
	if userHeader == "" {
		userHeader = "X-User-ID"
	}

	executor, err := pipeline.NewProcessor(opts.Registry, pipeline.DiscardEmitter{})
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:                logger,
		registry:              opts.Registry,
		store:                 opts.Store,
		queue:                 opts.Queue,
		storage:               opts.Storage,
		presignTTL:            presignTTL,
		syncRunner:            executor,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: userHeader,
		tracer:                opts.Tracer,
		metrics:               newMetrics(),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	s.handler = s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/nodes", s.handleListNodes)
	s.mux.HandleFunc("GET /v1/nodes/{name}", s.handleGetNode)
	s.mux.HandleFunc("POST /v1/nodes/{name}/execute", s.handleExecuteNode)
	s.mux.HandleFunc("POST /v1/invocations", s.handleCreateInvocation)
	s.mux.HandleFunc("GET /v1/invocations/{id}", s.handleGetInvocation)
	s.mux.HandleFunc("GET /v1/invocations/{id}/artifacts/{artifact}", s.handleGetArtifact)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"nodes": s.registry.List()})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.registry.Lookup(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type executeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

func (s *Server) handleExecuteNode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("curveflow.node", name))

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.syncRunner.Process(r.Context(), pipeline.Request{
		InvocationID: id.New(),
		Node:         name,
		Inputs:       req.Inputs,
	})
	if err != nil {
		s.metrics.nodeExecutions.WithLabelValues(name, "error").Inc()
		status := statusForNodeError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("execute node failed", "node", name, "err", err)
			writeError(w, status, "failed to execute node")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	s.metrics.nodeExecutions.WithLabelValues(name, "ok").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"node":    res.Node,
		"ui":      res.UI,
		"outputs": res.Outputs,
	})
}

func (s *Server) handleCreateInvocation(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "asynchronous invocations are unavailable")
		return
	}

	var req domain.CreateInvocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, ok := s.registry.Lookup(req.Node)
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	if _, err := node.Bind(d.Inputs, req.Inputs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	inv := domain.Invocation{
		ID:         id.New(),
		Node:       d.Name,
		Status:     domain.InvocationStatusCreated,
		Inputs:     req.Inputs,
		WebhookURL: strings.TrimSpace(req.WebhookURL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(r.Context(), inv); err != nil {
		s.logger.Error("create invocation failed", "invocation", inv.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create invocation")
		return
	}

	taskInfo, err := s.queue.EnqueueExecuteNode(r.Context(), queue.ExecuteNodePayload{
		InvocationID: inv.ID,
		Node:         inv.Node,
		Inputs:       inv.Inputs,
		WebhookURL:   inv.WebhookURL,
		RequestedAt:  now,
	})
	if err != nil {
		s.logger.Error("enqueue failed", "invocation", inv.ID, "err", err)
		if _, cerr := s.store.Complete(r.Context(), inv.ID, domain.InvocationStatusFailed, nil, "enqueue failed"); cerr != nil {
			s.logger.Warn("mark invocation failed", "invocation", inv.ID, "err", cerr)
		}
		writeError(w, http.StatusInternalServerError, "failed to enqueue invocation")
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.store.UpdateStatus(r.Context(), inv.ID, domain.InvocationStatusQueued); err != nil {
		s.logger.Warn("update status failed", "invocation", inv.ID, "err", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"invocation_id": inv.ID,
		"node":          inv.Node,
		"status":        domain.InvocationStatusQueued,
		"queue":         taskInfo.Queue,
		"task_id":       taskInfo.ID,
		"status_url":    fmt.Sprintf("/v1/invocations/%s", inv.ID),
	})
}

func (s *Server) handleGetInvocation(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadInvocation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, http.StatusNotImplemented, "object storage is not configured")
		return
	}
	inv, ok := s.loadInvocation(w, r)
	if !ok {
		return
	}
	if inv.Status != domain.InvocationStatusSucceeded {
		writeError(w, http.StatusNotFound, "invocation has no artifacts yet")
		return
	}

	artifact := r.PathValue("artifact")
	if artifact != pipeline.ResultArtifact && artifact != pipeline.CubeArtifact {
		writeError(w, http.StatusNotFound, "unknown artifact")
		return
	}

	url, err := s.storage.ArtifactURL(r.Context(), inv.ID, artifact, s.presignTTL)
	if errors.Is(err, storage.ErrArtifactNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if err != nil {
		s.logger.Error("presign artifact failed", "invocation", inv.ID, "artifact", artifact, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to generate artifact URL")
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *Server) loadInvocation(w http.ResponseWriter, r *http.Request) (domain.Invocation, bool) {
	invocationID := r.PathValue("id")
	inv, ok, err := s.store.Get(r.Context(), invocationID)
	if err != nil {
		s.logger.Error("fetch invocation failed", "invocation", invocationID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load invocation")
		return domain.Invocation{}, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "invocation not found")
		return domain.Invocation{}, false
	}
	return inv, true
}

func statusForNodeError(err error) int {
	switch {
	case errors.Is(err, node.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, node.ErrMissingInput), errors.Is(err, node.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 4 << 20
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
