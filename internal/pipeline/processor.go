package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/curveflow/internal/curves"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/storage"
)

const (
	ResultArtifact = "result.json"
	CubeArtifact   = "curves.cube"
)

var ErrEmitterRequired = errors.New("emitter is required")

type Request struct {
	InvocationID string
	Node         string
	Inputs       map[string]any
}

// File is an artifact rendered from a node result, before it is written.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Artifact struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
}

type Result struct {
	InvocationID string         `json:"invocation_id"`
	Node         string         `json:"node"`
	UI           map[string]any `json:"ui,omitempty"`
	Outputs      []any          `json:"outputs,omitempty"`
	Artifacts    []Artifact     `json:"artifacts,omitempty"`
}

type Executor interface {
	Execute(ctx context.Context, name string, raw map[string]any) (node.Result, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, files []File) ([]Artifact, error)
}

type Processor struct {
	executor Executor
	emitter  Emitter
}

func NewProcessor(executor Executor, emitter Emitter) (*Processor, error) {
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if emitter == nil {
		return nil, ErrEmitterRequired
	}
	return &Processor{executor: executor, emitter: emitter}, nil
}

func NewLocalProcessor(executor Executor, outputDir string) (*Processor, error) {
	return NewProcessor(executor, LocalFileEmitter{OutputDir: outputDir})
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InvocationID) == "" {
		return Result{}, errors.New("invocation_id is required")
	}
	if strings.TrimSpace(req.Node) == "" {
		return Result{}, errors.New("node is required")
	}

	res, err := p.executor.Execute(ctx, req.Node, req.Inputs)
	if err != nil {
		return Result{}, fmt.Errorf("execute stage node=%s: %w", req.Node, err)
	}

	out := Result{
		InvocationID: req.InvocationID,
		Node:         req.Node,
		UI:           res.UI,
		Outputs:      res.Outputs,
	}

	files, err := renderArtifacts(out)
	if err != nil {
		return Result{}, fmt.Errorf("render stage node=%s: %w", req.Node, err)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	artifacts, err := p.emitter.Emit(ctx, req, files)
	if err != nil {
		return Result{}, fmt.Errorf("emit stage node=%s: %w", req.Node, err)
	}
	out.Artifacts = artifacts
	return out, nil
}

// renderArtifacts always renders the result document, plus a .cube LUT when
// the node produced three equal-length curves.
func renderArtifacts(res Result) ([]File, error) {
	doc, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	files := []File{{Name: ResultArtifact, ContentType: storage.ContentTypeFor(ResultArtifact), Data: doc}}

	c, ok := curves.FromOutputs(res.Outputs)
	if !ok {
		return files, nil
	}
	var buf bytes.Buffer
	if err := c.WriteCube(&buf, res.Node); err != nil {
		if errors.Is(err, curves.ErrChannelLength) {
			return files, nil
		}
		return nil, err
	}
	return append(files, File{Name: CubeArtifact, ContentType: storage.ContentTypeFor(CubeArtifact), Data: buf.Bytes()}), nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, files []File) ([]Artifact, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}

	dir := filepath.Join(e.OutputDir, storage.CleanToken(req.InvocationID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		fullPath := filepath.Join(dir, storage.CleanFileName(f.Name))
		if err := os.WriteFile(fullPath, f.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", f.Name, err)
		}
		artifacts = append(artifacts, Artifact{
			Name:        f.Name,
			Path:        fullPath,
			ContentType: f.ContentType,
			Bytes:       len(f.Data),
		})
	}
	return artifacts, nil
}

// DiscardEmitter reports artifacts without writing them anywhere.
type DiscardEmitter struct{}

func (DiscardEmitter) Emit(_ context.Context, _ Request, files []File) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		artifacts = append(artifacts, Artifact{Name: f.Name, ContentType: f.ContentType, Bytes: len(f.Data)})
	}
	return artifacts, nil
}
