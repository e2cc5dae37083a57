package pipeline

import (
	"context"
	"errors"

	"github.com/dunamismax/curveflow/internal/storage"
)

type artifactWriter interface {
	PutArtifact(ctx context.Context, a storage.Artifact) (string, error)
}

type ObjectStoreEmitter struct {
	Storage artifactWriter
}

func NewObjectStoreProcessor(executor Executor, emitter ObjectStoreEmitter) (*Processor, error) {
	if emitter.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	return NewProcessor(executor, emitter)
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, files []File) ([]Artifact, error) {
	if e.Storage == nil {
		return nil, errors.New("storage client is required")
	}

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		key, err := e.Storage.PutArtifact(ctx, storage.Artifact{
			InvocationID: req.InvocationID,
			Node:         req.Node,
			Name:         f.Name,
			ContentType:  f.ContentType,
			Data:         f.Data,
		})
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Name:        f.Name,
			Path:        key,
			ContentType: f.ContentType,
			Bytes:       len(f.Data),
		})
	}
	return artifacts, nil
}
