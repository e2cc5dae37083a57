package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dunamismax/curveflow/internal/domain"
)

var ErrInvocationNotFound = errors.New("invocation not found")

type InvocationStore interface {
	Create(ctx context.Context, inv domain.Invocation) error
	Get(ctx context.Context, id string) (domain.Invocation, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Invocation, error)
	// Complete stores the final status together with the result or error.
	Complete(ctx context.Context, id, status string, result json.RawMessage, errMsg string) (domain.Invocation, error)
}

// Open returns the Postgres store for a non-empty DSN and the in-memory
// store otherwise. The close func is never nil.
func Open(ctx context.Context, dsn string) (InvocationStore, func() error, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemoryInvocationStore(), func() error { return nil }, nil
	}
	pg, err := NewPostgresInvocationStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
