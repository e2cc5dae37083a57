package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/curveflow/internal/domain"
)

func TestMemoryInvocationStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryInvocationStore()

	now := time.Now().UTC()
	if err := s.Create(ctx, domain.Invocation{
		ID:        "inv-1",
		Node:      "Curve Visualizer",
		Status:    domain.InvocationStatusCreated,
		Inputs:    map[string]any{"data_input": 1.0},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	inv, err := s.UpdateStatus(ctx, "inv-1", domain.InvocationStatusProcessing)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if inv.Status != domain.InvocationStatusProcessing {
		t.Fatalf("expected processing, got %s", inv.Status)
	}

	result := json.RawMessage(`{"ui":{"visualization_data":[1]}}`)
	if _, err := s.Complete(ctx, "inv-1", domain.InvocationStatusSucceeded, result, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	result[0] = 'X'

	got, ok, err := s.Get(ctx, "inv-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != domain.InvocationStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	if string(got.Result) != `{"ui":{"visualization_data":[1]}}` {
		t.Fatalf("expected stored result copy, got %s", got.Result)
	}
}

func TestMemoryInvocationStoreMissing(t *testing.T) {
	s := NewMemoryInvocationStore()
	if _, err := s.UpdateStatus(context.Background(), "nope", domain.InvocationStatusQueued); !errors.Is(err, ErrInvocationNotFound) {
		t.Fatalf("expected ErrInvocationNotFound, got %v", err)
	}
	if _, ok, _ := s.Get(context.Background(), "nope"); ok {
		t.Fatal("expected missing invocation")
	}
}

func TestOpenWithoutDSNUsesMemory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "  ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*MemoryInvocationStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
}
