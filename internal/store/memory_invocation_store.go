package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dunamismax/curveflow/internal/domain"
)

type MemoryInvocationStore struct {
	mu          sync.RWMutex
	invocations map[string]domain.Invocation
}

func NewMemoryInvocationStore() *MemoryInvocationStore {
	return &MemoryInvocationStore{
		invocations: make(map[string]domain.Invocation),
	}
}

func (s *MemoryInvocationStore) Create(_ context.Context, inv domain.Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations[inv.ID] = inv
	return nil
}

func (s *MemoryInvocationStore) Get(_ context.Context, id string) (domain.Invocation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invocations[id]
	return inv, ok, nil
}

func (s *MemoryInvocationStore) UpdateStatus(_ context.Context, id, status string) (domain.Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invocations[id]
	if !ok {
		return domain.Invocation{}, ErrInvocationNotFound
	}

	inv.Status = status
	inv.UpdatedAt = time.Now().UTC()
	s.invocations[id] = inv
	return inv, nil
}

func (s *MemoryInvocationStore) Complete(_ context.Context, id, status string, result json.RawMessage, errMsg string) (domain.Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invocations[id]
	if !ok {
		return domain.Invocation{}, ErrInvocationNotFound
	}

	inv.Status = status
	inv.Result = append(json.RawMessage(nil), result...)
	inv.Error = errMsg
	inv.UpdatedAt = time.Now().UTC()
	s.invocations[id] = inv
	return inv, nil
}
