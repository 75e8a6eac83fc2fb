package memory

import (
	"context"
	"sync"

	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
)

// IdempotencyStore implements port/idempotency.Store for a single process.
type IdempotencyStore struct {
	mu        sync.RWMutex
	responses map[string]portidempotency.Response
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{responses: make(map[string]portidempotency.Response)}
}

func (s *IdempotencyStore) Check(_ context.Context, key string) (portidempotency.Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[key]
	return resp, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, key, operation string, resp portidempotency.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responses[key]; !exists {
		resp.Operation = operation
		resp.Body = append([]byte(nil), resp.Body...)
		s.responses[key] = resp
	}
	return nil
}
