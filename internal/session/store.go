package session

import (
	"context"
	"sync"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// Store holds the process-wide session state.
type Store interface {
	Load(ctx context.Context) (domain.SessionState, error)
	// MarkExpired reports true only for the call that moved valid to expired.
	MarkExpired(ctx context.Context) (bool, error)
	MarkValid(ctx context.Context) error
}

// MemoryStore keeps the state in process. The zero value is valid.
type MemoryStore struct {
	mu      sync.Mutex
	expired bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired {
		return domain.SessionExpired, nil
	}
	return domain.SessionValid, nil
}

func (s *MemoryStore) MarkExpired(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expired {
		return false, nil
	}
	s.expired = true
	return true, nil
}

func (s *MemoryStore) MarkValid(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired = false
	return nil
}
