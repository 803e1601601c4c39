package learning

import (
	"context"
	"sort"
	"sync"

	"github.com/gyasis/smalltalk-sub002/types"
)

// MemoryStore keeps behavior models in process memory. Suitable for
// development and tests; data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]*types.UserBehaviorModel
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]*types.UserBehaviorModel)}
}

func (s *MemoryStore) Load(ctx context.Context, userID string) (*types.UserBehaviorModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	model, ok := s.models[userID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return model.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, model *types.UserBehaviorModel) error {
	if model == nil || model.UserID == "" {
		return ErrInvalidModel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.models[model.UserID] = model.Clone()
	return nil
}

func (s *MemoryStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	users := make([]string, 0, len(s.models))
	for id := range s.models {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
