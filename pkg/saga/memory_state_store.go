package saga

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStateStore is an in-memory implementation of StateStore for development and tests
type MemoryStateStore struct {
	mu          sync.RWMutex
	sagas       map[string]*ProvisioningSaga
	transitions map[string][]StateTransition
}

// NewMemoryStateStore creates a new in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		sagas:       make(map[string]*ProvisioningSaga),
		transitions: make(map[string][]StateTransition),
	}
}

// SaveSaga persists a new saga instance
func (s *MemoryStateStore) SaveSaga(ctx context.Context, saga *ProvisioningSaga) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sagas[saga.ID]; exists {
		return ErrSagaExists
	}

	s.sagas[saga.ID] = copySaga(saga)
	return nil
}

// GetSaga retrieves a saga by ID
func (s *MemoryStateStore) GetSaga(ctx context.Context, id string) (*ProvisioningSaga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	saga, exists := s.sagas[id]
	if !exists {
		return nil, ErrStateNotFound
	}

	return copySaga(saga), nil
}

// GetLatestByEmail retrieves the newest saga of kind for email
func (s *MemoryStateStore) GetLatestByEmail(ctx context.Context, email string, kind Kind) (*ProvisioningSaga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *ProvisioningSaga
	for _, saga := range s.sagas {
		if saga.Email != email || saga.Kind != kind {
			continue
		}
		if latest == nil || saga.CreatedAt.After(latest.CreatedAt) {
			latest = saga
		}
	}
	if latest == nil {
		return nil, ErrStateNotFound
	}

	return copySaga(latest), nil
}

// UpdateSaga updates an existing saga instance
func (s *MemoryStateStore) UpdateSaga(ctx context.Context, saga *ProvisioningSaga) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sagas[saga.ID]; !exists {
		return ErrStateNotFound
	}

	s.sagas[saga.ID] = copySaga(saga)
	return nil
}

// SaveTransition persists a state transition
func (s *MemoryStateStore) SaveTransition(ctx context.Context, transition *StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[transition.SagaID] = append(s.transitions[transition.SagaID], *transition)
	return nil
}

// GetTransitions retrieves all transitions for a saga
func (s *MemoryStateStore) GetTransitions(ctx context.Context, sagaID string) ([]StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.transitions[sagaID]), nil
}

// GetStale retrieves sagas in states not updated since olderThan
func (s *MemoryStateStore) GetStale(ctx context.Context, states []State, olderThan time.Time, limit int) ([]*ProvisioningSaga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*ProvisioningSaga
	for _, saga := range s.sagas {
		if slices.Contains(states, saga.State) && !saga.UpdatedAt.After(olderThan) {
			result = append(result, copySaga(saga))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// All returns every stored saga, oldest first
func (s *MemoryStateStore) All() []*ProvisioningSaga {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ProvisioningSaga, 0, len(s.sagas))
	for _, saga := range s.sagas {
		result = append(result, copySaga(saga))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Touch overwrites UpdatedAt, letting tests age a saga past the stale threshold
func (s *MemoryStateStore) Touch(id string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if saga, ok := s.sagas[id]; ok {
		saga.UpdatedAt = updatedAt
	}
}

// Count returns the number of stored sagas
func (s *MemoryStateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sagas)
}

func copySaga(saga *ProvisioningSaga) *ProvisioningSaga {
	if saga == nil {
		return nil
	}

	copied := *saga
	if saga.Data != nil {
		copied.Data = maps.Clone(saga.Data)
	}
	if saga.CompletedAt != nil {
		t := *saga.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
