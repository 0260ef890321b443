package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/dispenser/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

// Save persists a copy of the snapshot.
func (s *Store) Save(ctx context.Context, machineID string, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[machineID] = *snap
	return nil
}

// Load returns a copy so the caller can't mutate store state directly by pointer.
func (s *Store) Load(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[machineID]
	if !ok {
		return nil, domain.ErrMachineNotFound
	}
	return &snap, nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, machineID)
	return nil
}

// List returns stored machine IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
