package stores

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Repository is the store directory.
type Repository interface {
	// List returns every store ordered by SortStores.
	List(ctx context.Context) ([]Store, error)
	Get(ctx context.Context, id string) (*Store, error)
	Upsert(ctx context.Context, store *Store) error
}

// InMemoryRepository keeps stores in a map. Used for local runs and tests.
type InMemoryRepository struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewInMemoryRepository creates a repository seeded with the given stores.
func NewInMemoryRepository(seed ...Store) *InMemoryRepository {
	repo := &InMemoryRepository{stores: make(map[string]Store, len(seed))}
	for _, s := range seed {
		repo.stores[s.ID] = s
	}
	return repo
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Store, error) {
	r.mu.RLock()
	out := make([]Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	r.mu.RUnlock()
	SortStores(out)
	return out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrStoreNotFound
	}
	return &s, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, store *Store) error {
	if err := store.Validate(); err != nil {
		return err
	}
	store.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	r.stores[store.ID] = *store
	r.mu.Unlock()
	return nil
}
