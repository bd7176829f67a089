package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
	app_errors "github.com/spounge-ai/parishvault/internal/errors"
)

// InMemoryRegistry is a process-local registry for development mode and tests.
// Entries handed out are copies.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]*domain.TenantEntry
	byPublic map[uuid.UUID]int64
	now      func() time.Time
}

var _ domain.TenantRegistry = (*InMemoryRegistry)(nil)

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		byID:     make(map[int64]*domain.TenantEntry),
		byPublic: make(map[uuid.UUID]int64),
		now:      time.Now,
	}
}

func (r *InMemoryRegistry) Create(_ context.Context, entry *domain.TenantEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry cannot be nil", app_errors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPublic[entry.PublicID]; ok {
		return fmt.Errorf("parish %s: %w", entry.PublicID, app_errors.ErrAlreadyExists)
	}

	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = r.now().UTC()

	stored := *entry
	r.byID[stored.ID] = &stored
	r.byPublic[stored.PublicID] = stored.ID
	return nil
}

func (r *InMemoryRegistry) FindByPublicID(_ context.Context, publicID uuid.UUID) (*domain.TenantEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPublic[publicID]
	if !ok {
		return nil, fmt.Errorf("parish %s: %w", publicID, app_errors.ErrNotFound)
	}
	e := *r.byID[id]
	return &e, nil
}

func (r *InMemoryRegistry) UpdateEncryptedDescriptor(_ context.Context, id int64, ciphertext string, keyVersion int) error {
	if ciphertext == "" || keyVersion <= 0 {
		return fmt.Errorf("%w: ciphertext and positive key version required", app_errors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("parish %d: %w", id, app_errors.ErrNotFound)
	}
	e.EncryptedConnection = ciphertext
	e.KeyVersion = keyVersion
	return nil
}

func (r *InMemoryRegistry) ListAll(_ context.Context) ([]*domain.TenantEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.TenantEntry, 0, len(r.byID))
	for _, e := range r.byID {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
