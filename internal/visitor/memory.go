package visitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-process store for dev/testing.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]*Entry)}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) (*Entry, error) {
	in := cloneEntry(e)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = StatusPending
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[in.ID] = in
	r.order = append(r.order, in.ID)
	return cloneEntry(in), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (r *MemoryRepository) FindByNameAndEmail(_ context.Context, name, email string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if e.Name == name && e.Email == email {
			return cloneEntry(e), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Transition(_ context.Context, id string, status Status, at time.Time) (*Entry, error) {
	if !status.Terminal() {
		return nil, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != StatusPending {
		return cloneEntry(e), ErrAlreadyDecided
	}
	e.Status = status
	stamp := at
	if status == StatusApproved {
		e.ApprovedAt = &stamp
	} else {
		e.DisapprovedAt = &stamp
	}
	return cloneEntry(e), nil
}

func (r *MemoryRepository) MarkNotified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.NotificationSent = true
	return nil
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*Entry, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)

	r.mu.RLock()
	defer r.mu.RUnlock()
	res := []*Entry{}
	skipped := 0
	for i := len(r.order) - 1; i >= 0 && len(res) < limit; i-- {
		e := r.entries[r.order[i]]
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		res = append(res, cloneEntry(e))
	}
	return res, nil
}
