package doctors

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines doctor storage.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	List(ctx context.Context, filter ListFilter) ([]*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	SetAvailability(ctx context.Context, id string, available bool) (*Doctor, error)
}

// InMemoryRepository keeps doctors in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{doctors: make(map[string]*Doctor)}
}

func (r *InMemoryRepository) Create(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return ErrEmailTaken
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// List returns matching doctors ordered by name.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if filter.Matches(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[d.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.doctors {
		if id != d.ID && strings.EqualFold(existing.Email, d.Email) {
			return ErrEmailTaken
		}
	}
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *InMemoryRepository) SetAvailability(ctx context.Context, id string, available bool) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Available = available
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	return &cp, nil
}
