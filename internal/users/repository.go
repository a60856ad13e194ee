package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/doctor-booking-platform/internal/identity"
)

// Repository defines the interface for user storage
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*User, error)
	Update(ctx context.Context, u *User) error
	CountByRole(ctx context.Context, role identity.Role) (int, error)
}

// InMemoryRepository keeps users in process memory for development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: make(map[string]*User)}
}

// Create stores u, assigning an id and timestamps when missing.
func (r *InMemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(u, ""); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// GetByID retrieves a user by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.find(func(u *User) bool { return u.ID == id })
}

// GetByEmail matches case-insensitively.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	if phone == "" {
		return nil, ErrNotFound
	}
	return r.find(func(u *User) bool { return u.Phone == phone })
}

func (r *InMemoryRepository) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return r.find(func(u *User) bool { return u.GoogleID == googleID })
}

// Update replaces the stored user.
func (r *InMemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	if err := r.checkUniqueLocked(u, u.ID); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// CountByRole counts accounts with role.
func (r *InMemoryRepository) CountByRole(ctx context.Context, role identity.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) find(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) checkUniqueLocked(u *User, selfID string) error {
	for id, existing := range r.users {
		if id == selfID {
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return ErrPhoneTaken
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return ErrGoogleIDTaken
		}
	}
	return nil
}
