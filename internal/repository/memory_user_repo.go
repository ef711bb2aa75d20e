package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// MemoryUserRepo is an in-process domain.UserRepository for development and tests.
// It hands out copies so callers can never mutate stored records in place.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryUserRepo creates an empty store.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryUserRepo) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	filter = filter.Normalize()
	search := strings.ToLower(filter.Search)

	r.mu.RLock()
	matches := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		matches = append(matches, clone(u))
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].Email < matches[j].Email
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	total := len(matches)
	from := min(filter.Offset(), total)
	to := min(from+filter.PageSize, total)
	return matches[from:to], total, nil
}

// Create enforces email uniqueness under the write lock, mirroring the UNIQUE constraint.
func (r *MemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return domain.ErrEmailTaken
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = clone(user)
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrNotFound
	}

	user.UpdatedAt = time.Now().UTC()
	updated := clone(user)
	// Email and role are immutable through updates.
	updated.Email = stored.Email
	updated.Role = stored.Role
	updated.CreatedAt = stored.CreatedAt
	r.byID[user.ID] = updated
	return nil
}

func (r *MemoryUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	updated := clone(stored)
	updated.Role = role
	updated.UpdatedAt = time.Now().UTC()
	r.byID[id] = updated
	return nil
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.LastDonation != nil {
		t := *u.LastDonation
		c.LastDonation = &t
	}
	return &c
}
