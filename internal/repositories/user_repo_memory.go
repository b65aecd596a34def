package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
)

type memoryUser struct {
	user models.User
	seq  uint64
}

// MemoryUserRepository is an in-memory implementation of UserRepository.
// Uniqueness checks and writes happen under one lock.
type MemoryUserRepository struct {
	users map[string]memoryUser
	seq   uint64
	now   func() time.Time
	mu    sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]memoryUser),
		now:   time.Now,
	}
}

// Create adds a new user.
func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fields := r.conflictsLocked(user.Email, user.Registration, ""); len(fields) > 0 {
		return &apperrors.ConflictError{Fields: fields}
	}
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := r.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	r.seq++
	r.users[user.ID] = memoryUser{user: *user, seq: r.seq}
	return nil
}

// GetByID returns a user by its ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	user := stored.user
	return &user, nil
}

// FindConflicts checks email and registration against other users.
func (r *MemoryUserRepository) FindConflicts(_ context.Context, email, registration, excludeID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conflictsLocked(email, registration, excludeID), nil
}

// List returns one page of users, newest first, ties broken by reverse
// insertion order.
func (r *MemoryUserRepository) List(_ context.Context, q models.ListQuery) ([]models.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := models.FoldName(strings.TrimSpace(q.Search))
	matches := make([]memoryUser, 0, len(r.users))
	for _, stored := range r.users {
		if needle == "" || strings.Contains(models.FoldName(stored.user.Name), needle) {
			matches = append(matches, stored)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.user.CreatedAt.Equal(b.user.CreatedAt) {
			return a.user.CreatedAt.After(b.user.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(matches))
	start := q.Offset()
	if start >= len(matches) {
		return []models.User{}, total, nil
	}
	end := start + q.Limit
	if end > len(matches) {
		end = len(matches)
	}
	page := make([]models.User, 0, end-start)
	for _, stored := range matches[start:end] {
		page = append(page, stored.user)
	}
	return page, total, nil
}

// Update modifies an existing user.
func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if fields := r.conflictsLocked(user.Email, user.Registration, user.ID); len(fields) > 0 {
		return &apperrors.ConflictError{Fields: fields}
	}
	user.CreatedAt = stored.user.CreatedAt
	user.UpdatedAt = r.now()
	stored.user = *user
	r.users[user.ID] = stored
	return nil
}

// Delete removes a user by its ID.
func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// Ping always succeeds.
func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryUserRepository) conflictsLocked(email, registration, excludeID string) []string {
	taken := make([]models.User, 0, 2)
	for id, stored := range r.users {
		if id == excludeID {
			continue
		}
		if stored.user.Email == email || stored.user.Registration == registration {
			taken = append(taken, stored.user)
		}
	}
	return conflictingFields(taken, email, registration)
}
