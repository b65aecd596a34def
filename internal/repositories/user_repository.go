package repositories

import (
	"context"

	"wenlock/internal/models"
)

// UserRepository defines the interface for user data access.
//
// Implementations enforce email and registration uniqueness themselves and
// report violations as *apperrors.ConflictError. Missing ids are reported as
// apperrors.ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// FindConflicts lists which of email and registration already belong to
	// a user other than excludeID.
	FindConflicts(ctx context.Context, email, registration, excludeID string) ([]string, error)
	// List returns one page of users matching q and the number of matches.
	List(ctx context.Context, q models.ListQuery) ([]models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
