package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository. It works
// with the PostgreSQL and SQLite dialects.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create inserts a new user. The id is assigned here when empty.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	user.NameFolded = models.FoldName(user.Name)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if fields, ok := duplicateFields(err); ok {
			return &apperrors.ConflictError{Fields: fields}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// FindConflicts checks email and registration against other users.
func (r *GORMUserRepository) FindConflicts(ctx context.Context, email, registration, excludeID string) ([]string, error) {
	var taken []models.User
	err := r.db.WithContext(ctx).
		Select("email", "registration").
		Where("(email = ? OR registration = ?) AND id <> ?", email, registration, excludeID).
		Find(&taken).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check unique fields: %w", err)
	}
	return conflictingFields(taken, email, registration), nil
}

// List returns one page of users, newest first.
func (r *GORMUserRepository) List(ctx context.Context, q models.ListQuery) ([]models.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.User{})
	if search := strings.TrimSpace(q.Search); search != "" {
		// SQLite's LOWER only folds ASCII.
		base = base.Where(`name_folded LIKE ? ESCAPE '\'`, "%"+escapeLike(models.FoldName(search))+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []models.User
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(q.Offset()).
		Limit(q.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update writes the mutable fields of user and refreshes UpdatedAt.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	user.NameFolded = models.FoldName(user.Name)
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"name_folded":   user.NameFolded,
			"email":         user.Email,
			"registration":  user.Registration,
			"password_hash": user.PasswordHash,
			"updated_at":    user.UpdatedAt,
		})
	if res.Error != nil {
		if fields, ok := duplicateFields(res.Error); ok {
			return &apperrors.ConflictError{Fields: fields}
		}
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Delete removes a user by its ID.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *GORMUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func conflictingFields(taken []models.User, email, registration string) []string {
	var emailTaken, registrationTaken bool
	for _, u := range taken {
		emailTaken = emailTaken || u.Email == email
		registrationTaken = registrationTaken || u.Registration == registration
	}
	var fields []string
	if emailTaken {
		fields = append(fields, "email")
	}
	if registrationTaken {
		fields = append(fields, "registration")
	}
	return fields
}
