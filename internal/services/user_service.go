package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
	"wenlock/internal/repositories"
)

// DefaultBcryptCost matches the cost used by existing password hashes.
const DefaultBcryptCost = 10

// EventPublisher announces committed user mutations.
type EventPublisher interface {
	PublishUserEvent(event models.UserEvent) error
}

// UserService handles business logic for user management.
type UserService struct {
	repo       repositories.UserRepository
	events     EventPublisher
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// Option configures a UserService.
type Option func(*UserService)

// WithEventPublisher publishes a UserEvent after every successful mutation.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *UserService) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *UserService) { s.logger = l }
}

// WithBcryptCost overrides DefaultBcryptCost.
func WithBcryptCost(cost int) Option {
	return func(s *UserService) { s.bcryptCost = cost }
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository, opts ...Option) *UserService {
	s := &UserService{
		repo:       repo,
		logger:     zap.NewNop(),
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser hashes the password and stores a new user.
func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.PublicUser, error) {
	if err := s.checkUnique(ctx, req.Email, req.Registration, ""); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Registration: req.Registration,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.publish(models.EventUserCreated, user.ID)
	public := user.Public()
	return &public, nil
}

// GetUser retrieves a single user by its ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.PublicUser, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// ListUsers returns one page of users whose name contains q.Search.
func (s *UserService) ListUsers(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	if q.Page < 1 {
		return nil, apperrors.NewValidation("page", "page must be an integer greater than or equal to 1")
	}
	if q.Limit < 1 {
		return nil, apperrors.NewValidation("limit", "limit must be an integer greater than or equal to 1")
	}
	q.Search = strings.TrimSpace(q.Search)

	users, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	data := make([]models.PublicUser, 0, len(users))
	for i := range users {
		data = append(data, users[i].Public())
	}
	return &models.ListResult{
		Data:       data,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: models.TotalPages(total, q.Limit),
	}, nil
}

// UpdateUser applies the non-nil fields of req. The stored hash is replaced
// only when a new password is supplied.
func (s *UserService) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.PublicUser, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Registration != nil {
		user.Registration = *req.Registration
	}
	if req.Email != nil || req.Registration != nil {
		if err := s.checkUnique(ctx, user.Email, user.Registration, user.ID); err != nil {
			return nil, err
		}
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}

	s.publish(models.EventUserUpdated, user.ID)
	public := user.Public()
	return &public, nil
}

// DeleteUser removes a user by its ID.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	s.publish(models.EventUserDeleted, id)
	return nil
}

// Ping checks that the store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *UserService) checkUnique(ctx context.Context, email, registration, excludeID string) error {
	fields, err := s.repo.FindConflicts(ctx, email, registration, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check unique fields: %w", err)
	}
	if len(fields) > 0 {
		return &apperrors.ConflictError{Fields: fields}
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *UserService) publish(eventType, userID string) {
	if s.events == nil {
		return
	}
	event := models.UserEvent{Type: eventType, UserID: userID, OccurredAt: s.now().UTC()}
	if err := s.events.PublishUserEvent(event); err != nil {
		s.logger.Warn("failed to publish user event",
			zap.String("type", eventType),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
