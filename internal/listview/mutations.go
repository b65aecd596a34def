package listview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
	"wenlock/internal/validation"
)

// UserAPI is the write side of the user API.
type UserAPI interface {
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.PublicUser, error)
	UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.PublicUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// Mutator submits create, edit and delete forms and refreshes the list view
// after every successful change.
type Mutator struct {
	api      UserAPI
	list     *Coordinator
	validate *validation.Validator
	logger   *zap.Logger
}

// NewMutator creates a Mutator that refreshes list on success.
func NewMutator(api UserAPI, list *Coordinator, validate *validation.Validator, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{api: api, list: list, validate: validate, logger: logger}
}

// Create checks the form in create mode and creates the user.
func (m *Mutator) Create(ctx context.Context, form validation.UserForm) (*models.PublicUser, error) {
	if err := m.check(form, validation.ModeCreate); err != nil {
		return nil, err
	}
	user, err := m.api.CreateUser(ctx, form.CreateRequest())
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	m.logger.Info("user created", zap.String("user_id", user.ID))
	m.list.Refresh()
	return user, nil
}

// Update checks the form in edit mode and updates user id. The password is
// only sent when one was typed.
func (m *Mutator) Update(ctx context.Context, id string, form validation.UserForm) (*models.PublicUser, error) {
	if err := m.check(form, validation.ModeEdit); err != nil {
		return nil, err
	}
	user, err := m.api.UpdateUser(ctx, id, form.UpdateRequest())
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	m.logger.Info("user updated", zap.String("user_id", id))
	m.list.Refresh()
	return user, nil
}

// Delete removes user id.
func (m *Mutator) Delete(ctx context.Context, id string) error {
	if err := m.api.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	m.logger.Info("user deleted", zap.String("user_id", id))
	m.list.Refresh()
	return nil
}

func (m *Mutator) check(form validation.UserForm, mode validation.Mode) error {
	if fields := m.validate.CheckForm(form, mode); len(fields) > 0 {
		return &apperrors.ValidationError{Fields: fields}
	}
	return nil
}
