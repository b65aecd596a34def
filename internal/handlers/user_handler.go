package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
	"wenlock/internal/validation"
)

// UserService is the business logic the handler delegates to.
type UserService interface {
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.PublicUser, error)
	GetUser(ctx context.Context, id string) (*models.PublicUser, error)
	ListUsers(ctx context.Context, q models.ListQuery) (*models.ListResult, error)
	UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.PublicUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	service  UserService
	validate *validation.Validator
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service UserService, validate *validation.Validator, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers the user routes with the Fiber app.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/:id", h.HandleGetUser)
	userRoutes.Put("/:id", h.HandleUpdateUser)
	userRoutes.Delete("/:id", h.HandleDeleteUser)
}

// HandleListUsers returns one page of users, optionally filtered by name.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	q := models.ListQuery{Search: c.Query("search")}

	fields := make(map[string]string)
	var ok bool
	if q.Page, ok = positiveIntQuery(c, "page", models.DefaultPage); !ok {
		fields["page"] = "page must be an integer greater than or equal to 1"
	}
	if q.Limit, ok = positiveIntQuery(c, "limit", models.DefaultLimit); !ok {
		fields["limit"] = "limit must be an integer greater than or equal to 1"
	}
	if len(fields) > 0 {
		return respondError(c, h.logger, "list users", &apperrors.ValidationError{Fields: fields})
	}

	result, err := h.service.ListUsers(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.logger, "list users", err)
	}
	return c.JSON(result)
}

// HandleGetUser returns a single user.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "retrieve user", err)
	}
	return c.JSON(user)
}

// HandleCreateUser validates the payload and creates a user.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondError(c, h.logger, "create user", err)
	}

	user, err := h.service.CreateUser(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, "create user", err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleUpdateUser applies a partial update.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var req models.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondError(c, h.logger, "update user", err)
	}

	user, err := h.service.UpdateUser(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, "update user", err)
	}
	return c.JSON(user)
}

// HandleDeleteUser removes a user.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "delete user", err)
	}
	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// positiveIntQuery parses an optional integer query parameter >= 1.
func positiveIntQuery(c *fiber.Ctx, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
