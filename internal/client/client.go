// Package client is the HTTP client for the user API. It maps responses back
// onto the apperrors taxonomy so callers can tell bad input, duplicates,
// missing users and retryable transport failures apart.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
)

// DefaultTimeout bounds a single request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to the user API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUsers fetches one page of users.
func (c *Client) ListUsers(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	params := url.Values{}
	if s := strings.TrimSpace(q.Search); s != "" {
		params.Set("search", s)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/users"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result models.ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id string) (*models.PublicUser, error) {
	var user models.PublicUser
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.PublicUser, error) {
	var user models.PublicUser
	if err := c.do(ctx, http.MethodPost, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser sends a partial update.
func (c *Client) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest) (*models.PublicUser, error) {
	var user models.PublicUser
	if err := c.do(ctx, http.MethodPut, userPath(id), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil)
}

// Health checks that the API and its store are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}

// errorBody covers every error document the API produces.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
	Fields  []string          `json:"fields"`
	Error   string            `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &apperrors.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &apperrors.TransportError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &apperrors.TransportError{Status: resp.StatusCode, Message: "invalid response body", Err: err}
		}
		return nil
	}

	return decodeError(resp.StatusCode, raw)
}

func decodeError(status int, raw []byte) error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		eb.Message = strings.TrimSpace(string(raw))
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrUserNotFound, eb.Message)
	case status == http.StatusBadRequest && len(eb.Fields) > 0:
		return &apperrors.ConflictError{Fields: eb.Fields}
	case status == http.StatusBadRequest && len(eb.Errors) > 0:
		return &apperrors.ValidationError{Fields: eb.Errors}
	case status == http.StatusBadRequest:
		msg := eb.Message
		if eb.Error != "" {
			msg += ": " + eb.Error
		}
		return apperrors.NewValidation("body", msg)
	default:
		return &apperrors.TransportError{Status: status, Message: eb.Message}
	}
}

// IsRetryable reports whether err is worth retrying unchanged.
func IsRetryable(err error) bool {
	var te *apperrors.TransportError
	return errors.As(err, &te)
}
