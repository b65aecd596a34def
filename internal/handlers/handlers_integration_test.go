package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wenlock/internal/database"
	"wenlock/internal/handlers"
	"wenlock/internal/models"
	"wenlock/internal/repositories"
	"wenlock/internal/services"
	"wenlock/internal/validation"
)

// setupApp sets up a Fiber app backed by a private in-memory SQLite database.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	app, _ := setupAppWithDB(t)
	return app
}

func setupAppWithDB(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, database.SQLiteMemoryDSN(uuid.NewString()), logger.Silent)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = database.Close(db) })

	log := zap.NewNop()
	userService := services.NewUserService(
		repositories.NewGORMUserRepository(db),
		services.WithBcryptCost(bcrypt.MinCost),
		services.WithLogger(log),
	)
	userHandler := handlers.NewUserHandler(userService, validation.New(), log)

	app := fiber.New(fiber.Config{
		JSONDecoder:  handlers.StrictJSONDecoder,
		ErrorHandler: handlers.ErrorHandler(log),
	})
	userHandler.RegisterRoutes(app)
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func createUser(t *testing.T, app *fiber.App, req models.CreateUserRequest) models.PublicUser {
	t.Helper()
	resp, raw := doJSON(t, app, http.MethodPost, "/users", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var user models.PublicUser
	require.NoError(t, json.Unmarshal(raw, &user))
	return user
}

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
	Fields  []string          `json:"fields"`
}

func decodeError(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body
}

var ana = models.CreateUserRequest{
	Name:         "Ana",
	Email:        "ana@example.com",
	Registration: "1001",
	Password:     "abc123",
}

func TestCreateUser(t *testing.T) {
	app := setupApp(t)

	t.Run("Success", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPost, "/users", ana)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.NotEmpty(t, body["id"])
		assert.Equal(t, "Ana", body["name"])
		assert.Equal(t, "ana@example.com", body["email"])
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "passwordHash")
		assert.NotContains(t, body, "PasswordHash")
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := ana
		dup.Registration = "2002"
		resp, raw := doJSON(t, app, http.MethodPost, "/users", dup)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeError(t, raw)
		assert.Equal(t, "Duplicate value for: email", body.Message)
		assert.Equal(t, []string{"email"}, body.Fields)
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPost, "/users", models.CreateUserRequest{
			Name:         "Ana 2",
			Email:        "not-an-email",
			Registration: "12",
			Password:     "abc",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeError(t, raw)
		assert.Equal(t, "Validation failed", body.Message)
		assert.Contains(t, body.Errors, "name")
		assert.Contains(t, body.Errors, "email")
		assert.Contains(t, body.Errors, "registration")
		assert.Contains(t, body.Errors, "password")
	})

	t.Run("UnknownField", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPost, "/users",
			`{"name":"Bia","email":"bia@example.com","registration":"3003","password":"abc123","role":"admin"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid request body", decodeError(t, raw).Message)
	})
}

func TestGetUser(t *testing.T) {
	app := setupApp(t)
	created := createUser(t, app, ana)

	resp, raw := doJSON(t, app, http.MethodGet, "/users/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.PublicUser
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "1001", got.Registration)
	assert.NotContains(t, string(raw), "assword")

	resp, raw = doJSON(t, app, http.MethodGet, "/users/01HZZZZZZZZZZZZZZZZZZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", decodeError(t, raw).Message)
}

func TestListUsers(t *testing.T) {
	app := setupApp(t)
	for _, u := range []models.CreateUserRequest{
		ana,
		{Name: "Bruno", Email: "bruno@example.com", Registration: "1002", Password: "abc123"},
		{Name: "Anderson", Email: "anderson@example.com", Registration: "1003", Password: "abc123"},
		{Name: "Carlos", Email: "carlos@example.com", Registration: "1004", Password: "abc123"},
	} {
		createUser(t, app, u)
	}

	t.Run("Defaults", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodGet, "/users", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.ListResult
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 10, result.Limit)
		assert.EqualValues(t, 4, result.Total)
		assert.Equal(t, 1, result.TotalPages)
		require.Len(t, result.Data, 4)
		// newest first
		assert.Equal(t, "Carlos", result.Data[0].Name)
		assert.Equal(t, "Ana", result.Data[3].Name)
	})

	t.Run("Search", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodGet, "/users?search=an&page=1&limit=15", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.ListResult
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.EqualValues(t, 2, result.Total)
		assert.Equal(t, 1, result.TotalPages)
		names := []string{}
		for _, u := range result.Data {
			names = append(names, u.Name)
		}
		assert.ElementsMatch(t, []string{"Ana", "Anderson"}, names)
	})

	t.Run("AccentedSearch", func(t *testing.T) {
		app := setupApp(t)
		createUser(t, app, models.CreateUserRequest{
			Name: "Ângela", Email: "angela@example.com", Registration: "2001", Password: "abc123",
		})

		for _, search := range []string{"%C3%A2ngela", "%C3%82NGELA"} { // ângela, ÂNGELA
			resp, raw := doJSON(t, app, http.MethodGet, "/users?search="+search, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var result models.ListResult
			require.NoError(t, json.Unmarshal(raw, &result))
			assert.EqualValues(t, 1, result.Total, search)
			require.Len(t, result.Data, 1)
			assert.Equal(t, "Ângela", result.Data[0].Name)
		}
	})

	t.Run("SecondPage", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodGet, "/users?page=2&limit=3", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.ListResult
		require.NoError(t, json.Unmarshal(raw, &result))
		assert.Equal(t, 2, result.TotalPages)
		require.Len(t, result.Data, 1)
		assert.Equal(t, "Ana", result.Data[0].Name)
	})

	t.Run("InvalidPaging", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodGet, "/users?page=0&limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeError(t, raw)
		assert.Contains(t, body.Errors, "page")
		assert.Contains(t, body.Errors, "limit")
	})
}

func TestUpdateUser(t *testing.T) {
	app := setupApp(t)
	created := createUser(t, app, ana)
	other := createUser(t, app, models.CreateUserRequest{
		Name: "Bruno", Email: "bruno@example.com", Registration: "1002", Password: "abc123",
	})

	t.Run("PartialWithoutPassword", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPut, "/users/"+created.ID, map[string]string{"name": "Ana Maria"})
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		var got models.PublicUser
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "Ana Maria", got.Name)
		assert.Equal(t, "ana@example.com", got.Email)
	})

	t.Run("KeepOwnEmail", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, "/users/"+created.ID, map[string]string{"email": "ana@example.com"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPut, "/users/"+created.ID, map[string]string{"registration": other.Registration})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, []string{"registration"}, decodeError(t, raw).Fields)
	})

	t.Run("InvalidPassword", func(t *testing.T) {
		resp, raw := doJSON(t, app, http.MethodPut, "/users/"+created.ID, map[string]string{"password": "abc"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decodeError(t, raw).Errors, "password")
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPut, "/users/missing", map[string]string{"name": "Nobody"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteUser(t *testing.T) {
	app := setupApp(t)
	created := createUser(t, app, ana)

	resp, raw := doJSON(t, app, http.MethodDelete, "/users/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User deleted successfully", decodeError(t, raw).Message)

	resp, _ = doJSON(t, app, http.MethodDelete, "/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/users/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	app := setupApp(t)
	resp, raw := doJSON(t, app, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, raw).Message)
}

func TestStoreFailureHidesInternals(t *testing.T) {
	app, db := setupAppWithDB(t)
	created := createUser(t, app, ana)
	require.NoError(t, database.Close(db))

	resp, raw := doJSON(t, app, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	assert.Equal(t, map[string]any{"message": "Could not list users"}, body)

	resp, raw = doJSON(t, app, http.MethodGet, "/users/"+created.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(raw), "sql")
}
