package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wenlock/internal/apperrors"
	"wenlock/internal/client"
	"wenlock/internal/handlers"
	"wenlock/internal/listview"
	"wenlock/internal/models"
	"wenlock/internal/repositories"
	"wenlock/internal/services"
	"wenlock/internal/validation"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "a=1  b=2", want: []string{"a=1", "b=2"}},
		{in: `name="Ana Silva" email=ana@x.com`, want: []string{"name=Ana Silva", "email=ana@x.com"}},
		{in: `name=""`, want: []string{"name="}},
		{in: `name="Ana`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := splitArgs(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseForm(t *testing.T) {
	base := validation.UserForm{Name: "Ana", Email: "ana@x.com", Registration: "1234"}

	form, err := parseForm(`name="Ana Maria" password=ab12cd confirm=ab12cd`, base)
	require.NoError(t, err)
	assert.Equal(t, validation.UserForm{
		Name:            "Ana Maria",
		Email:           "ana@x.com",
		Registration:    "1234",
		Password:        "ab12cd",
		PasswordConfirm: "ab12cd",
	}, form)

	_, err = parseForm("role=admin", base)
	assert.ErrorContains(t, err, "unknown field")

	_, err = parseForm("name", base)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "a; b", describe(&apperrors.ValidationError{Fields: map[string]string{"y": "b", "x": "a"}}))
	assert.Equal(t, "Duplicate value for: email", describe(&apperrors.ConflictError{Fields: []string{"email"}}))
	assert.Equal(t, "user not found", describe(apperrors.ErrUserNotFound))
	assert.Equal(t, "the server could not be reached, try again", describe(&apperrors.TransportError{Status: 502}))
}

func TestConsoleSession(t *testing.T) {
	log := zap.NewNop()
	svc := services.NewUserService(repositories.NewMemoryUserRepository(), services.WithBcryptCost(bcrypt.MinCost))
	app := fiber.New(fiber.Config{
		JSONDecoder:  handlers.StrictJSONDecoder,
		ErrorHandler: handlers.ErrorHandler(log),
	})
	handlers.NewUserHandler(svc, validation.New(), log).RegisterRoutes(app)
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)

	api := client.New(srv.URL)
	var out bytes.Buffer
	con := newConsole(&out)
	list := listview.New(api, listview.WithQuietPeriod(time.Millisecond))
	t.Cleanup(list.Close)
	con.list = list
	con.api = api
	con.mutator = listview.NewMutator(api, list, validation.New(), log)

	script := strings.Join([]string{
		`:create name="Ana Silva" email=ana@x.com registration=1234 password=ab12cd confirm=ab12cd`,
		`:create name="Bia" email=ana@x.com registration=5678 password=ab12cd confirm=ab12cd`,
		`:create name=Bob`,
		`:size 0`,
		`:delete`,
		`:bogus`,
		`:quit`,
		`:create name="Never Run" email=n@x.com registration=9999 password=ab12cd confirm=ab12cd`,
	}, "\n")

	require.NoError(t, con.run(context.Background(), strings.NewReader(script)))

	got := out.String()
	assert.Contains(t, got, "created user ")
	assert.Contains(t, got, "! Duplicate value for: email")
	assert.Contains(t, got, "repeat the password")
	assert.Contains(t, got, "page size must be at least 1")
	assert.Contains(t, got, "usage: :delete ID")
	assert.Contains(t, got, `unknown command "bogus"`)

	page, err := api.ListUsers(context.Background(), models.ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}
