package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
)

const testKey = "0123456789abcdef0123456789abcdef"

func testConfig(dsn string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Address: ":0"},
		App:      config.AppConfig{URL: "http://api.test", SiteURL: "http://site.test"},
		Database: config.DatabaseConfig{DSN: dsn},
		Auth: config.AuthConfig{
			SigningKey:      testKey,
			TokenExpiration: time.Hour,
			Issuer:          "go-accounts",
			Audience:        []string{"go-accounts"},
		},
		Links: config.LinksConfig{
			Key:            testKey,
			ActivationTTL:  time.Hour,
			EmailChangeTTL: time.Hour,
		},
		Mail:      config.MailConfig{Driver: "log", From: "no-reply@example.com"},
		RateLimit: config.RateLimitConfig{MailMax: 5, MailWindow: time.Minute},
		Log:       config.LogConfig{Level: "error", Format: "text"},
	}
}

func newTestApplication(t *testing.T) *application {
	t.Helper()
	ctx := context.Background()

	app, err := newApplication(ctx, testConfig("file:"+t.Name()+"?mode=memory&cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	_, err = accounts.Migrate(ctx, app.db)
	require.NoError(t, err)
	return app
}

func TestServerRoutes(t *testing.T) {
	app := newTestApplication(t)
	srv := app.newHTTPServer().WrappedRouter()

	err := accounts.NewHandlers(app.deps).RegisterUser.Execute(context.Background(), accounts.RegisterUserMessage{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
		Activate: true,
	})
	require.NoError(t, err)

	res, err := srv.Test(httptest.NewRequest(http.MethodGet, "/users", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var page map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&page))
	assert.NotEmpty(t, page)

	res, err = srv.Test(httptest.NewRequest(http.MethodGet, "/user", nil))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = srv.Test(httptest.NewRequest(http.MethodGet, "/user/activate?email=ada%40example.com&expires=1&signature=bad", nil))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "http://site.test?active-success=no&type=register", res.Header.Get("Location"))

	res, err = srv.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServerAuthenticatedRequest(t *testing.T) {
	app := newTestApplication(t)
	srv := app.newHTTPServer().WrappedRouter()

	var user *accounts.User
	err := accounts.NewHandlers(app.deps).RegisterUser.Execute(context.Background(), accounts.RegisterUserMessage{
		Email:      "grace@example.com",
		Password:   "correct horse",
		OnResponse: func(u *accounts.User) { user = u },
	})
	require.NoError(t, err)

	token, err := app.tokens.Generate(user.Identity(), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := srv.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "grace@example.com", body.Data["email"])
	assert.Equal(t, "pending", body.Data["status"])
}
