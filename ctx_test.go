package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClaims(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return claims when present in context",
			setupCtx: func() context.Context {
				claims := &JWTClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
					UID:      "user123",
					UserRole: "admin",
				}
				return WithClaimsContext(context.Background(), claims)
			},
			wantOK: true,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), claimsCtxKey, "not-a-claims-object")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims, gotOK := GetClaims(tt.setupCtx())

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				require.NotNil(t, gotClaims)
				assert.Equal(t, "user123", gotClaims.Subject())
				assert.Equal(t, "user123", gotClaims.UserID())
				assert.Equal(t, "admin", gotClaims.Role())
			} else {
				assert.Nil(t, gotClaims)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithContext(context.Background(), nil))
	assert.False(t, ok, "nil user is not a user")

	user := &User{ID: uuid.New(), Username: "ada"}
	got, ok := FromContext(WithContext(context.Background(), user))
	require.True(t, ok)
	assert.Same(t, user, got)
}

func TestRouterStore(t *testing.T) {
	user := &User{ID: uuid.New(), Role: RoleMember}
	claims := &JWTClaims{UID: user.ID.String(), UserRole: string(RoleMember)}

	srv := NewFiberServer(DiscardLogger())
	srv.Router().Get("/anon", func(ctx router.Context) error {
		_, hasUser := CurrentUser(ctx)
		_, hasClaims := GetRouterClaims(ctx, "")
		assert.False(t, hasUser)
		assert.False(t, hasClaims)
		return ctx.NoContent(http.StatusNoContent)
	})
	srv.Router().Get("/auth", func(ctx router.Context) error {
		got, ok := CurrentUser(ctx)
		assert.True(t, ok)
		assert.Same(t, user, got)

		gotClaims, ok := GetRouterClaims(ctx, "")
		assert.True(t, ok)
		assert.Equal(t, user.ID.String(), gotClaims.UserID())
		return ctx.NoContent(http.StatusNoContent)
	}, func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			ctx.Set(ClaimsStoreKey, AuthClaims(claims))
			ctx.Set(UserStoreKey, user)
			return next(ctx)
		}
	})

	for _, path := range []string{"/anon", "/auth"} {
		res, err := srv.WrappedRouter().Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
	}
}

func TestRawQueryIsCaptured(t *testing.T) {
	var got string
	srv := NewFiberServer(DiscardLogger())
	srv.Router().Get("/confirm", func(ctx router.Context) error {
		got = RawQuery(ctx.Context())
		return ctx.NoContent(http.StatusNoContent)
	})

	res, err := srv.WrappedRouter().Test(httptest.NewRequest(http.MethodGet, "/confirm?email=a%40b.com&expires=1&email=c", nil))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "email=a%40b.com&expires=1&email=c", got)
	assert.Empty(t, RawQuery(context.Background()))
}

func TestClaimsRoles(t *testing.T) {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
		UserRole:         "guest",
		Resources:        map[string]string{"project-123": "admin"},
	}

	assert.Equal(t, "user123", claims.UserID(), "falls back to subject")
	assert.True(t, claims.HasRole("guest"))
	assert.True(t, claims.HasRole("admin"), "resource role counts")
	assert.False(t, claims.HasRole("owner"))
	assert.False(t, claims.IsAtLeast("member"))
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}
