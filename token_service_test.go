package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

// MockIdentity implements accounts.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Role() string {
	args := m.Called()
	return args.String(0)
}

// MockLogger implements accounts.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

var (
	tokenKey      = []byte("test-signing-key-test-signing-key")
	tokenIssuer   = "test-issuer"
	tokenAudience = []string{"test-audience"}
)

func newIdentity(id, role string) *MockIdentity {
	identity := &MockIdentity{}
	identity.On("ID").Return(id)
	identity.On("Role").Return(role)
	return identity
}

func TestTokenService_Generate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	service := accounts.NewTokenService(tokenKey, 2*time.Hour, tokenIssuer, tokenAudience,
		accounts.WithTokenClock(func() time.Time { return now }),
	)

	t.Run("generates valid JWT token", func(t *testing.T) {
		identity := newIdentity("user-123", "admin")

		tokenString, err := service.Generate(identity, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, tokenString)

		token, err := jwt.ParseWithClaims(tokenString, &accounts.JWTClaims{}, func(token *jwt.Token) (any, error) {
			return tokenKey, nil
		}, jwt.WithTimeFunc(func() time.Time { return now }))
		require.NoError(t, err)
		assert.True(t, token.Valid)

		claims, ok := token.Claims.(*accounts.JWTClaims)
		require.True(t, ok)
		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "admin", claims.Role())
		assert.Equal(t, tokenIssuer, claims.Issuer)
		assert.Equal(t, jwt.ClaimStrings(tokenAudience), claims.Audience)
		assert.WithinDuration(t, now, claims.IssuedAt(), 0)
		assert.WithinDuration(t, now.Add(2*time.Hour), claims.Expires(), 0)
		assert.NotEmpty(t, claims.ID)
		assert.Empty(t, claims.Resources)

		identity.AssertExpectations(t)
	})

	t.Run("generates token with resource roles", func(t *testing.T) {
		identity := newIdentity("user-123", "member")
		resourceRoles := map[string]string{
			"project-1": "admin",
			"project-2": "owner",
		}

		tokenString, err := service.Generate(identity, resourceRoles)
		require.NoError(t, err)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)
		assert.Equal(t, resourceRoles, claims.(*accounts.JWTClaims).Resources)
		assert.True(t, claims.HasRole("owner"))
		assert.False(t, claims.HasRole("guest"))
	})

	t.Run("user identity carries id and role", func(t *testing.T) {
		user := &accounts.User{ID: uuid.New(), Role: accounts.RoleAdmin, Username: "root"}

		tokenString, err := service.Generate(user.Identity(), nil)
		require.NoError(t, err)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID())
		assert.True(t, claims.IsAtLeast(string(accounts.RoleMember)))
		assert.False(t, claims.IsAtLeast(string(accounts.RoleOwner)))
	})
}

func TestTokenService_Validate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	service := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience, accounts.WithTokenClock(clock))

	tokenString, err := service.Generate(newIdentity("user-123", "member"), nil)
	require.NoError(t, err)

	t.Run("validates its own token", func(t *testing.T) {
		claims, err := service.Validate(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "member", claims.Role())
	})

	t.Run("returns error for expired token", func(t *testing.T) {
		later := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience,
			accounts.WithTokenClock(func() time.Time { return now.Add(2 * time.Hour) }),
		)

		claims, err := later.Validate(tokenString)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, accounts.ErrTokenExpired)
	})

	t.Run("returns error for malformed token", func(t *testing.T) {
		claims, err := service.Validate("not.a.valid.jwt.token")
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
	})

	t.Run("returns error for token with wrong signing key", func(t *testing.T) {
		other := accounts.NewTokenService([]byte("another-key-another-key-another-key"), time.Hour, tokenIssuer, tokenAudience, accounts.WithTokenClock(clock))
		forged, err := other.Generate(newIdentity("user-123", "owner"), nil)
		require.NoError(t, err)

		claims, err := service.Validate(forged)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
	})

	t.Run("returns error for foreign issuer or audience", func(t *testing.T) {
		foreignIssuer := accounts.NewTokenService(tokenKey, time.Hour, "someone-else", tokenAudience, accounts.WithTokenClock(clock))
		forged, err := foreignIssuer.Generate(newIdentity("user-123", "member"), nil)
		require.NoError(t, err)
		_, err = service.Validate(forged)
		assert.ErrorIs(t, err, accounts.ErrTokenMalformed)

		foreignAudience := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, []string{"other-app"}, accounts.WithTokenClock(clock))
		forged, err = foreignAudience.Generate(newIdentity("user-123", "member"), nil)
		require.NoError(t, err)
		_, err = service.Validate(forged)
		assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
	})

	t.Run("returns error for token with wrong signing method", func(t *testing.T) {
		logger := &MockLogger{}
		logger.On("Error", mock.AnythingOfType("string"), mock.Anything).Maybe()
		logged := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience,
			accounts.WithTokenClock(clock),
			accounts.WithTokenLogger(logger),
		)

		token := jwt.NewWithClaims(jwt.SigningMethodNone, &accounts.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				Issuer:    tokenIssuer,
				Audience:  tokenAudience,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			UserRole: "owner",
		})
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		claims, err := logged.Validate(unsigned)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, accounts.ErrTokenMalformed)
	})
}

func TestTokenService_ClaimsDecorators(t *testing.T) {
	user := &accounts.User{ID: uuid.New(), Role: accounts.RoleMember, Username: "ada"}

	t.Run("extension claims are signed", func(t *testing.T) {
		service := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience,
			accounts.WithClaimsDecorators(
				accounts.ProfileClaims(),
				accounts.ClaimsDecoratorFunc(func(_ context.Context, _ accounts.Identity, claims *accounts.JWTClaims) error {
					claims.Resources = map[string]string{"team-1": "admin"}
					return nil
				}),
			),
		)

		tokenString, err := service.Generate(user.Identity(), nil)
		require.NoError(t, err)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)
		jwtClaims := claims.(*accounts.JWTClaims)
		assert.Equal(t, "ada", jwtClaims.Metadata["username"])
		assert.Equal(t, map[string]string{"team-1": "admin"}, jwtClaims.Resources)
	})

	t.Run("identity claims can not be changed", func(t *testing.T) {
		service := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience,
			accounts.WithClaimsDecorators(accounts.ClaimsDecoratorFunc(func(_ context.Context, _ accounts.Identity, claims *accounts.JWTClaims) error {
				claims.UserRole = string(accounts.RoleOwner)
				return nil
			})),
		)

		tokenString, err := service.Generate(user.Identity(), nil)
		assert.Empty(t, tokenString)
		assert.ErrorIs(t, err, accounts.ErrImmutableClaimMutation)
	})

	t.Run("decorator errors abort generation", func(t *testing.T) {
		service := accounts.NewTokenService(tokenKey, time.Hour, tokenIssuer, tokenAudience,
			accounts.WithClaimsDecorators(accounts.ClaimsDecoratorFunc(func(ctx context.Context, _ accounts.Identity, _ *accounts.JWTClaims) error {
				return ctx.Err()
			})),
		)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := service.GenerateContext(ctx, user.Identity(), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
