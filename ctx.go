package accounts

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}
var rawQueryCtxKey = &contextKey{"raw_query"}

type contextKey struct {
	name string
}

const (
	// ClaimsStoreKey is where the JWT middleware stores validated claims.
	ClaimsStoreKey = "user"
	// UserStoreKey is where the controller stores the authenticated user.
	UserStoreKey = "current_user"
)

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims stored by the JWT middleware.
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = ClaimsStoreKey
	}
	claims, ok := ctx.Get(key, nil).(AuthClaims)
	return claims, ok
}

// CurrentUser returns the authenticated user of the request.
func CurrentUser(ctx router.Context) (*User, bool) {
	user, ok := ctx.Get(UserStoreKey, nil).(*User)
	return user, ok && user != nil
}

// WithRawQuery stores the undecoded query string of the request.
func WithRawQuery(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, rawQueryCtxKey, raw)
}

// RawQuery returns the query string stored by WithRawQuery.
func RawQuery(ctx context.Context) string {
	raw, _ := ctx.Value(rawQueryCtxKey).(string)
	return raw
}
