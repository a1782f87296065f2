package accounts

import "context"

// ClaimsDecorator can add extension claims (Resources, Metadata) before a
// token is signed. Registered and identity claims must be left untouched.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, identity Identity, claims *JWTClaims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, identity, claims)
}

// ProfileClaims adds the username to the token metadata.
func ProfileClaims() ClaimsDecorator {
	return ClaimsDecoratorFunc(func(_ context.Context, identity Identity, claims *JWTClaims) error {
		if claims.Metadata == nil {
			claims.Metadata = map[string]any{}
		}
		claims.Metadata["username"] = identity.Username()
		return nil
	})
}
