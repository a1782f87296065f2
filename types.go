package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-accounts/signedlink"
)

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options the account flows need at runtime.
type Config interface {
	// GetAppURL is the public base URL of this API, signed links point here.
	GetAppURL() string
	// GetSiteURL is the front end URL confirmation redirects land on.
	GetSiteURL() string
	GetActivationTTL() time.Duration
	GetEmailChangeTTL() time.Duration
	GetSingleUseLinks() bool
}

// Identity holds the attributes of an authenticated caller
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// TokenService issues and validates bearer tokens
type TokenService interface {
	Generate(identity Identity, resourceRoles map[string]string) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Links produces and checks signed confirmation URLs.
type Links interface {
	ActivationURL(user *User) (string, error)
	EmailChangeURL(user *User, newEmail string) (string, error)
	Check(kind LinkKind, rawQuery string) (*signedlink.Link, error)
}

// Mailer delivers a templated message, see mailer.Service.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}
