package accounts

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// ErrImmutableClaimMutation is returned when a decorator changes a
// registered or identity claim.
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION")

type claimsSnapshot struct {
	subject   string
	issuer    string
	id        string
	uid       string
	role      string
	audience  []string
	issuedAt  time.Time
	expiresAt time.Time
}

func snapshotClaims(claims *JWTClaims) claimsSnapshot {
	snap := claimsSnapshot{
		subject:  claims.RegisteredClaims.Subject,
		issuer:   claims.RegisteredClaims.Issuer,
		id:       claims.RegisteredClaims.ID,
		uid:      claims.UID,
		role:     claims.UserRole,
		audience: slices.Clone([]string(claims.RegisteredClaims.Audience)),
	}
	snap.issuedAt = claims.IssuedAt()
	snap.expiresAt = claims.Expires()
	return snap
}

func (snap claimsSnapshot) validate(claims *JWTClaims) error {
	switch {
	case claims.RegisteredClaims.Subject != snap.subject:
		return immutableClaimViolation("sub")
	case claims.RegisteredClaims.Issuer != snap.issuer:
		return immutableClaimViolation("iss")
	case claims.RegisteredClaims.ID != snap.id:
		return immutableClaimViolation("jti")
	case claims.UID != snap.uid:
		return immutableClaimViolation("uid")
	case claims.UserRole != snap.role:
		return immutableClaimViolation("role")
	case !slices.Equal([]string(claims.RegisteredClaims.Audience), snap.audience):
		return immutableClaimViolation("aud")
	}

	if err := compareNumericDate(claims.RegisteredClaims.IssuedAt, snap.issuedAt, "iat"); err != nil {
		return err
	}
	return compareNumericDate(claims.RegisteredClaims.ExpiresAt, snap.expiresAt, "exp")
}

func compareNumericDate(date *jwt.NumericDate, expected time.Time, field string) error {
	if date == nil {
		if !expected.IsZero() {
			return immutableClaimViolation(field)
		}
		return nil
	}
	if !date.Time.Equal(expected) {
		return immutableClaimViolation(field)
	}
	return nil
}

func immutableClaimViolation(field string) error {
	clone := ErrImmutableClaimMutation.Clone()
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	clone.Source = ErrImmutableClaimMutation
	return clone.WithMetadata(map[string]any{"claim": field})
}
