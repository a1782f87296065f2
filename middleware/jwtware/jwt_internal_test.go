package jwtware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleClaims struct {
	role string
}

func (c roleClaims) Subject() string               { return "sub" }
func (c roleClaims) UserID() string                { return "sub" }
func (c roleClaims) Role() string                  { return c.role }
func (c roleClaims) HasRole(role string) bool      { return c.role == role }
func (c roleClaims) IsAtLeast(minRole string) bool { return c.role == "admin" || c.role == minRole }

func TestGetExtractorsSkipsInvalidParts(t *testing.T) {
	extractors := GetExtractors("header:Authorization, query:token,bogus,param:jwt")
	require.Len(t, extractors, 3)
}

func TestPerformAuthorizationChecks(t *testing.T) {
	member := roleClaims{role: "member"}
	admin := roleClaims{role: "admin"}

	assert.NoError(t, performAuthorizationChecks(member, Config[roleClaims]{}))
	assert.NoError(t, performAuthorizationChecks(member, Config[roleClaims]{RequiredRole: "member"}))
	assert.Error(t, performAuthorizationChecks(member, Config[roleClaims]{RequiredRole: "admin"}))
	assert.Error(t, performAuthorizationChecks(member, Config[roleClaims]{MinimumRole: "admin"}))
	assert.NoError(t, performAuthorizationChecks(admin, Config[roleClaims]{MinimumRole: "member"}))

	denyAll := func(roleClaims, string) bool { return false }
	assert.Error(t, performAuthorizationChecks(admin, Config[roleClaims]{MinimumRole: "member", RoleChecker: denyAll}))
}
