// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package access

import "github.com/smarthealth/healthgate/internal/auth"

// Permission groups define reusable sets of permissions.
// Roles compose these groups rather than inheriting.

var accountPowers = []string{
	"read:profile:$self",
	"write:profile:$self",
	"delete:profile:$self",
}

var merchantPowers = []string{
	"read:reports:*",
	"write:listings:$self:*",
}

var adminPowers = []string{
	"*:**",
}

// Well-known permissions checked by the HTTP layer.
const (
	PermManageUsers = "manage:users:*"
)

// Actions on an account's own profile.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// ProfilePermission returns the permission to perform action on the
// profile of subjectID.
func ProfilePermission(action, subjectID string) string {
	return action + ":profile:" + subjectID
}

// DefaultRoles returns the default role definitions keyed by role name.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		auth.RoleStandardUser: compose(accountPowers),
		auth.RoleMerchant:     compose(accountPowers, merchantPowers),
		auth.RoleAdmin:        compose(accountPowers, adminPowers),
	}
}

func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
