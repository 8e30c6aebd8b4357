// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package access_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smarthealth/healthgate/internal/access"
	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/pkg/errutil"
)

func TestDefaultPolicy_Allowed(t *testing.T) {
	p := access.DefaultPolicy()
	const me = "01J0000000000000000000000A"

	tests := []struct {
		name       string
		role       string
		permission string
		want       bool
	}{
		{"admin manages users", auth.RoleAdmin, access.PermManageUsers, true},
		{"admin reads anything", auth.RoleAdmin, "read:reports:2026:q3", true},
		{"merchant reads reports", auth.RoleMerchant, "read:reports:sales", true},
		{"merchant cannot manage users", auth.RoleMerchant, access.PermManageUsers, false},
		{"merchant writes own listings", auth.RoleMerchant, "write:listings:" + me + ":42", true},
		{"merchant cannot write others listings", auth.RoleMerchant, "write:listings:someone:42", false},
		{"user reads own profile", auth.RoleStandardUser, "read:profile:" + me, true},
		{"user cannot read other profile", auth.RoleStandardUser, "read:profile:someone", false},
		{"user cannot read reports", auth.RoleStandardUser, "read:reports:sales", false},
		{"user cannot manage users", auth.RoleStandardUser, access.PermManageUsers, false},
		{"no role", "", "read:profile:" + me, false},
		{"unknown role", "auditor", "read:reports:sales", false},
		{"empty permission", auth.RoleAdmin, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allowed(tt.role, me, tt.permission))
		})
	}
}

func TestPolicy_SelfTokenNeedsSubject(t *testing.T) {
	p := access.DefaultPolicy()
	assert.False(t, p.Allowed(auth.RoleStandardUser, "", "read:profile:"))
	assert.False(t, p.Allowed(auth.RoleStandardUser, "", "read:profile:$self"))
}

func TestNewPolicy_InvalidPattern(t *testing.T) {
	_, err := access.NewPolicy(map[string][]string{"broken": {"read:[unclosed"}})
	errutil.AssertErrorCode(t, err, "INVALID_PERMISSION_PATTERN")
	errutil.AssertErrorContext(t, err, "role", "broken")
}

func TestPolicy_SelfIsMatchedLiterally(t *testing.T) {
	p := access.DefaultPolicy()

	tests := []struct {
		name       string
		subject    string
		permission string
		want       bool
	}{
		{"wildcard local part", "*@example.com", access.ProfilePermission(access.ActionRead, "victim@example.com"), false},
		{"wildcard local part on own profile", "*@example.com", access.ProfilePermission(access.ActionRead, "*@example.com"), true},
		{"single char wildcard", "?ictim@example.com", access.ProfilePermission(access.ActionDelete, "victim@example.com"), false},
		{"alternation", "{victim,x}@example.com", access.ProfilePermission(access.ActionWrite, "victim@example.com"), false},
		{"character class", "[a-z]ictim@example.com", access.ProfilePermission(access.ActionRead, "victim@example.com"), false},
		{"super wildcard listing", "**", "write:listings:victim@example.com:1", false},
		{"separator in subject", "a:b", "read:profile:a:b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role := auth.RoleStandardUser
			if strings.HasPrefix(tt.permission, "write:listings") {
				role = auth.RoleMerchant
			}
			assert.Equal(t, tt.want, p.Allowed(role, tt.subject, tt.permission))
		})
	}
}

func TestProfilePermission(t *testing.T) {
	assert.Equal(t, "delete:profile:a@example.com", access.ProfilePermission(access.ActionDelete, "a@example.com"))
	assert.True(t, access.DefaultPolicy().Allowed(auth.RoleStandardUser, "a@example.com",
		access.ProfilePermission(access.ActionDelete, "a@example.com")))
}

func TestDefaultRoles_ComposeWithoutAliasing(t *testing.T) {
	roles := access.DefaultRoles()
	roles[auth.RoleMerchant][0] = "mutated"

	fresh := access.DefaultRoles()
	assert.NotEqual(t, "mutated", fresh[auth.RoleMerchant][0])
	assert.Contains(t, fresh[auth.RoleAdmin], "*:**")
}
