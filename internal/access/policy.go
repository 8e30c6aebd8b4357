// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package access maps account roles to permissions.
//
// Permissions are colon-separated strings such as "read:profile:a@example.com".
// Role grants are glob patterns compiled with ':' as the separator, so '*'
// matches one segment and '**' matches any number of segments. The token
// $self in a grant is replaced with the subject's id before matching; the
// id is quoted so it only ever matches itself.
package access

import (
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

const (
	selfToken = "$self"
	separator = ':'
)

// Policy answers permission checks for roles. It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	roles map[string][]grant
}

type grant struct {
	pattern string
	glob    glob.Glob
}

// NewPolicy compiles roles into a Policy. An invalid pattern is an
// INVALID_PERMISSION_PATTERN error.
func NewPolicy(roles map[string][]string) (*Policy, error) {
	compiled := make(map[string][]grant, len(roles))
	for role, patterns := range roles {
		grants := make([]grant, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, separator)
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			grants = append(grants, grant{pattern: p, glob: g})
		}
		compiled[role] = grants
	}
	return &Policy{roles: compiled}, nil
}

// DefaultPolicy returns the policy built from DefaultRoles.
//
// Panics if a default pattern does not compile.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return p
}

// Allowed reports whether role grants permission to subjectID. An empty
// role has no permissions. Grants using $self never match a subject that
// is empty or contains the separator.
func (p *Policy) Allowed(role, subjectID, permission string) bool {
	if role == "" || permission == "" {
		return false
	}
	for _, g := range p.roles[role] {
		if !strings.Contains(g.pattern, selfToken) {
			if g.glob.Match(permission) {
				return true
			}
			continue
		}
		if subjectID == "" || strings.ContainsRune(subjectID, separator) {
			continue
		}
		resolved := strings.ReplaceAll(g.pattern, selfToken, glob.QuoteMeta(subjectID))
		rg, err := glob.Compile(resolved, separator)
		if err != nil {
			slog.Warn("failed to compile resolved permission pattern",
				"role", role,
				"pattern", g.pattern,
				"error", err)
			continue
		}
		if rg.Match(permission) {
			return true
		}
	}
	return false
}
