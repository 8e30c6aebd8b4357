// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role names.
const (
	RoleAdmin        = "admin"
	RoleStandardUser = "standard_user"
	RoleMerchant     = "merchant"
)

// Seeded role IDs. These are stable across deployments.
const (
	RoleIDAdmin        = 1901881405
	RoleIDStandardUser = 331928555
	RoleIDMerchant     = 62809281
)

// Role is a named authorization role.
type Role struct {
	ID   int
	Name string
}

// RoleRepository manages roles and the identity-to-role mapping. Each
// identity holds at most one role.
type RoleRepository interface {
	// List returns all roles.
	List(ctx context.Context) ([]Role, error)

	// Get retrieves a role by ID.
	Get(ctx context.Context, id int) (*Role, error)

	// FindForIdentity returns the role assigned to an identity, or
	// ErrNotFound when none is assigned.
	FindForIdentity(ctx context.Context, identityID ulid.ULID) (*Role, error)

	// UpsertAssignment assigns roleID to the identity, replacing any
	// existing assignment.
	UpsertAssignment(ctx context.Context, identityID ulid.ULID, roleID int) error
}

// RoleResolver maps an identity to its single role. No role is a valid
// state and is reported with ok=false.
type RoleResolver interface {
	Resolve(ctx context.Context, identityID ulid.ULID) (role Role, ok bool, err error)
}

type repositoryRoleResolver struct {
	roles RoleRepository
}

// NewRoleResolver creates a RoleResolver backed by a RoleRepository.
func NewRoleResolver(roles RoleRepository) RoleResolver {
	return &repositoryRoleResolver{roles: roles}
}

func (r *repositoryRoleResolver) Resolve(ctx context.Context, identityID ulid.ULID) (Role, bool, error) {
	role, err := r.roles.FindForIdentity(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return Role{}, false, nil
	}
	if err != nil {
		return Role{}, false, oops.Code("ROLE_RESOLVE_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return *role, true, nil
}
