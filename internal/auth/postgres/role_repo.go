// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

// RoleRepository implements auth.RoleRepository using PostgreSQL.
type RoleRepository struct {
	pool Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// List returns all roles ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]auth.Role, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").With("operation", "list roles").Wrap(err)
	}
	defer rows.Close()

	roles := []auth.Role{}
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, oops.Code("ROLE_LIST_FAILED").With("operation", "scan role").Wrap(err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").With("operation", "iterate roles").Wrap(err)
	}
	return roles, nil
}

// Get retrieves a role by ID.
func (r *RoleRepository) Get(ctx context.Context, id int) (*auth.Role, error) {
	var role auth.Role
	err := querier(ctx, r.pool).QueryRow(ctx, `SELECT id, name FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_NOT_FOUND").With("role_id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_GET_FAILED").With("role_id", id).Wrap(err)
	}
	return &role, nil
}

// FindForIdentity returns the role assigned to an identity.
func (r *RoleRepository) FindForIdentity(ctx context.Context, identityID ulid.ULID) (*auth.Role, error) {
	var role auth.Role
	err := querier(ctx, r.pool).QueryRow(ctx, `
		SELECT r.id, r.name
		FROM identity_roles ir
		JOIN roles r ON r.id = ir.role_id
		WHERE ir.identity_id = $1
	`, identityID.String()).Scan(&role.ID, &role.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_ASSIGNMENT_NOT_FOUND").
			With("identity_id", identityID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_FIND_FAILED").
			With("operation", "find role for identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return &role, nil
}

// UpsertAssignment assigns roleID to the identity, replacing any existing
// assignment.
func (r *RoleRepository) UpsertAssignment(ctx context.Context, identityID ulid.ULID, roleID int) error {
	_, err := querier(ctx, r.pool).Exec(ctx, `
		INSERT INTO identity_roles (identity_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (identity_id) DO UPDATE SET role_id = EXCLUDED.role_id
	`, identityID.String(), roleID)
	if isForeignKeyViolation(err) {
		return oops.Code("ROLE_ASSIGNMENT_INVALID").
			With("identity_id", identityID.String()).
			With("role_id", roleID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").
			With("operation", "upsert role assignment").
			With("identity_id", identityID.String()).
			With("role_id", roleID).
			Wrap(err)
	}
	return nil
}

var _ auth.RoleRepository = (*RoleRepository)(nil)
