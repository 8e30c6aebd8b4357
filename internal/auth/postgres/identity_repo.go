// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
)

const identityColumns = `id, name, email, password_hash, phone, validated, token_version, created_at`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool Pool
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	_, err := querier(ctx, r.pool).Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		identity.ID.String(),
		identity.Name,
		identity.Email,
		identity.PasswordHash,
		identity.Phone,
		identity.Validated,
		identity.TokenVersion,
		identity.CreatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("IDENTITY_EMAIL_TAKEN").Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("id", identity.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves an identity by exact email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := querier(ctx, r.pool).QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE email = $1
	`, email)

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	return identity, nil
}

// IncrementTokenVersion bumps the token version in a single statement so
// concurrent increments never return the same value.
func (r *IdentityRepository) IncrementTokenVersion(ctx context.Context, id ulid.ULID) (int64, error) {
	var version int64
	err := querier(ctx, r.pool).QueryRow(ctx, `
		UPDATE identities
		SET token_version = token_version + 1
		WHERE id = $1
		RETURNING token_version
	`, id.String()).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("IDENTITY_INCREMENT_VERSION_FAILED").
			With("operation", "increment token version").
			With("id", id.String()).
			Wrap(err)
	}
	return version, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	return r.exec(ctx, id, "update password hash",
		`UPDATE identities SET password_hash = $2 WHERE id = $1`, id.String(), hash)
}

// SetValidated sets the validated flag.
func (r *IdentityRepository) SetValidated(ctx context.Context, id ulid.ULID, validated bool) error {
	return r.exec(ctx, id, "set validated",
		`UPDATE identities SET validated = $2 WHERE id = $1`, id.String(), validated)
}

// Delete removes an identity. Role assignment and validation token rows
// are removed by cascade.
func (r *IdentityRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.exec(ctx, id, "delete identity",
		`DELETE FROM identities WHERE id = $1`, id.String())
}

func (r *IdentityRepository) exec(ctx context.Context, id ulid.ULID, operation, sql string, args ...any) error {
	result, err := querier(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListValidated returns all validated accounts with their role.
func (r *IdentityRepository) ListValidated(ctx context.Context) ([]auth.Account, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, `
		SELECT i.id, i.name, i.email, i.phone, COALESCE(r.name, '')
		FROM identities i
		LEFT JOIN identity_roles ir ON ir.identity_id = i.id
		LEFT JOIN roles r ON r.id = ir.role_id
		WHERE i.validated
		ORDER BY i.email
	`)
	if err != nil {
		return nil, oops.Code("IDENTITY_LIST_FAILED").With("operation", "list validated").Wrap(err)
	}
	return collectAccounts(rows)
}

// ListUnvalidatedByRole returns unvalidated accounts holding roleID.
func (r *IdentityRepository) ListUnvalidatedByRole(ctx context.Context, roleID int) ([]auth.Account, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, `
		SELECT i.id, i.name, i.email, i.phone, r.name
		FROM identities i
		JOIN identity_roles ir ON ir.identity_id = i.id
		JOIN roles r ON r.id = ir.role_id
		WHERE NOT i.validated AND ir.role_id = $1
		ORDER BY i.email
	`, roleID)
	if err != nil {
		return nil, oops.Code("IDENTITY_LIST_FAILED").
			With("operation", "list unvalidated by role").
			With("role_id", roleID).
			Wrap(err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]auth.Account, error) {
	defer rows.Close()

	accounts := []auth.Account{}
	for rows.Next() {
		var (
			idStr   string
			account auth.Account
		)
		if err := rows.Scan(&idStr, &account.Name, &account.Email, &account.Phone, &account.Role); err != nil {
			return nil, oops.Code("IDENTITY_LIST_FAILED").With("operation", "scan account").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("IDENTITY_LIST_FAILED").With("operation", "parse id").With("id", idStr).Wrap(err)
		}
		account.ID = id
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("IDENTITY_LIST_FAILED").With("operation", "iterate accounts").Wrap(err)
	}
	return accounts, nil
}

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr     string
		identity  auth.Identity
		createdAt time.Time
	)
	if err := row.Scan(
		&idStr,
		&identity.Name,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Phone,
		&identity.Validated,
		&identity.TokenVersion,
		&createdAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers distinguish pgx.ErrNoRows
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse identity id").With("id", idStr).Wrap(err)
	}
	identity.ID = id
	identity.CreatedAt = createdAt.UTC()
	return &identity, nil
}

var _ auth.IdentityRepository = (*IdentityRepository)(nil)
