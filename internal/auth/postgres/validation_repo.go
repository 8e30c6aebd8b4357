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

// ValidationTokenRepository implements auth.ValidationTokenRepository
// using PostgreSQL.
type ValidationTokenRepository struct {
	pool Pool
}

// NewValidationTokenRepository creates a new ValidationTokenRepository.
func NewValidationTokenRepository(pool Pool) *ValidationTokenRepository {
	return &ValidationTokenRepository{pool: pool}
}

// Upsert stores the token, replacing any existing one for the identity.
func (r *ValidationTokenRepository) Upsert(ctx context.Context, token *auth.ValidationToken) error {
	_, err := querier(ctx, r.pool).Exec(ctx, `
		INSERT INTO validation_tokens (identity_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`,
		token.IdentityID.String(),
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("VALIDATION_TOKEN_UPSERT_FAILED").
			With("operation", "upsert validation token").
			With("identity_id", token.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a token by its hash.
func (r *ValidationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ValidationToken, error) {
	var (
		idStr string
		token auth.ValidationToken
	)
	err := querier(ctx, r.pool).QueryRow(ctx, `
		SELECT identity_id, token_hash, expires_at, created_at
		FROM validation_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VALIDATION_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VALIDATION_TOKEN_GET_FAILED").
			With("operation", "get validation token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VALIDATION_TOKEN_GET_FAILED").
			With("operation", "parse identity id").
			With("identity_id", idStr).
			Wrap(err)
	}
	token.IdentityID = id
	return &token, nil
}

// DeleteByIdentity removes the identity's token.
func (r *ValidationTokenRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := querier(ctx, r.pool).Exec(ctx,
		`DELETE FROM validation_tokens WHERE identity_id = $1`, identityID.String())
	if err != nil {
		return oops.Code("VALIDATION_TOKEN_DELETE_FAILED").
			With("operation", "delete validation token").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

var _ auth.ValidationTokenRepository = (*ValidationTokenRepository)(nil)
