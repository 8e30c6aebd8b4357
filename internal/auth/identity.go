// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identity is an account that can authenticate. Email is unique and
// matched exactly.
type Identity struct {
	ID           ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	Validated    bool
	TokenVersion int64
	CreatedAt    time.Time
}

// NewIdentity creates an unvalidated Identity with token version zero.
func NewIdentity(name, email, passwordHash string, phone *string) (*Identity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, oops.Code("IDENTITY_INVALID").Errorf("name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("IDENTITY_INVALID").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID").Errorf("password hash cannot be empty")
	}
	return &Identity{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Phone:        phone,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Account is an identity as listed to administrators. Role is empty when
// no role is assigned.
type Account struct {
	ID    ulid.ULID
	Name  string
	Email string
	Phone *string
	Role  string
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity. Returns ErrEmailTaken if the email is
	// already registered.
	Create(ctx context.Context, identity *Identity) error

	// GetByEmail retrieves an identity by exact email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// IncrementTokenVersion atomically increments the token version and
	// returns the new value.
	IncrementTokenVersion(ctx context.Context, id ulid.ULID) (int64, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error

	// SetValidated sets the validated flag.
	SetValidated(ctx context.Context, id ulid.ULID, validated bool) error

	// ListValidated returns all validated accounts with their role.
	ListValidated(ctx context.Context) ([]Account, error)

	// ListUnvalidatedByRole returns unvalidated accounts holding roleID.
	ListUnvalidatedByRole(ctx context.Context, roleID int) ([]Account, error)

	// Delete removes an identity together with its role assignment and
	// validation token.
	Delete(ctx context.Context, id ulid.ULID) error
}

// Transactor runs fn inside a single store transaction. Repositories
// called with the context passed to fn take part in the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
