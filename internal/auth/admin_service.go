// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// AdminService manages accounts on behalf of administrators and lets users
// delete their own account.
type AdminService struct {
	identities IdentityRepository
	roles      RoleRepository
	tokens     ValidationTokenRepository
	tx         Transactor
	logger     *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(identities IdentityRepository, roles RoleRepository, tokens ValidationTokenRepository, tx Transactor) (*AdminService, error) {
	return NewAdminServiceWithLogger(identities, roles, tokens, tx, slog.Default())
}

// NewAdminServiceWithLogger creates an AdminService with a custom logger.
func NewAdminServiceWithLogger(identities IdentityRepository, roles RoleRepository, tokens ValidationTokenRepository, tx Transactor, logger *slog.Logger) (*AdminService, error) {
	switch {
	case identities == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("identity repository is required")
	case roles == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("role repository is required")
	case tokens == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("validation token repository is required")
	case tx == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("transactor is required")
	case logger == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("logger is required")
	}
	return &AdminService{identities: identities, roles: roles, tokens: tokens, tx: tx, logger: logger}, nil
}

// ListRoles returns every role.
func (s *AdminService) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, oops.Code("ADMIN_LIST_ROLES_FAILED").Wrap(err)
	}
	return roles, nil
}

// ListUsers returns every validated account with its role.
func (s *AdminService) ListUsers(ctx context.Context) ([]Account, error) {
	accounts, err := s.identities.ListValidated(ctx)
	if err != nil {
		return nil, oops.Code("ADMIN_LIST_USERS_FAILED").Wrap(err)
	}
	return accounts, nil
}

// ListPendingMerchants returns merchant accounts awaiting approval.
func (s *AdminService) ListPendingMerchants(ctx context.Context) ([]Account, error) {
	accounts, err := s.identities.ListUnvalidatedByRole(ctx, RoleIDMerchant)
	if err != nil {
		return nil, oops.Code("ADMIN_LIST_MERCHANTS_FAILED").Wrap(err)
	}
	return accounts, nil
}

// AssignRole replaces the role of the account with the given email. The
// new role takes effect on the next session validation.
func (s *AdminService) AssignRole(ctx context.Context, email string, roleID int) error {
	identity, err := s.identityByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err := s.roles.Get(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ROLE_NOT_FOUND").With("role_id", roleID).Errorf("role not found")
		}
		return oops.Code("ADMIN_ASSIGN_ROLE_FAILED").With("operation", "get role").Wrap(err)
	}
	if err := s.roles.UpsertAssignment(ctx, identity.ID, roleID); err != nil {
		return oops.Code("ADMIN_ASSIGN_ROLE_FAILED").
			With("operation", "upsert role assignment").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "role assigned", "identity_id", identity.ID.String(), "role_id", roleID)
	return nil
}

// DeleteUser removes the account with the given email. Administrators
// cannot delete themselves through this operation.
func (s *AdminService) DeleteUser(ctx context.Context, actorEmail, email string) error {
	if actorEmail == email {
		return oops.Code("ADMIN_SELF_DELETE").Errorf("administrators cannot delete their own account")
	}
	return s.deleteAccount(ctx, email)
}

// DeleteOwnAccount removes the caller's own account.
func (s *AdminService) DeleteOwnAccount(ctx context.Context, email string) error {
	return s.deleteAccount(ctx, email)
}

// ValidateMerchant approves a pending merchant account.
func (s *AdminService) ValidateMerchant(ctx context.Context, email string) error {
	identity, err := s.identityByEmail(ctx, email)
	if err != nil {
		return err
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.SetValidated(ctx, identity.ID, true); err != nil {
			return err
		}
		return s.tokens.DeleteByIdentity(ctx, identity.ID)
	})
	if err != nil {
		return oops.Code("ADMIN_VALIDATE_MERCHANT_FAILED").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "merchant validated", "identity_id", identity.ID.String())
	return nil
}

func (s *AdminService) deleteAccount(ctx context.Context, email string) error {
	identity, err := s.identityByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.identities.Delete(ctx, identity.ID); err != nil {
		return oops.Code("ADMIN_DELETE_USER_FAILED").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "account deleted", "identity_id", identity.ID.String())
	return nil
}

func (s *AdminService) identityByEmail(ctx context.Context, email string) (*Identity, error) {
	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("USER_NOT_FOUND").Errorf("user not found")
	}
	if err != nil {
		return nil, oops.Code("ADMIN_LOOKUP_FAILED").With("operation", "get identity by email").Wrap(err)
	}
	return identity, nil
}
