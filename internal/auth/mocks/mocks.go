// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/smarthealth/healthgate/internal/auth"
)

// MockIdentityRepository is a mock auth.IdentityRepository.
type MockIdentityRepository struct{ mock.Mock }

// NewMockIdentityRepository creates a mock that asserts its expectations on cleanup.
func NewMockIdentityRepository(t *testing.T) *MockIdentityRepository {
	m := &MockIdentityRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	args := m.Called(ctx, email)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityRepository) IncrementTokenVersion(ctx context.Context, id ulid.ULID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIdentityRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *MockIdentityRepository) SetValidated(ctx context.Context, id ulid.ULID, validated bool) error {
	return m.Called(ctx, id, validated).Error(0)
}

func (m *MockIdentityRepository) ListValidated(ctx context.Context) ([]auth.Account, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]auth.Account)
	return accounts, args.Error(1)
}

func (m *MockIdentityRepository) ListUnvalidatedByRole(ctx context.Context, roleID int) ([]auth.Account, error) {
	args := m.Called(ctx, roleID)
	accounts, _ := args.Get(0).([]auth.Account)
	return accounts, args.Error(1)
}

func (m *MockIdentityRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockRoleRepository is a mock auth.RoleRepository.
type MockRoleRepository struct{ mock.Mock }

// NewMockRoleRepository creates a mock that asserts its expectations on cleanup.
func NewMockRoleRepository(t *testing.T) *MockRoleRepository {
	m := &MockRoleRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRoleRepository) List(ctx context.Context) ([]auth.Role, error) {
	args := m.Called(ctx)
	roles, _ := args.Get(0).([]auth.Role)
	return roles, args.Error(1)
}

func (m *MockRoleRepository) Get(ctx context.Context, id int) (*auth.Role, error) {
	args := m.Called(ctx, id)
	role, _ := args.Get(0).(*auth.Role)
	return role, args.Error(1)
}

func (m *MockRoleRepository) FindForIdentity(ctx context.Context, identityID ulid.ULID) (*auth.Role, error) {
	args := m.Called(ctx, identityID)
	role, _ := args.Get(0).(*auth.Role)
	return role, args.Error(1)
}

func (m *MockRoleRepository) UpsertAssignment(ctx context.Context, identityID ulid.ULID, roleID int) error {
	return m.Called(ctx, identityID, roleID).Error(0)
}

// MockRoleResolver is a mock auth.RoleResolver.
type MockRoleResolver struct{ mock.Mock }

// NewMockRoleResolver creates a mock that asserts its expectations on cleanup.
func NewMockRoleResolver(t *testing.T) *MockRoleResolver {
	m := &MockRoleResolver{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRoleResolver) Resolve(ctx context.Context, identityID ulid.ULID) (auth.Role, bool, error) {
	args := m.Called(ctx, identityID)
	return args.Get(0).(auth.Role), args.Bool(1), args.Error(2)
}

// MockValidationTokenRepository is a mock auth.ValidationTokenRepository.
type MockValidationTokenRepository struct{ mock.Mock }

// NewMockValidationTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockValidationTokenRepository(t *testing.T) *MockValidationTokenRepository {
	m := &MockValidationTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockValidationTokenRepository) Upsert(ctx context.Context, token *auth.ValidationToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockValidationTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ValidationToken, error) {
	args := m.Called(ctx, tokenHash)
	token, _ := args.Get(0).(*auth.ValidationToken)
	return token, args.Error(1)
}

func (m *MockValidationTokenRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	return m.Called(ctx, identityID).Error(0)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct{ mock.Mock }

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	return m.Called(password, hash).Bool(0)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockTokenCodec is a mock auth.TokenCodec.
type MockTokenCodec struct{ mock.Mock }

// NewMockTokenCodec creates a mock that asserts its expectations on cleanup.
func NewMockTokenCodec(t *testing.T) *MockTokenCodec {
	m := &MockTokenCodec{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenCodec) Encode(subject, ipAddress string, version int64, ttl time.Duration) (string, error) {
	args := m.Called(subject, ipAddress, version, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenCodec) Decode(token string) (*auth.SessionClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*auth.SessionClaims)
	return claims, args.Error(1)
}

// MockLoginLimiter is a mock auth.LoginLimiter.
type MockLoginLimiter struct{ mock.Mock }

// NewMockLoginLimiter creates a mock that asserts its expectations on cleanup.
func NewMockLoginLimiter(t *testing.T) *MockLoginLimiter {
	m := &MockLoginLimiter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLoginLimiter) Allow(ctx context.Context, email, origin string) (bool, error) {
	args := m.Called(ctx, email, origin)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoginLimiter) RecordFailure(ctx context.Context, email, origin string) error {
	return m.Called(ctx, email, origin).Error(0)
}

func (m *MockLoginLimiter) Reset(ctx context.Context, email, origin string) error {
	return m.Called(ctx, email, origin).Error(0)
}

// MockMailer is a mock auth.Mailer.
type MockMailer struct{ mock.Mock }

// NewMockMailer creates a mock that asserts its expectations on cleanup.
func NewMockMailer(t *testing.T) *MockMailer {
	m := &MockMailer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMailer) SendValidationEmail(ctx context.Context, to, name, link string) error {
	return m.Called(ctx, to, name, link).Error(0)
}

// Transactor runs fn directly with no transaction. Err, when set, is
// returned instead of calling fn.
type Transactor struct {
	Err   error
	Calls int
}

func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(ctx)
}

var (
	_ auth.IdentityRepository        = (*MockIdentityRepository)(nil)
	_ auth.RoleRepository            = (*MockRoleRepository)(nil)
	_ auth.RoleResolver              = (*MockRoleResolver)(nil)
	_ auth.ValidationTokenRepository = (*MockValidationTokenRepository)(nil)
	_ auth.PasswordHasher            = (*MockPasswordHasher)(nil)
	_ auth.TokenCodec                = (*MockTokenCodec)(nil)
	_ auth.LoginLimiter              = (*MockLoginLimiter)(nil)
	_ auth.Mailer                    = (*MockMailer)(nil)
	_ auth.Transactor                = (*Transactor)(nil)
)
