// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package authtest provides an in-memory auth store for tests.
package authtest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/smarthealth/healthgate/internal/auth"
)

// Store is an in-memory implementation of the auth repositories and
// Transactor. A failed transaction restores the state it started from;
// overlapping transactions are not isolated from each other.
type Store struct {
	mu          sync.Mutex
	identities  map[ulid.ULID]auth.Identity
	roles       map[int]auth.Role
	assignments map[ulid.ULID]int
	tokens      map[ulid.ULID]auth.ValidationToken
}

// NewStore creates a Store seeded with the standard roles.
func NewStore() *Store {
	s := &Store{
		identities:  make(map[ulid.ULID]auth.Identity),
		roles:       make(map[int]auth.Role),
		assignments: make(map[ulid.ULID]int),
		tokens:      make(map[ulid.ULID]auth.ValidationToken),
	}
	for _, r := range []auth.Role{
		{ID: auth.RoleIDAdmin, Name: auth.RoleAdmin},
		{ID: auth.RoleIDStandardUser, Name: auth.RoleStandardUser},
		{ID: auth.RoleIDMerchant, Name: auth.RoleMerchant},
	} {
		s.roles[r.ID] = r
	}
	return s
}

// Identities returns the store as an auth.IdentityRepository.
func (s *Store) Identities() auth.IdentityRepository { return identityRepo{s} }

// Roles returns the store as an auth.RoleRepository.
func (s *Store) Roles() auth.RoleRepository { return roleRepo{s} }

// Tokens returns the store as an auth.ValidationTokenRepository.
func (s *Store) Tokens() auth.ValidationTokenRepository { return tokenRepo{s} }

// InTransaction implements auth.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Identity returns a copy of the stored identity with the given email.
func (s *Store) Identity(email string) (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.identities {
		if id.Email == email {
			return id, true
		}
	}
	return auth.Identity{}, false
}

// Put stores identity and assigns roleID to it; roleID 0 assigns nothing.
func (s *Store) Put(identity *auth.Identity, roleID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = *identity
	if roleID != 0 {
		s.assignments[identity.ID] = roleID
	}
}

// Unassign removes the role assignment of an identity.
func (s *Store) Unassign(id ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, id)
}

// TokenFor returns the validation token stored for an identity.
func (s *Store) TokenFor(id ulid.ULID) (auth.ValidationToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	return t, ok
}

type snapshot struct {
	identities  map[ulid.ULID]auth.Identity
	assignments map[ulid.ULID]int
	tokens      map[ulid.ULID]auth.ValidationToken
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		identities:  cloneMap(s.identities),
		assignments: cloneMap(s.assignments),
		tokens:      cloneMap(s.tokens),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = snap.identities
	s.assignments = snap.assignments
	s.tokens = snap.tokens
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type identityRepo struct{ s *Store }

func (r identityRepo) Create(_ context.Context, identity *auth.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.identities {
		if existing.Email == identity.Email {
			return auth.ErrEmailTaken
		}
	}
	r.s.identities[identity.ID] = *identity
	return nil
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, identity := range r.s.identities {
		if identity.Email == email {
			return &identity, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r identityRepo) IncrementTokenVersion(_ context.Context, id ulid.ULID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return 0, auth.ErrNotFound
	}
	identity.TokenVersion++
	r.s.identities[id] = identity
	return identity.TokenVersion, nil
}

func (r identityRepo) UpdatePasswordHash(_ context.Context, id ulid.ULID, hash string) error {
	return r.update(id, func(i *auth.Identity) { i.PasswordHash = hash })
}

func (r identityRepo) SetValidated(_ context.Context, id ulid.ULID, validated bool) error {
	return r.update(id, func(i *auth.Identity) { i.Validated = validated })
}

func (r identityRepo) update(id ulid.ULID, fn func(*auth.Identity)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(&identity)
	r.s.identities[id] = identity
	return nil
}

func (r identityRepo) ListValidated(_ context.Context) ([]auth.Account, error) {
	return r.list(func(i auth.Identity, _ int) bool { return i.Validated }), nil
}

func (r identityRepo) ListUnvalidatedByRole(_ context.Context, roleID int) ([]auth.Account, error) {
	return r.list(func(i auth.Identity, rid int) bool { return !i.Validated && rid == roleID }), nil
}

func (r identityRepo) list(keep func(auth.Identity, int) bool) []auth.Account {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	accounts := []auth.Account{}
	for id, identity := range r.s.identities {
		roleID := r.s.assignments[id]
		if !keep(identity, roleID) {
			continue
		}
		accounts = append(accounts, auth.Account{
			ID:    identity.ID,
			Name:  identity.Name,
			Email: identity.Email,
			Phone: identity.Phone,
			Role:  r.s.roles[roleID].Name,
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts
}

func (r identityRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.identities, id)
	delete(r.s.assignments, id)
	delete(r.s.tokens, id)
	return nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) List(_ context.Context) ([]auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roles := make([]auth.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r roleRepo) Get(_ context.Context, id int) (*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &role, nil
}

func (r roleRepo) FindForIdentity(_ context.Context, identityID ulid.ULID) (*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roleID, ok := r.s.assignments[identityID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	role := r.s.roles[roleID]
	return &role, nil
}

func (r roleRepo) UpsertAssignment(_ context.Context, identityID ulid.ULID, roleID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.identities[identityID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := r.s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	r.s.assignments[identityID] = roleID
	return nil
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Upsert(_ context.Context, token *auth.ValidationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[token.IdentityID] = *token
	return nil
}

func (r tokenRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.ValidationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r tokenRepo) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tokens, identityID)
	return nil
}

var (
	_ auth.IdentityRepository        = identityRepo{}
	_ auth.RoleRepository            = roleRepo{}
	_ auth.ValidationTokenRepository = tokenRepo{}
	_ auth.Transactor                = (*Store)(nil)
)
