// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

// Package auth provides authentication and session integrity for HealthGate.
//
// # Sessions
//
// A session is a signed token carrying the account email, the origin the
// login came from and the account's token version at login time. There is
// no server-side session record. A token is accepted only while its origin
// matches the requester and its version equals the stored version, so
// incrementing the stored version revokes every token issued before it.
// Login, logout and password change all increment it.
//
// # Services
//
//   - SessionService - login, session validation, logout, password change
//   - RegistrationService - sign-up and email validation
//   - AdminService - role assignment, account listing and deletion
//
// Services are created with New*Service constructors that validate
// dependencies. Persistence is behind IdentityRepository, RoleRepository,
// ValidationTokenRepository and Transactor; see the postgres subpackage.
package auth
