// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/smarthealth/healthgate/internal/auth"
	"github.com/smarthealth/healthgate/internal/auth/authtest"
)

func errCode(err error) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Code()
}

var _ = Describe("Session lifecycle", func() {
	const (
		email    = "a@example.com"
		password = "fifteencharspw!"
		homeIP   = "192.0.2.10"
		otherIP  = "198.51.100.20"
	)

	var (
		ctx      context.Context
		store    *authtest.Store
		sessions *auth.SessionService
		register *auth.RegistrationService
		clock    *fakeClock
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = authtest.NewStore()
		clock = &fakeClock{t: time.Now()}

		codec, err := auth.NewJWTCodec(auth.CodecConfig{Secret: testSecret, Now: clock.Now})
		Expect(err).NotTo(HaveOccurred())
		hasher := auth.NewArgon2idHasher()

		sessions, err = auth.NewSessionService(auth.SessionServiceConfig{
			Identities: store.Identities(),
			Roles:      auth.NewRoleResolver(store.Roles()),
			Codec:      codec,
			Hasher:     hasher,
			Transactor: store,
		})
		Expect(err).NotTo(HaveOccurred())

		register, err = auth.NewRegistrationService(auth.RegistrationServiceConfig{
			Identities: store.Identities(),
			Roles:      store.Roles(),
			Tokens:     store.Tokens(),
			Hasher:     hasher,
			Transactor: store,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(register.Register(ctx, auth.RegistrationInput{
			Name:        "A",
			Email:       email,
			Password:    password,
			AccountType: auth.AccountTypeUser,
		})).To(Succeed())
	})

	It("issues a session that validates to the registered identity", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())

		principal, err := sessions.Validate(ctx, token, homeIP)
		Expect(err).NotTo(HaveOccurred())
		Expect(principal.Email).To(Equal(email))
		Expect(principal.Role).To(Equal(auth.RoleStandardUser))
	})

	It("rejects the token after logout", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())
		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(err).NotTo(HaveOccurred())

		Expect(sessions.Logout(ctx, email)).To(Succeed())

		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))
	})

	It("supersedes the first session on a second login", func() {
		first, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())
		second, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())

		_, err = sessions.Validate(ctx, first, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))

		for range 3 {
			principal, err := sessions.Validate(ctx, second, homeIP)
			Expect(err).NotTo(HaveOccurred())
			Expect(principal.Email).To(Equal(email))
		}
	})

	It("rejects a current token presented from another origin", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())

		_, err = sessions.Validate(ctx, token, otherIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))

		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(err).NotTo(HaveOccurred(), "origin mismatch must not revoke the token")
	})

	It("rejects the token once it expires", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(auth.DefaultSessionTTL + time.Second)
		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))
	})

	It("rejects sessions of an identity without a role", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())

		identity, ok := store.Identity(email)
		Expect(ok).To(BeTrue())
		store.Unassign(identity.ID)

		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))
	})

	It("ends every session on password change and keeps the hash on mismatch", func() {
		token, err := sessions.Login(ctx, email, password, homeIP)
		Expect(err).NotTo(HaveOccurred())
		before, _ := store.Identity(email)

		err = sessions.ChangePassword(ctx, email, password, "a brand new passphrase", "a brand new passphrase!")
		Expect(errCode(err)).To(Equal(auth.CodeInvalidInput))
		after, _ := store.Identity(email)
		Expect(after.PasswordHash).To(Equal(before.PasswordHash))
		Expect(after.TokenVersion).To(Equal(before.TokenVersion))

		Expect(sessions.ChangePassword(ctx, email, password, "a brand new passphrase", "a brand new passphrase")).To(Succeed())
		_, err = sessions.Validate(ctx, token, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeUnauthenticated))

		_, err = sessions.Login(ctx, email, password, homeIP)
		Expect(errCode(err)).To(Equal(auth.CodeInvalidCredentials))
		_, err = sessions.Login(ctx, email, "a brand new passphrase", homeIP)
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("password length boundaries",
		func(length int, accepted bool) {
			account := fmt.Sprintf("len%d@example.com", length)
			pw := strings.Repeat("p", length)
			err := register.Register(ctx, auth.RegistrationInput{
				Name:        "Boundary",
				Email:       account,
				Password:    pw,
				AccountType: auth.AccountTypeUser,
			})
			if !accepted {
				Expect(errCode(err)).To(Equal(auth.CodeInvalidInput))
				_, err = sessions.Login(ctx, account, pw, homeIP)
				Expect(errCode(err)).To(Equal(auth.CodeInvalidCredentials))
				return
			}
			Expect(err).NotTo(HaveOccurred())

			token, err := sessions.Login(ctx, account, pw, homeIP)
			Expect(err).NotTo(HaveOccurred())
			principal, err := sessions.Validate(ctx, token, homeIP)
			Expect(err).NotTo(HaveOccurred())
			Expect(principal.Email).To(Equal(account))
		},
		Entry("14 rejected", 14, false),
		Entry("15 accepted", 15, true),
		Entry("64 accepted", 64, true),
		Entry("65 rejected", 65, false),
	)
})
