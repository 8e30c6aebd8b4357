// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HealthGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
	"github.com/samber/oops"
)

// Account types accepted at registration.
const (
	AccountTypeUser     = "user"
	AccountTypeMerchant = "merchant"
)

// Registration field limits.
const (
	MaxNameLength  = 255
	MaxEmailLength = 254
)

// RegistrationInput is a self-service sign-up request.
type RegistrationInput struct {
	Name        string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	AccountType string `json:"account_type"`
}

// Mailer delivers account emails.
type Mailer interface {
	SendValidationEmail(ctx context.Context, to, name, link string) error
}

// RegistrationServiceConfig holds the collaborators of a
// RegistrationService. Mailer, Metrics and Logger are optional.
type RegistrationServiceConfig struct {
	Identities IdentityRepository
	Roles      RoleRepository
	Tokens     ValidationTokenRepository
	Hasher     PasswordHasher
	Transactor Transactor
	Mailer     Mailer
	Metrics    MetricsRecorder
	Logger     *slog.Logger

	// EmailValidation keeps standard users unvalidated until they follow
	// the emailed link. When false they are validated on registration.
	EmailValidation bool
	// ValidationURL is the link target; the token is added as ?token=.
	ValidationURL string
	// PhoneRegion is the default region for numbers without a country
	// code. Empty requires the international format.
	PhoneRegion string
}

// RegistrationService creates accounts and confirms email addresses.
type RegistrationService struct {
	identities      IdentityRepository
	roles           RoleRepository
	tokens          ValidationTokenRepository
	hasher          PasswordHasher
	tx              Transactor
	mailer          Mailer
	metrics         MetricsRecorder
	logger          *slog.Logger
	emailValidation bool
	validationURL   string
	phoneRegion     string
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(cfg RegistrationServiceConfig) (*RegistrationService, error) {
	switch {
	case cfg.Identities == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("identity repository is required")
	case cfg.Roles == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("role repository is required")
	case cfg.Tokens == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("validation token repository is required")
	case cfg.Hasher == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("password hasher is required")
	case cfg.Transactor == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("transactor is required")
	case cfg.EmailValidation && cfg.Mailer == nil:
		return nil, oops.Code("SERVICE_INVALID").Errorf("mailer is required when email validation is enabled")
	}

	s := &RegistrationService{
		identities:      cfg.Identities,
		roles:           cfg.Roles,
		tokens:          cfg.Tokens,
		hasher:          cfg.Hasher,
		tx:              cfg.Transactor,
		mailer:          cfg.Mailer,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		emailValidation: cfg.EmailValidation,
		validationURL:   cfg.ValidationURL,
		phoneRegion:     cfg.PhoneRegion,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Register validates the input and creates the account with its role and
// a validation token. Registering an email that already exists succeeds
// without changing anything.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) error {
	in.Phone = StripPhoneNumber(in.Phone)
	if err := s.validateInput(in); err != nil {
		s.metrics.Registration(ResultRejected)
		return err
	}

	var phone *string
	if in.Phone != "" {
		formatted, err := FormatPhoneNumber(in.Phone, s.phoneRegion)
		if err != nil {
			s.metrics.Registration(ResultRejected)
			return err
		}
		phone = &formatted
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.Registration(ResultError)
		return oops.Code("REGISTRATION_FAILED").With("operation", "hash password").Wrap(err)
	}

	identity, err := NewIdentity(in.Name, in.Email, hash, phone)
	if err != nil {
		s.metrics.Registration(ResultRejected)
		return invalidInput("username", "%s", err.Error())
	}

	roleID := RoleIDStandardUser
	if in.AccountType == AccountTypeMerchant {
		roleID = RoleIDMerchant
	} else {
		identity.Validated = !s.emailValidation
	}

	token, tokenHash, err := GenerateValidationToken()
	if err != nil {
		s.metrics.Registration(ResultError)
		return oops.Code("REGISTRATION_FAILED").With("operation", "generate validation token").Wrap(err)
	}
	now := time.Now().UTC()

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.Create(ctx, identity); err != nil {
			return err
		}
		if err := s.roles.UpsertAssignment(ctx, identity.ID, roleID); err != nil {
			return err
		}
		return s.tokens.Upsert(ctx, &ValidationToken{
			IdentityID: identity.ID,
			TokenHash:  tokenHash,
			ExpiresAt:  now.Add(ValidationTokenExpiry),
			CreatedAt:  now,
		})
	})
	if errors.Is(err, ErrEmailTaken) {
		s.logger.InfoContext(ctx, "registration for existing email ignored")
		s.metrics.Registration(ResultRejected)
		return nil
	}
	if err != nil {
		s.metrics.Registration(ResultError)
		return oops.Code("REGISTRATION_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	if s.emailValidation && in.AccountType == AccountTypeUser {
		if err := s.mailer.SendValidationEmail(ctx, identity.Email, identity.Name, s.validationLink(token)); err != nil {
			s.logger.WarnContext(ctx, "failed to send validation email",
				"operation", "send validation email",
				"identity_id", identity.ID.String(),
				"error", err)
		}
	}

	s.metrics.Registration(ResultSuccess)
	return nil
}

// ValidateEmail consumes a validation token and marks its identity as
// validated.
func (s *RegistrationService) ValidateEmail(ctx context.Context, token string) error {
	if token == "" {
		return errValidationTokenInvalid()
	}

	stored, err := s.tokens.GetByTokenHash(ctx, HashValidationToken(token))
	if errors.Is(err, ErrNotFound) {
		return errValidationTokenInvalid()
	}
	if err != nil {
		return oops.Code("VALIDATION_FAILED").With("operation", "get validation token").Wrap(err)
	}
	if stored.IsExpired() {
		return errValidationTokenInvalid()
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.SetValidated(ctx, stored.IdentityID, true); err != nil {
			return err
		}
		return s.tokens.DeleteByIdentity(ctx, stored.IdentityID)
	})
	if errors.Is(err, ErrNotFound) {
		return errValidationTokenInvalid()
	}
	if err != nil {
		return oops.Code("VALIDATION_FAILED").
			With("operation", "mark identity validated").
			With("identity_id", stored.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

func errValidationTokenInvalid() error {
	return oops.Code("VALIDATION_TOKEN_INVALID").Errorf("invalid or expired validation token")
}

func (s *RegistrationService) validationLink(token string) string {
	u, err := url.Parse(s.validationURL)
	if err != nil || s.validationURL == "" {
		return "/validate-email?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *RegistrationService) validateInput(in RegistrationInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, MaxEmailLength), is.Email),
		validation.Field(&in.Password, validation.By(passwordRule)),
		validation.Field(&in.Phone, validation.By(s.phoneRule)),
		validation.Field(&in.AccountType, validation.Required, validation.In(AccountTypeUser, AccountTypeMerchant)),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for f := range fieldErrs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return oops.Code(CodeInvalidInput).With("fields", strings.Join(fields, ",")).Wrap(err)
	}
	return oops.Code(CodeInvalidInput).Wrap(err)
}

func passwordRule(value any) error {
	p, _ := value.(string)
	if !IsPasswordValid(p) {
		return errors.New("must be between 15 and 64 characters")
	}
	return nil
}

func (s *RegistrationService) phoneRule(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if _, err := FormatPhoneNumber(p, s.phoneRegion); err != nil {
		return errors.New("must be a valid phone number")
	}
	return nil
}

// StripPhoneNumber removes spaces, hyphens and brackets.
func StripPhoneNumber(phone string) string {
	return strings.NewReplacer("-", "", " ", "", "(", "", ")", "").Replace(phone)
}

// FormatPhoneNumber parses phone and returns it in E.164 form.
func FormatPhoneNumber(phone, defaultRegion string) (string, error) {
	num, err := phonenumbers.Parse(phone, defaultRegion)
	if err != nil {
		return "", oops.Code(CodeInvalidInput).With("field", "phone").Wrap(err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", invalidInput("phone", "invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
