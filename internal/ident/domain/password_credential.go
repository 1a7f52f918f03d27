package domain

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// MinPasswordLength is the shortest password accepted on registration or reset.
const MinPasswordLength = 8

// LockoutPolicy controls how many consecutive failures lock a credential and
// for how long.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks after five consecutive failures for thirty minutes.
var DefaultLockoutPolicy = LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}

// RegistrationStatus is the position in the registration state machine.
type RegistrationStatus string

const (
	RegistrationUnregistered RegistrationStatus = "unregistered"
	RegistrationInitiated    RegistrationStatus = "initiated"
	RegistrationVerified     RegistrationStatus = "verified"
)

type RegistrationRecord struct {
	Email              string
	DisplayName        string
	VerificationDigest *string
	InitiatedAt        *time.Time
	Verified           bool
	VerifiedAt         *time.Time
}

type PasswordResetRecord struct {
	TokenDigest *string
	InitiatedAt *time.Time
}

type LoginRecord struct {
	FailedAttempts int
	LockedUntil    *time.Time
	Suspended      bool
	LastLoginAt    *time.Time
}

type MfaOptions struct {
	Enabled       bool
	CanBeDisabled bool
}

// PasswordCredentialState is the persisted form of a PasswordCredential.
type PasswordCredentialState struct {
	ID             string
	UserID         string
	Username       string
	PasswordHash   string
	Registration   RegistrationRecord
	PasswordReset  PasswordResetRecord
	Login          LoginRecord
	Mfa            MfaOptions
	Authenticators []MfaAuthenticator
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PasswordCredential is a user's password-based credential and the entry point
// for authentication.
type PasswordCredential struct {
	st PasswordCredentialState
}

// NewPasswordCredentialParams describes a credential to create.
type NewPasswordCredentialParams struct {
	ID            string
	UserID        string
	Username      string
	Password      string
	CanDisableMfa bool
}

// NewPasswordCredential hashes the password and returns an unregistered
// credential.
func NewPasswordCredential(ctx context.Context, hasher PasswordHasher, p NewPasswordCredentialParams, now time.Time) (*PasswordCredential, error) {
	username, err := NormalizeUsername(p.Username)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(p.Password); err != nil {
		return nil, err
	}
	if p.ID == "" || p.UserID == "" {
		return nil, validationError("credential and user ids are required")
	}
	hash, err := hasher.HashPassword(ctx, p.Password)
	if err != nil {
		return nil, NewError(ErrUnexpected, "hash password").Because(err)
	}
	return &PasswordCredential{st: PasswordCredentialState{
		ID:           p.ID,
		UserID:       p.UserID,
		Username:     username,
		PasswordHash: hash,
		Mfa:          MfaOptions{CanBeDisabled: p.CanDisableMfa},
		CreatedAt:    now,
		UpdatedAt:    now,
	}}, nil
}

// PasswordCredentialFromPersisted rehydrates a credential from storage.
func PasswordCredentialFromPersisted(st PasswordCredentialState) *PasswordCredential {
	c := &PasswordCredential{st: st}
	c.st.Authenticators = cloneAuthenticators(st.Authenticators)
	return c
}

// State returns a copy of the credential for persistence.
func (c *PasswordCredential) State() PasswordCredentialState {
	st := c.st
	st.Authenticators = cloneAuthenticators(c.st.Authenticators)
	return st
}

func (c *PasswordCredential) ID() string { return c.st.ID }
func (c *PasswordCredential) UserID() string { return c.st.UserID }
func (c *PasswordCredential) Username() string { return c.st.Username }
func (c *PasswordCredential) Email() string { return c.st.Registration.Email }
func (c *PasswordCredential) DisplayName() string { return c.st.Registration.DisplayName }
func (c *PasswordCredential) MfaEnabled() bool { return c.st.Mfa.Enabled }
func (c *PasswordCredential) Suspended() bool { return c.st.Login.Suspended }
func (c *PasswordCredential) FailedAttempts() int { return c.st.Login.FailedAttempts }

// RegistrationStatus reports the registration state.
func (c *PasswordCredential) RegistrationStatus() RegistrationStatus {
	switch {
	case c.st.Registration.Verified:
		return RegistrationVerified
	case c.st.Registration.InitiatedAt != nil:
		return RegistrationInitiated
	}
	return RegistrationUnregistered
}

// IsLocked reports whether login is locked at now.
func (c *PasswordCredential) IsLocked(now time.Time) bool {
	return c.st.Login.LockedUntil != nil && now.Before(*c.st.Login.LockedUntil)
}

// Authenticators returns copies of the associated factors.
func (c *PasswordCredential) Authenticators() []MfaAuthenticator {
	return cloneAuthenticators(c.st.Authenticators)
}

// MfaRequired reports whether a successful password check must be followed by
// an MFA challenge.
func (c *PasswordCredential) MfaRequired() bool {
	return c.st.Mfa.Enabled && c.HasActiveFactor()
}

// SetRegistrationDetails records the email and display name. The email cannot
// change once set; repeating the same email only updates the display name.
func (c *PasswordCredential) SetRegistrationDetails(email, displayName string, now time.Time) error {
	normalized, err := NormalizeUsername(email)
	if err != nil {
		return err
	}
	reg := &c.st.Registration
	if reg.Email != "" && reg.Email != normalized {
		return validationError("registration email cannot be changed")
	}
	reg.Email = normalized
	if dn := strings.TrimSpace(displayName); dn != "" {
		reg.DisplayName = dn
	}
	c.touch(now)
	return nil
}

// RestartRegistration hands an unverified credential to whoever registers
// its email next. The password and display name are replaced and all other
// state except a suspension starts fresh. Whoever registered first never
// proved control of the address.
func (c *PasswordCredential) RestartRegistration(ctx context.Context, hasher PasswordHasher, password, displayName string, now time.Time) error {
	if c.st.Registration.Verified {
		return preconditionError("registration is already verified")
	}
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := hasher.HashPassword(ctx, password)
	if err != nil {
		return NewError(ErrUnexpected, "hash password").Because(err)
	}
	c.st.PasswordHash = hash
	c.st.Registration.DisplayName = strings.TrimSpace(displayName)
	c.st.Registration.VerificationDigest = nil
	c.st.PasswordReset = PasswordResetRecord{}
	c.st.Login = LoginRecord{Suspended: c.st.Login.Suspended}
	c.st.Mfa.Enabled = false
	c.st.Authenticators = nil
	c.touch(now)
	return nil
}

// InitiateRegistrationVerification issues a new verification token,
// invalidating any earlier one. The raw token is returned once.
func (c *PasswordCredential) InitiateRegistrationVerification(gen SecretGenerator, d Digester, now time.Time) (string, error) {
	reg := &c.st.Registration
	if reg.Email == "" {
		return "", preconditionError("registration details are not set")
	}
	if reg.Verified {
		return "", preconditionError("registration is already verified")
	}
	token, err := gen.Token()
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	digest := d.Digest(token)
	reg.VerificationDigest = &digest
	reg.InitiatedAt = &now
	c.touch(now)
	return token, nil
}

// VerifyRegistration marks the registration verified. Verifying twice is a
// no-op.
func (c *PasswordCredential) VerifyRegistration(now time.Time) error {
	reg := &c.st.Registration
	if reg.Verified {
		return nil
	}
	if reg.InitiatedAt == nil {
		return preconditionError("registration has not been initiated")
	}
	reg.Verified = true
	reg.VerifiedAt = &now
	reg.VerificationDigest = nil
	c.touch(now)
	return nil
}

// LoginOutcome is the result of an Authenticate call. Audits lists every
// outcome the caller must record, in order. The credential must be saved
// whatever the outcome, since failures mutate the login record.
type LoginOutcome struct {
	Audits      []AuditCode
	MfaRequired bool
}

// Authenticate checks password against the stored hash and drives the lockout
// state machine.
func (c *PasswordCredential) Authenticate(ctx context.Context, hasher PasswordHasher, password string, policy LockoutPolicy, now time.Time) (LoginOutcome, error) {
	login := &c.st.Login
	if login.Suspended {
		return LoginOutcome{Audits: []AuditCode{AuditAccountSuspended}}, lockedError("account is suspended")
	}
	if c.IsLocked(now) {
		return LoginOutcome{Audits: []AuditCode{AuditAccountLocked}}, lockedError("account is locked")
	}
	if login.LockedUntil != nil {
		login.LockedUntil = nil
		login.FailedAttempts = 0
	}

	ok, err := hasher.VerifyPassword(ctx, password, c.st.PasswordHash)
	if err != nil {
		return LoginOutcome{}, NewError(ErrUnexpected, "verify password").Because(err)
	}
	if !ok {
		out := LoginOutcome{Audits: []AuditCode{AuditInvalidCredentials}}
		login.FailedAttempts++
		if policy.Threshold > 0 && login.FailedAttempts >= policy.Threshold {
			until := now.Add(policy.Duration)
			login.LockedUntil = &until
			out.Audits = append(out.Audits, AuditAccountLockedOut)
		}
		c.touch(now)
		return out, notAuthenticatedError("invalid credentials")
	}

	if !c.st.Registration.Verified {
		return LoginOutcome{Audits: []AuditCode{AuditNotVerified}}, preconditionError("registration is not verified")
	}

	login.FailedAttempts = 0
	login.LastLoginAt = &now
	c.touch(now)
	out := LoginOutcome{Audits: []AuditCode{AuditAuthenticationSucceeded}}
	if c.MfaRequired() {
		out.MfaRequired = true
		out.Audits = append(out.Audits, AuditMfaRequired)
	}
	return out, nil
}

// Suspend blocks all logins until Reinstate.
func (c *PasswordCredential) Suspend(now time.Time) {
	c.st.Login.Suspended = true
	c.touch(now)
}

// Reinstate lifts a suspension and clears any lockout.
func (c *PasswordCredential) Reinstate(now time.Time) {
	c.st.Login = LoginRecord{LastLoginAt: c.st.Login.LastLoginAt}
	c.touch(now)
}

// InitiatePasswordReset issues a reset token, replacing any pending one.
func (c *PasswordCredential) InitiatePasswordReset(gen SecretGenerator, d Digester, now time.Time) (string, error) {
	token, err := gen.Token()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	digest := d.Digest(token)
	c.st.PasswordReset = PasswordResetRecord{TokenDigest: &digest, InitiatedAt: &now}
	c.touch(now)
	return token, nil
}

// PasswordResetPending reports whether a reset was initiated and has not
// expired.
func (c *PasswordCredential) PasswordResetPending(ttl time.Duration, now time.Time) bool {
	r := c.st.PasswordReset
	return r.TokenDigest != nil && r.InitiatedAt != nil && now.Before(r.InitiatedAt.Add(ttl))
}

// VerifyPasswordReset checks token without changing state.
func (c *PasswordCredential) VerifyPasswordReset(d Digester, token string, ttl time.Duration, now time.Time) error {
	if !c.PasswordResetPending(ttl, now) {
		return notFoundError("unknown password reset token")
	}
	if subtle.ConstantTimeCompare([]byte(d.Digest(token)), []byte(*c.st.PasswordReset.TokenDigest)) != 1 {
		return notFoundError("unknown password reset token")
	}
	return nil
}

// CompletePasswordReset replaces the password, clears the reset record and
// lifts any lockout.
func (c *PasswordCredential) CompletePasswordReset(ctx context.Context, hasher PasswordHasher, d Digester, token, newPassword string, ttl time.Duration, now time.Time) error {
	if err := c.VerifyPasswordReset(d, token, ttl, now); err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := hasher.HashPassword(ctx, newPassword)
	if err != nil {
		return NewError(ErrUnexpected, "hash password").Because(err)
	}
	c.st.PasswordHash = hash
	c.st.PasswordReset = PasswordResetRecord{}
	c.st.Login.FailedAttempts = 0
	c.st.Login.LockedUntil = nil
	c.touch(now)
	return nil
}

// ChangeMfaEnabled toggles MFA. Only the owning user may do so; enabling
// requires an active factor.
func (c *PasswordCredential) ChangeMfaEnabled(actorID string, enabled bool, now time.Time) error {
	if actorID != c.st.UserID {
		return forbiddenError("only the owner can change mfa settings")
	}
	if enabled == c.st.Mfa.Enabled {
		return nil
	}
	if enabled && !c.HasActiveFactor() {
		return preconditionError("mfa requires an active authenticator")
	}
	if !enabled && !c.st.Mfa.CanBeDisabled {
		return preconditionError("mfa cannot be disabled for this credential")
	}
	c.st.Mfa.Enabled = enabled
	c.touch(now)
	return nil
}

// HasActiveFactor reports whether a confirmed factor other than the recovery
// codes exists.
func (c *PasswordCredential) HasActiveFactor() bool {
	return slices.ContainsFunc(c.st.Authenticators, func(a MfaAuthenticator) bool {
		return a.Active && a.Type != MfaRecoveryCodes
	})
}

func (c *PasswordCredential) touch(now time.Time) { c.st.UpdatedAt = now }

// NormalizeUsername lower-cases and validates an email-style username.
func NormalizeUsername(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", validationError("email is required")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", validationError("email is not a valid address")
	}
	return s, nil
}

func checkPassword(p string) error {
	if len(p) < MinPasswordLength {
		return Errorf(ErrValidation, "password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func cloneAuthenticators(in []MfaAuthenticator) []MfaAuthenticator {
	if in == nil {
		return nil
	}
	out := make([]MfaAuthenticator, len(in))
	for i, a := range in {
		out[i] = a.clone()
	}
	return out
}
