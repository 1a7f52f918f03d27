// Package domaintest provides deterministic capabilities and fixture builders
// for tests of the domain and the layers above it. It must only be imported
// from _test.go files.
package domaintest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/aussiebroadwan/ident/pkg/idx"
)

// Now is the fixed clock used by fixtures.
var Now = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

// DefaultPassword is the password every fixture credential is created with.
const DefaultPassword = "correct horse battery"

// Hasher is a transparent PasswordHasher. Hashes look like "plain$<password>".
type Hasher struct{}

func (Hasher) HashPassword(ctx context.Context, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "plain$" + password, nil
}

func (Hasher) VerifyPassword(ctx context.Context, password, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	stored, ok := strings.CutPrefix(hash, "plain$")
	if !ok {
		return false, errors.New("domaintest: malformed hash")
	}
	return stored == password, nil
}

// Cipher reverses the string and tags it, which is enough to prove the value is
// not stored raw while keeping failures readable.
type Cipher struct{}

func (Cipher) Encrypt(_ context.Context, plaintext string) (string, error) {
	return "enc:" + reverse(plaintext), nil
}

func (Cipher) Decrypt(_ context.Context, ciphertext string) (string, error) {
	raw, ok := strings.CutPrefix(ciphertext, "enc:")
	if !ok {
		return "", errors.New("domaintest: not a ciphertext")
	}
	return reverse(raw), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Secrets hands out predictable tokens ("token-1", "token-2", ...) and numeric
// codes ("000001", ...).
type Secrets struct {
	mu sync.Mutex
	n  int
}

func (s *Secrets) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

func (s *Secrets) Token() (string, error) {
	return fmt.Sprintf("token-%d", s.next()), nil
}

func (s *Secrets) Numeric(digits int) (string, error) {
	return fmt.Sprintf("%0*d", digits, s.next()), nil
}

// Issuer mints opaque, numbered token sets with fixed lifetimes.
type Issuer struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	IDTTL      time.Duration
	// Clock defaults to Now.
	Clock func() time.Time

	mu       sync.Mutex
	n        int
	Requests []domain.TokenRequest
}

func (i *Issuer) Issue(_ context.Context, req domain.TokenRequest) (domain.IssuedTokens, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.n++
	i.Requests = append(i.Requests, req)

	now := Now
	if i.Clock != nil {
		now = i.Clock()
	}
	return domain.IssuedTokens{
		AccessToken:      fmt.Sprintf("access-%d", i.n),
		RefreshToken:     fmt.Sprintf("refresh-%d", i.n),
		IDToken:          fmt.Sprintf("id-%d", i.n),
		AccessExpiresAt:  now.Add(orDefault(i.AccessTTL, 15*time.Minute)),
		RefreshExpiresAt: now.Add(orDefault(i.RefreshTTL, 24*time.Hour)),
		IDExpiresAt:      now.Add(orDefault(i.IDTTL, time.Hour)),
		Scopes:           req.Scopes,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// Digest is the production digester; it is deterministic already.
var Digest domain.Digester = cryptox.SHA256Digester{}

// TOTP is the production TOTP implementation; tests derive codes with CodeAt.
var TOTP = cryptox.NewTOTP("ident-test")

// Vault returns a TokenVault backed by the fake cipher.
func Vault() domain.TokenVault {
	return domain.TokenVault{Cipher: Cipher{}, Digest: Digest}
}

// Kit returns an MfaKit with one step of TOTP drift.
func Kit() (domain.MfaKit, *Secrets) {
	secrets := &Secrets{}
	return domain.MfaKit{
		TOTP:         TOTP,
		Cipher:       Cipher{},
		Secrets:      secrets,
		Digest:       Digest,
		MaxTimeSteps: 1,
	}, secrets
}

// CredentialOption adjusts a fixture credential state.
type CredentialOption func(*domain.PasswordCredentialState)

// Unverified leaves the registration initiated but not verified.
func Unverified() CredentialOption {
	return func(st *domain.PasswordCredentialState) {
		st.Registration.Verified = false
		st.Registration.VerifiedAt = nil
		digest := Digest.Digest("verify-token")
		st.Registration.VerificationDigest = &digest
	}
}

// Locked locks the credential until the given time.
func Locked(until time.Time) CredentialOption {
	return func(st *domain.PasswordCredentialState) {
		st.Login.FailedAttempts = domain.DefaultLockoutPolicy.Threshold
		st.Login.LockedUntil = &until
	}
}

// Suspended marks the credential suspended.
func Suspended() CredentialOption {
	return func(st *domain.PasswordCredentialState) { st.Login.Suspended = true }
}

// FailedAttempts presets the failure counter.
func FailedAttempts(n int) CredentialOption {
	return func(st *domain.PasswordCredentialState) { st.Login.FailedAttempts = n }
}

// MandatoryMfa makes MFA impossible to disable.
func MandatoryMfa() CredentialOption {
	return func(st *domain.PasswordCredentialState) { st.Mfa.CanBeDisabled = false }
}

// WithUsername overrides the login email.
func WithUsername(email string) CredentialOption {
	return func(st *domain.PasswordCredentialState) {
		st.Username = email
		st.Registration.Email = email
	}
}

// VerifiedCredential returns a registered, verified credential whose password
// is DefaultPassword.
func VerifiedCredential(t testing.TB, opts ...CredentialOption) *domain.PasswordCredential {
	t.Helper()
	st := CredentialState(opts...)
	return domain.PasswordCredentialFromPersisted(st)
}

// CredentialState builds the persisted state behind VerifiedCredential.
func CredentialState(opts ...CredentialOption) domain.PasswordCredentialState {
	initiated := Now.Add(-time.Hour)
	verified := Now.Add(-50 * time.Minute)
	st := domain.PasswordCredentialState{
		ID:           idx.New().String(),
		UserID:       idx.New().String(),
		Username:     "alice@example.com",
		PasswordHash: "plain$" + DefaultPassword,
		Registration: domain.RegistrationRecord{
			Email:       "alice@example.com",
			DisplayName: "Alice",
			InitiatedAt: &initiated,
			Verified:    true,
			VerifiedAt:  &verified,
		},
		Mfa:       domain.MfaOptions{CanBeDisabled: true},
		CreatedAt: initiated,
		UpdatedAt: verified,
	}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// EnrollTotp associates and confirms a TOTP factor on c, enables MFA, and
// returns the shared secret and the raw recovery codes.
func EnrollTotp(t testing.TB, c *domain.PasswordCredential, kit domain.MfaKit) (secret string, recovery []string) {
	t.Helper()
	ctx := context.Background()
	assoc, err := c.AssociateMfaAuthenticator(ctx, kit, domain.MfaTotp, nil, nil, Now)
	if err != nil {
		t.Fatalf("associate totp: %v", err)
	}
	// Confirm one step in the past so the current step stays usable for
	// verification.
	at := Now.Add(-30 * time.Second)
	code, err := TOTP.CodeAt(assoc.Secret, at)
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	if _, err := c.ConfirmMfaAuthenticatorAssociation(ctx, kit, domain.MfaTotp, nil, code, at); err != nil {
		t.Fatalf("confirm totp: %v", err)
	}
	if err := c.ChangeMfaEnabled(c.UserID(), true, Now); err != nil {
		t.Fatalf("enable mfa: %v", err)
	}
	return assoc.Secret, assoc.RecoveryCodes
}

// Client returns a confidential client named "demo" and its raw secret.
func Client(t testing.TB) (*domain.OAuth2Client, string) {
	t.Helper()
	c, err := domain.NewOAuth2Client("", "demo", "https://rp.example.com/callback", Now)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	raw, err := c.GenerateSecret(context.Background(), &Secrets{}, Hasher{}, nil, Now)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	return c, raw
}

// PublicClient returns a client without secrets.
func PublicClient(t testing.TB) *domain.OAuth2Client {
	t.Helper()
	c, err := domain.NewOAuth2Client("", "spa", "https://spa.example.com/callback", Now)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

// S256Challenge returns the S256 PKCE challenge for verifier.
func S256Challenge(verifier string) string {
	return cryptox.PKCEChallengeS256(verifier)
}
