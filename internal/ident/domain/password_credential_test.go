package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/stretchr/testify/require"
)

var now = domaintest.Now

func newCredential(t *testing.T, username, password string) *domain.PasswordCredential {
	t.Helper()
	c, err := domain.NewPasswordCredential(t.Context(), domaintest.Hasher{}, domain.NewPasswordCredentialParams{
		ID:            "cred-1",
		UserID:        "user-1",
		Username:      username,
		Password:      password,
		CanDisableMfa: true,
	}, now)
	require.NoError(t, err)
	return c
}

func TestNewPasswordCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "Alice@Example.com ", "long-enough", nil},
		{"short password", "alice@example.com", "short", domain.ErrValidation},
		{"empty username", "", "long-enough", domain.ErrValidation},
		{"not an email", "alice", "long-enough", domain.ErrValidation},
		{"display name form rejected", "Alice <alice@example.com>", "long-enough", domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := domain.NewPasswordCredential(t.Context(), domaintest.Hasher{}, domain.NewPasswordCredentialParams{
				ID: "cred-1", UserID: "user-1", Username: tt.username, Password: tt.password,
			}, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "alice@example.com", c.Username())
			require.Equal(t, domain.RegistrationUnregistered, c.RegistrationStatus())
			require.Equal(t, "plain$long-enough", c.State().PasswordHash)
		})
	}
}

func TestRegistrationStateMachine(t *testing.T) {
	t.Parallel()
	c := newCredential(t, "alice@example.com", "long-enough")
	secrets := &domaintest.Secrets{}

	// Verify requires a verification in flight.
	_, err := c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.ErrorIs(t, err, domain.ErrPreconditionViolation)
	require.ErrorIs(t, c.VerifyRegistration(now), domain.ErrPreconditionViolation)

	require.NoError(t, c.SetRegistrationDetails("alice@example.com", "Alice", now))
	token, err := c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, domain.RegistrationInitiated, c.RegistrationStatus())

	// Only the digest is kept.
	st := c.State()
	require.NotNil(t, st.Registration.VerificationDigest)
	require.Equal(t, domaintest.Digest.Digest(token), *st.Registration.VerificationDigest)

	// Same email again is a no-op, a different one is rejected.
	require.NoError(t, c.SetRegistrationDetails("ALICE@example.com", "", now))
	require.Equal(t, "Alice", c.DisplayName())
	require.ErrorIs(t, c.SetRegistrationDetails("mallory@example.com", "", now), domain.ErrValidation)

	require.NoError(t, c.VerifyRegistration(now))
	require.Equal(t, domain.RegistrationVerified, c.RegistrationStatus())
	require.Nil(t, c.State().Registration.VerificationDigest)

	// Idempotent.
	require.NoError(t, c.VerifyRegistration(now.Add(time.Minute)))

	_, err = c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.ErrorIs(t, err, domain.ErrPreconditionViolation)
}

func TestRestartRegistration(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	hasher := domaintest.Hasher{}
	secrets := &domaintest.Secrets{}

	c := newCredential(t, "alice@example.com", "first password")
	require.NoError(t, c.SetRegistrationDetails("alice@example.com", "Mallory", now))
	first, err := c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"short password", "short", domain.ErrValidation},
		{"replaces password", "second password", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.RestartRegistration(ctx, hasher, tt.password, "Alice", now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	st := c.State()
	require.Equal(t, "plain$second password", st.PasswordHash)
	require.Equal(t, "Alice", c.DisplayName())
	require.Nil(t, st.Registration.VerificationDigest, "the old link is void")

	second, err := c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.NoError(t, c.VerifyRegistration(now))

	err = c.RestartRegistration(ctx, hasher, "third password", "Eve", now)
	require.ErrorIs(t, err, domain.ErrPreconditionViolation)
	require.Equal(t, "plain$second password", c.State().PasswordHash)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	policy := domain.DefaultLockoutPolicy

	tests := []struct {
		name       string
		opts       []domaintest.CredentialOption
		password   string
		wantErr    error
		wantAudits []domain.AuditCode
		wantFailed int
	}{
		{
			name:       "success",
			password:   domaintest.DefaultPassword,
			wantAudits: []domain.AuditCode{domain.AuditAuthenticationSucceeded},
		},
		{
			name:       "success resets failures",
			opts:       []domaintest.CredentialOption{domaintest.FailedAttempts(3)},
			password:   domaintest.DefaultPassword,
			wantAudits: []domain.AuditCode{domain.AuditAuthenticationSucceeded},
		},
		{
			name:       "suspended",
			opts:       []domaintest.CredentialOption{domaintest.Suspended()},
			password:   domaintest.DefaultPassword,
			wantErr:    domain.ErrEntityLocked,
			wantAudits: []domain.AuditCode{domain.AuditAccountSuspended},
		},
		{
			name:       "locked",
			opts:       []domaintest.CredentialOption{domaintest.Locked(now.Add(time.Minute))},
			password:   domaintest.DefaultPassword,
			wantErr:    domain.ErrEntityLocked,
			wantAudits: []domain.AuditCode{domain.AuditAccountLocked},
			wantFailed: 5,
		},
		{
			name:       "expired lock clears itself",
			opts:       []domaintest.CredentialOption{domaintest.Locked(now.Add(-time.Second))},
			password:   domaintest.DefaultPassword,
			wantAudits: []domain.AuditCode{domain.AuditAuthenticationSucceeded},
		},
		{
			name:       "wrong password",
			password:   "wrong-password",
			wantErr:    domain.ErrNotAuthenticated,
			wantAudits: []domain.AuditCode{domain.AuditInvalidCredentials},
			wantFailed: 1,
		},
		{
			name:       "unverified",
			opts:       []domaintest.CredentialOption{domaintest.Unverified()},
			password:   domaintest.DefaultPassword,
			wantErr:    domain.ErrPreconditionViolation,
			wantAudits: []domain.AuditCode{domain.AuditNotVerified},
		},
		{
			name:       "unverified with wrong password reports bad credentials first",
			opts:       []domaintest.CredentialOption{domaintest.Unverified()},
			password:   "wrong-password",
			wantErr:    domain.ErrNotAuthenticated,
			wantAudits: []domain.AuditCode{domain.AuditInvalidCredentials},
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := domaintest.VerifiedCredential(t, tt.opts...)
			out, err := c.Authenticate(t.Context(), domaintest.Hasher{}, tt.password, policy, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantAudits, out.Audits)
			require.Equal(t, tt.wantFailed, c.FailedAttempts())
			require.False(t, out.MfaRequired)
		})
	}
}

func TestAuthenticateLocksAtThreshold(t *testing.T) {
	t.Parallel()
	policy := domain.LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute}
	c := domaintest.VerifiedCredential(t)

	for i := 1; i < policy.Threshold; i++ {
		out, err := c.Authenticate(t.Context(), domaintest.Hasher{}, "nope-nope", policy, now)
		require.ErrorIs(t, err, domain.ErrNotAuthenticated)
		require.Equal(t, []domain.AuditCode{domain.AuditInvalidCredentials}, out.Audits)
		require.False(t, c.IsLocked(now))
	}

	// Verify the threshold failure locks and reports both codes.
	out, err := c.Authenticate(t.Context(), domaintest.Hasher{}, "nope-nope", policy, now)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	require.Equal(t, []domain.AuditCode{domain.AuditInvalidCredentials, domain.AuditAccountLockedOut}, out.Audits)
	require.True(t, c.IsLocked(now))

	// The correct password is refused while locked.
	_, err = c.Authenticate(t.Context(), domaintest.Hasher{}, domaintest.DefaultPassword, policy, now.Add(29*time.Minute))
	require.ErrorIs(t, err, domain.ErrEntityLocked)

	// After the lock window the lock clears and the counter restarts.
	out, err = c.Authenticate(t.Context(), domaintest.Hasher{}, domaintest.DefaultPassword, policy, now.Add(31*time.Minute))
	require.NoError(t, err)
	require.Equal(t, []domain.AuditCode{domain.AuditAuthenticationSucceeded}, out.Audits)
	require.Zero(t, c.FailedAttempts())
	require.False(t, c.IsLocked(now.Add(31*time.Minute)))
}

func TestSuspendReinstate(t *testing.T) {
	t.Parallel()
	c := domaintest.VerifiedCredential(t, domaintest.Locked(now.Add(time.Hour)))

	c.Suspend(now)
	require.True(t, c.Suspended())
	_, err := c.Authenticate(t.Context(), domaintest.Hasher{}, domaintest.DefaultPassword, domain.DefaultLockoutPolicy, now)
	require.ErrorIs(t, err, domain.ErrEntityLocked)

	c.Reinstate(now)
	require.False(t, c.Suspended())
	require.False(t, c.IsLocked(now))
	_, err = c.Authenticate(t.Context(), domaintest.Hasher{}, domaintest.DefaultPassword, domain.DefaultLockoutPolicy, now)
	require.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	const ttl = time.Hour
	secrets := &domaintest.Secrets{}

	t.Run("complete replaces the password and clears lockout", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t, domaintest.Locked(now.Add(time.Hour)))
		token, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		require.True(t, c.PasswordResetPending(ttl, now))
		require.NoError(t, c.VerifyPasswordReset(domaintest.Digest, token, ttl, now))

		require.NoError(t, c.CompletePasswordReset(t.Context(), domaintest.Hasher{}, domaintest.Digest, token, "brand-new-password", ttl, now))
		require.False(t, c.PasswordResetPending(ttl, now))
		require.False(t, c.IsLocked(now))

		_, err = c.Authenticate(t.Context(), domaintest.Hasher{}, "brand-new-password", domain.DefaultLockoutPolicy, now)
		require.NoError(t, err)

		// Verify the token is single use.
		err = c.CompletePasswordReset(t.Context(), domaintest.Hasher{}, domaintest.Digest, token, "another-password", ttl, now)
		require.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		_, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		require.ErrorIs(t, c.VerifyPasswordReset(domaintest.Digest, "guess", ttl, now), domain.ErrEntityNotFound)
	})

	t.Run("expired token", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		token, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		require.ErrorIs(t, c.VerifyPasswordReset(domaintest.Digest, token, ttl, now.Add(ttl)), domain.ErrEntityNotFound)
	})

	t.Run("reissue invalidates the earlier token", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		first, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		second, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		require.ErrorIs(t, c.VerifyPasswordReset(domaintest.Digest, first, ttl, now), domain.ErrEntityNotFound)
		require.NoError(t, c.VerifyPasswordReset(domaintest.Digest, second, ttl, now))
	})

	t.Run("short new password", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		token, err := c.InitiatePasswordReset(secrets, domaintest.Digest, now)
		require.NoError(t, err)
		err = c.CompletePasswordReset(t.Context(), domaintest.Hasher{}, domaintest.Digest, token, "short", ttl, now)
		require.ErrorIs(t, err, domain.ErrValidation)
		require.True(t, c.PasswordResetPending(ttl, now), "failed completion keeps the reset pending")
	})
}

func TestChangeMfaEnabled(t *testing.T) {
	t.Parallel()
	kit, _ := domaintest.Kit()

	t.Run("only the owner", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		require.ErrorIs(t, c.ChangeMfaEnabled("someone-else", true, now), domain.ErrForbiddenAccess)
	})

	t.Run("enabling needs an active factor", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		require.ErrorIs(t, c.ChangeMfaEnabled(c.UserID(), true, now), domain.ErrPreconditionViolation)

		// A pending factor is not enough.
		_, err := c.AssociateMfaAuthenticator(t.Context(), kit, domain.MfaTotp, nil, nil, now)
		require.NoError(t, err)
		require.ErrorIs(t, c.ChangeMfaEnabled(c.UserID(), true, now), domain.ErrPreconditionViolation)
	})

	t.Run("mandatory mfa cannot be disabled", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t, domaintest.MandatoryMfa())
		domaintest.EnrollTotp(t, c, kit)
		require.ErrorIs(t, c.ChangeMfaEnabled(c.UserID(), false, now), domain.ErrPreconditionViolation)
	})

	t.Run("disable keeps authenticators", func(t *testing.T) {
		c := domaintest.VerifiedCredential(t)
		domaintest.EnrollTotp(t, c, kit)
		require.True(t, c.MfaRequired())
		require.NoError(t, c.ChangeMfaEnabled(c.UserID(), false, now))
		require.False(t, c.MfaRequired())
		require.Len(t, c.Authenticators(), 2)
	})
}

func TestRegistrationScenario(t *testing.T) {
	t.Parallel()
	secrets := &domaintest.Secrets{}

	// Register, authenticate before verification, verify, authenticate again.
	c := newCredential(t, "bob@example.com", "bobs-password")
	require.NoError(t, c.SetRegistrationDetails("bob@example.com", "Bob", now))
	_, err := c.InitiateRegistrationVerification(secrets, domaintest.Digest, now)
	require.NoError(t, err)

	_, err = c.Authenticate(t.Context(), domaintest.Hasher{}, "bobs-password", domain.DefaultLockoutPolicy, now)
	require.ErrorIs(t, err, domain.ErrPreconditionViolation)

	require.NoError(t, c.VerifyRegistration(now))
	out, err := c.Authenticate(t.Context(), domaintest.Hasher{}, "bobs-password", domain.DefaultLockoutPolicy, now)
	require.NoError(t, err)
	require.Equal(t, []domain.AuditCode{domain.AuditAuthenticationSucceeded}, out.Audits)
	require.False(t, out.MfaRequired)
}

func TestStateIsACopy(t *testing.T) {
	t.Parallel()
	kit, _ := domaintest.Kit()
	c := domaintest.VerifiedCredential(t)
	domaintest.EnrollTotp(t, c, kit)

	st := c.State()
	st.Authenticators[0].Active = false
	st.Authenticators[1].RecoveryCodes[0].Digest = "tampered"

	again := c.State()
	require.True(t, again.Authenticators[0].Active)
	require.NotEqual(t, "tampered", again.Authenticators[1].RecoveryCodes[0].Digest)
}
