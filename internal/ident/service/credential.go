package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/mfatoken"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/idx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// DataMfaToken is the error data key carrying the token that continues an
// MFA-gated login.
const DataMfaToken = "mfa_token"

// DefaultResetTTL is how long a password reset token stays usable.
const DefaultResetTTL = time.Hour

// CredentialService drives registration, login and password reset of
// password credentials.
type CredentialService struct {
	Store    store.Store
	Hasher   domain.PasswordHasher
	Secrets  domain.SecretGenerator
	Digest   domain.Digester
	Notifier Notifier
	Audit    *audit.Recorder

	// Tokens mints the platform token set handed out on a successful login.
	Tokens *PlatformTokenService
	// MfaTokens holds the short-lived sessions of logins waiting on an MFA
	// verification.
	MfaTokens mfatoken.Store

	Lockout       domain.LockoutPolicy
	ResetTTL      time.Duration
	CanDisableMfa bool
	Now           Clock

	dummyOnce sync.Once
	dummyHash string
}

func (s *CredentialService) lockout() domain.LockoutPolicy {
	if s.Lockout.Threshold <= 0 {
		return domain.DefaultLockoutPolicy
	}
	return s.Lockout
}

func (s *CredentialService) resetTTL() time.Duration {
	return orDuration(s.ResetTTL, DefaultResetTTL)
}

var errInvalidCredentials = domain.NewError(domain.ErrNotAuthenticated, "invalid credentials")

// RegisterParams is the input of Register.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
}

// Register creates a credential and sends its verification link. Registering
// an address that already has a verified account succeeds without doing
// anything visible, so the call does not reveal which accounts exist.
// Registering an unverified address again starts that registration over
// with the new password.
func (s *CredentialService) Register(ctx context.Context, p RegisterParams) error {
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	username, err := domain.NormalizeUsername(p.Email)
	if err != nil {
		return err
	}
	if len(p.Password) < domain.MinPasswordLength {
		return domain.Errorf(domain.ErrValidation, "password must be at least %d characters", domain.MinPasswordLength)
	}

	var (
		cred      *domain.PasswordCredential
		token     string
		duplicate bool
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUsername(ctx, username)
		switch {
		case err == nil:
			cred = domain.PasswordCredentialFromPersisted(st)
			if cred.RegistrationStatus() == domain.RegistrationVerified {
				duplicate = true
				return nil
			}
			if err := cred.RestartRegistration(ctx, s.Hasher, p.Password, p.DisplayName, now); err != nil {
				return err
			}
			if err := cred.SetRegistrationDetails(username, p.DisplayName, now); err != nil {
				return err
			}
			if token, err = cred.InitiateRegistrationVerification(s.Secrets, s.Digest, now); err != nil {
				return err
			}
			if err := tx.Credentials().UpdateCredential(ctx, cred.State()); err != nil {
				return err
			}
			return s.resetProfile(ctx, tx, cred, now)

		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		cred, err = domain.NewPasswordCredential(ctx, s.Hasher, domain.NewPasswordCredentialParams{
			ID:            idx.NewAt(now).String(),
			UserID:        idx.NewAt(now).String(),
			Username:      username,
			Password:      p.Password,
			CanDisableMfa: s.CanDisableMfa,
		}, now)
		if err != nil {
			return err
		}
		if err := cred.SetRegistrationDetails(username, p.DisplayName, now); err != nil {
			return err
		}
		if token, err = cred.InitiateRegistrationVerification(s.Secrets, s.Digest, now); err != nil {
			return err
		}
		if err := tx.Credentials().CreateCredential(ctx, cred.State()); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				duplicate = true
				token = ""
				return nil
			}
			return err
		}

		return s.resetProfile(ctx, tx, cred, now)
	})
	if err != nil {
		return err
	}

	if duplicate {
		l.Info("registration for existing account", "credential_id", cred.ID())
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditRegistrationDuplicate, UserID: cred.UserID(), CredentialID: cred.ID()})
		return nil
	}

	l.Info("registration initiated", "user_id", cred.UserID())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditRegistrationInitiated, UserID: cred.UserID(), CredentialID: cred.ID()})
	return s.sendVerification(ctx, cred, token)
}

// resetProfile writes the profile of a credential that is not verified yet,
// replacing whatever an earlier registration left.
func (s *CredentialService) resetProfile(ctx context.Context, tx store.Tx, cred *domain.PasswordCredential, now time.Time) error {
	profile := domain.UserProfile{
		UserID:    cred.UserID(),
		Email:     ptr(cred.Email()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if dn := cred.DisplayName(); dn != "" {
		profile.Name = ptr(dn)
	}
	return tx.Profiles().UpsertProfile(ctx, profile)
}

// ConfirmRegistration verifies the registration a verification token was
// issued for.
func (s *CredentialService) ConfirmRegistration(ctx context.Context, token string) error {
	now := s.Now.now()

	var cred *domain.PasswordCredential
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByVerificationDigest(ctx, s.Digest.Digest(token))
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown verification token"))
		}
		cred = domain.PasswordCredentialFromPersisted(st)
		if err := cred.VerifyRegistration(now); err != nil {
			return err
		}
		if err := tx.Credentials().UpdateCredential(ctx, cred.State()); err != nil {
			return err
		}

		profile, err := tx.Profiles().GetProfile(ctx, cred.UserID())
		switch {
		case errors.Is(err, store.ErrNotFound):
			profile = domain.UserProfile{UserID: cred.UserID(), CreatedAt: now}
		case err != nil:
			return err
		}
		profile.Email = ptr(cred.Email())
		profile.EmailVerified = true
		if profile.Name == nil && cred.DisplayName() != "" {
			profile.Name = ptr(cred.DisplayName())
		}
		profile.UpdatedAt = now
		return tx.Profiles().UpsertProfile(ctx, profile)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("registration verified", "user_id", cred.UserID())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditRegistrationVerified, UserID: cred.UserID(), CredentialID: cred.ID()})
	return nil
}

// ResendVerification issues a new verification link for a pending
// registration. Unknown and already verified addresses are ignored.
func (s *CredentialService) ResendVerification(ctx context.Context, email string) error {
	now := s.Now.now()
	username, err := domain.NormalizeUsername(email)
	if err != nil {
		return err
	}

	var (
		cred  *domain.PasswordCredential
		token string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cred = domain.PasswordCredentialFromPersisted(st)
		if cred.RegistrationStatus() != domain.RegistrationInitiated {
			return nil
		}
		if token, err = cred.InitiateRegistrationVerification(s.Secrets, s.Digest, now); err != nil {
			return err
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	if err != nil || token == "" {
		return err
	}

	s.Audit.Record(ctx, audit.Event{Code: domain.AuditRegistrationInitiated, UserID: cred.UserID(), CredentialID: cred.ID(), Detail: "resend"})
	return s.sendVerification(ctx, cred, token)
}

// sendVerification mails the verification token. A delivery failure is
// Unexpected: the registration is stored but the user cannot finish it.
func (s *CredentialService) sendVerification(ctx context.Context, cred *domain.PasswordCredential, token string) error {
	if s.Notifier == nil {
		return nil
	}
	if err := s.Notifier.Verification(ctx, cred.Email(), token); err != nil {
		slogx.FromContext(ctx).Error("verification notification failed",
			slog.String("user_id", cred.UserID()),
			slog.Any("error", err),
		)
		return domain.NewError(domain.ErrUnexpected, "send verification").Because(err)
	}
	return nil
}

// Authenticate checks a username and password. On success it returns a fresh
// platform token set, unless the credential requires MFA, in which case the
// error is ForbiddenAccess with an mfa_token in its data.
//
// An unknown username fails exactly like a wrong password.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (domain.IssuedTokens, error) {
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	username, err := domain.NormalizeUsername(username)
	if err != nil {
		return domain.IssuedTokens{}, errInvalidCredentials
	}

	var (
		cred    *domain.PasswordCredential
		outcome domain.LoginOutcome
		authErr error
		set     domain.IssuedTokens
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			s.burnHash(ctx, password)
			authErr = errInvalidCredentials
			return nil
		}
		if err != nil {
			return err
		}

		cred = domain.PasswordCredentialFromPersisted(st)
		outcome, authErr = cred.Authenticate(ctx, s.Hasher, password, s.lockout(), now)
		switch domain.KindOf(authErr) {
		case domain.ErrUnexpected:
			return authErr
		case domain.ErrEntityLocked:
			// Nothing changed on a suspended or locked credential.
			return nil
		}
		if err := tx.Credentials().UpdateCredential(ctx, cred.State()); err != nil {
			return err
		}
		if authErr != nil || outcome.MfaRequired {
			return nil
		}
		set, err = s.Tokens.issue(ctx, tx, cred.UserID(), []string{"pwd"})
		return err
	})
	if err != nil {
		return domain.IssuedTokens{}, err
	}

	if cred == nil {
		l.Info("authentication failed", "reason", "unknown account")
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditInvalidCredentials, Detail: "unknown account"})
		return domain.IssuedTokens{}, authErr
	}

	base := audit.Event{UserID: cred.UserID(), CredentialID: cred.ID()}
	s.Audit.RecordAll(ctx, base, outcome.Audits...)
	if authErr != nil {
		l.Info("authentication failed", "user_id", cred.UserID(), "reason", domain.ReasonOf(authErr))
		return domain.IssuedTokens{}, authErr
	}

	if outcome.MfaRequired {
		token, err := s.MfaTokens.Issue(ctx, mfatoken.Session{UserID: cred.UserID(), CredentialID: cred.ID()})
		if err != nil {
			return domain.IssuedTokens{}, fmt.Errorf("issue mfa token: %w", err)
		}
		l.Info("authentication awaiting mfa", "user_id", cred.UserID())
		return domain.IssuedTokens{}, domain.NewError(domain.ErrForbiddenAccess, "mfa required").WithData(DataMfaToken, token)
	}

	l.Info("authentication succeeded", "user_id", cred.UserID())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensIssued, UserID: cred.UserID()})
	return set, nil
}

// burnHash spends the same hashing work on an unknown username as on a real
// one, so response times do not reveal which accounts exist.
func (s *CredentialService) burnHash(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.HashPassword(context.WithoutCancel(ctx), "ident-timing-equaliser")
	})
	if s.dummyHash != "" {
		_, _ = s.Hasher.VerifyPassword(ctx, password, s.dummyHash)
	}
}

// InitiatePasswordReset sends a reset link to a registered address. Unknown
// addresses are ignored.
func (s *CredentialService) InitiatePasswordReset(ctx context.Context, email string) error {
	return s.startReset(ctx, email, false)
}

// ResendPasswordReset replaces a pending reset token with a new one and sends
// it again. Without a pending reset it does nothing.
func (s *CredentialService) ResendPasswordReset(ctx context.Context, email string) error {
	return s.startReset(ctx, email, true)
}

func (s *CredentialService) startReset(ctx context.Context, email string, pendingOnly bool) error {
	now := s.Now.now()
	username, err := domain.NormalizeUsername(email)
	if err != nil {
		return err
	}

	var (
		cred  *domain.PasswordCredential
		token string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cred = domain.PasswordCredentialFromPersisted(st)
		if pendingOnly && !cred.PasswordResetPending(s.resetTTL(), now) {
			return nil
		}
		if token, err = cred.InitiatePasswordReset(s.Secrets, s.Digest, now); err != nil {
			return err
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	if err != nil || token == "" {
		return err
	}

	l := slogx.FromContext(ctx)
	l.Info("password reset initiated", "user_id", cred.UserID())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditPasswordResetInitiated, UserID: cred.UserID(), CredentialID: cred.ID()})
	if s.Notifier == nil {
		return nil
	}
	if err := s.Notifier.PasswordReset(ctx, cred.Username(), token); err != nil {
		l.Error("password reset notification failed", "user_id", cred.UserID(), "error", err)
		return domain.NewError(domain.ErrUnexpected, "send password reset").Because(err)
	}
	return nil
}

func (s *CredentialService) credentialForReset(ctx context.Context, q store.Store, token string) (*domain.PasswordCredential, error) {
	st, err := q.Credentials().GetCredentialByResetDigest(ctx, s.Digest.Digest(token))
	if err != nil {
		return nil, orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown password reset token"))
	}
	return domain.PasswordCredentialFromPersisted(st), nil
}

// VerifyPasswordReset reports whether token is a live reset token.
func (s *CredentialService) VerifyPasswordReset(ctx context.Context, token string) error {
	cred, err := s.credentialForReset(ctx, s.Store, token)
	if err != nil {
		return err
	}
	return cred.VerifyPasswordReset(s.Digest, token, s.resetTTL(), s.Now.now())
}

// CompletePasswordReset sets a new password using a reset token.
func (s *CredentialService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	now := s.Now.now()

	var cred *domain.PasswordCredential
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if cred, err = s.credentialForReset(ctx, tx, token); err != nil {
			return err
		}
		if err := cred.CompletePasswordReset(ctx, s.Hasher, s.Digest, token, newPassword, s.resetTTL(), now); err != nil {
			return err
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset completed", "user_id", cred.UserID())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditPasswordResetCompleted, UserID: cred.UserID(), CredentialID: cred.ID()})
	return nil
}

// ChangeMfa turns MFA on or off for userID on behalf of actorID.
func (s *CredentialService) ChangeMfa(ctx context.Context, actorID, userID string, enabled bool) error {
	now := s.Now.now()

	var cred *domain.PasswordCredential
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUserID(ctx, userID)
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown credential"))
		}
		cred = domain.PasswordCredentialFromPersisted(st)
		if err := cred.ChangeMfaEnabled(actorID, enabled, now); err != nil {
			return err
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, audit.Event{
		Code:         domain.AuditMfaEnabledChanged,
		UserID:       cred.UserID(),
		CredentialID: cred.ID(),
		Detail:       fmt.Sprintf("enabled=%t", enabled),
	})
	return nil
}

// Suspend blocks every login of the account registered under username.
func (s *CredentialService) Suspend(ctx context.Context, username string) error {
	return s.setSuspended(ctx, username, true)
}

// Reinstate lifts a suspension and any lockout.
func (s *CredentialService) Reinstate(ctx context.Context, username string) error {
	return s.setSuspended(ctx, username, false)
}

func (s *CredentialService) setSuspended(ctx context.Context, username string, suspended bool) error {
	now := s.Now.now()
	username, err := domain.NormalizeUsername(username)
	if err != nil {
		return err
	}

	var cred *domain.PasswordCredential
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Credentials().GetCredentialByUsername(ctx, username)
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown credential"))
		}
		cred = domain.PasswordCredentialFromPersisted(st)
		if suspended {
			cred.Suspend(now)
		} else {
			cred.Reinstate(now)
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	if err != nil {
		return err
	}

	code := domain.AuditCredentialReinstated
	if suspended {
		code = domain.AuditCredentialSuspended
	}
	slogx.FromContext(ctx).Info("credential suspension changed", "user_id", cred.UserID(), "suspended", suspended)
	s.Audit.Record(ctx, audit.Event{Code: code, UserID: cred.UserID(), CredentialID: cred.ID()})
	return nil
}
