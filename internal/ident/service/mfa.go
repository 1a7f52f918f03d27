package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/mfatoken"
	"github.com/aussiebroadwan/ident/internal/ident/notify"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// MfaService runs the MFA sub-protocol of a credential: enrollment,
// challenges and verification, including the second step of an MFA-gated
// login.
type MfaService struct {
	Store     store.Store
	Kit       domain.MfaKit
	Notifier  Notifier
	MfaTokens mfatoken.Store
	Tokens    *PlatformTokenService
	Audit     *audit.Recorder
	Now       Clock
}

// MfaStatus is the MFA view of one credential.
type MfaStatus struct {
	Enabled        bool
	Authenticators []domain.MfaAuthenticator
}

// VerifyParams carries a confirmation code for one factor type.
type VerifyParams struct {
	Type    domain.MfaType
	OobCode *string
	Code    string
}

// ResolveMfaToken returns the user an in-flight MFA login belongs to.
func (s *MfaService) ResolveMfaToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.NewError(domain.ErrNotAuthenticated, "mfa_token is required")
	}
	sess, err := s.MfaTokens.Lookup(ctx, token)
	if errors.Is(err, mfatoken.ErrNotFound) {
		return "", domain.NewError(domain.ErrNotAuthenticated, "unknown or expired mfa_token")
	}
	if err != nil {
		return "", fmt.Errorf("lookup mfa token: %w", err)
	}
	return sess.UserID, nil
}

func (s *MfaService) load(ctx context.Context, q store.Store, userID string) (*domain.PasswordCredential, error) {
	st, err := q.Credentials().GetCredentialByUserID(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, domain.NewError(domain.ErrNotAuthenticated, "unknown credential"))
	}
	return domain.PasswordCredentialFromPersisted(st), nil
}

// mutate loads the credential of userID, applies fn and saves the result in
// one transaction.
func (s *MfaService) mutate(ctx context.Context, userID string, fn func(*domain.PasswordCredential) error) (*domain.PasswordCredential, error) {
	var cred *domain.PasswordCredential
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if cred, err = s.load(ctx, tx, userID); err != nil {
			return err
		}
		if err := fn(cred); err != nil {
			return err
		}
		return tx.Credentials().UpdateCredential(ctx, cred.State())
	})
	return cred, err
}

func (s *MfaService) List(ctx context.Context, userID string) (MfaStatus, error) {
	cred, err := s.load(ctx, s.Store, userID)
	if err != nil {
		return MfaStatus{}, err
	}
	return MfaStatus{Enabled: cred.MfaEnabled(), Authenticators: cred.Authenticators()}, nil
}

// errFactorEnrolled refuses enrollment over an mfa_token once the credential
// has a real factor: from then on only a fully authenticated caller may
// change the factors.
var errFactorEnrolled = domain.NewError(domain.ErrForbiddenAccess, "mfa_token cannot change an enrolled credential")

// firstFactorOnly is the guard for enrollment started from an mfa_token.
func firstFactorOnly(c *domain.PasswordCredential) error {
	if c.HasActiveFactor() {
		return errFactorEnrolled
	}
	return nil
}

// Associate enrolls a pending factor. Out-of-band factors get their first
// code dispatched right away.
func (s *MfaService) Associate(ctx context.Context, userID string, typ domain.MfaType, phone, email *string) (domain.MfaAssociation, error) {
	return s.associate(ctx, userID, nil, typ, phone, email)
}

// AssociateForLogin is Associate for a caller holding only an mfa_token. It
// is allowed while the credential has no active factor.
func (s *MfaService) AssociateForLogin(ctx context.Context, mfaToken string, typ domain.MfaType, phone, email *string) (domain.MfaAssociation, error) {
	userID, err := s.ResolveMfaToken(ctx, mfaToken)
	if err != nil {
		return domain.MfaAssociation{}, err
	}
	return s.associate(ctx, userID, firstFactorOnly, typ, phone, email)
}

func (s *MfaService) associate(ctx context.Context, userID string, guard func(*domain.PasswordCredential) error, typ domain.MfaType, phone, email *string) (domain.MfaAssociation, error) {
	now := s.Now.now()
	var assoc domain.MfaAssociation
	cred, err := s.mutate(ctx, userID, func(c *domain.PasswordCredential) error {
		if guard != nil {
			if err := guard(c); err != nil {
				return err
			}
		}
		var err error
		assoc, err = c.AssociateMfaAuthenticator(ctx, s.Kit, typ, phone, email, now)
		return err
	})
	if err != nil {
		return domain.MfaAssociation{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		Code:         domain.AuditMfaAssociated,
		UserID:       cred.UserID(),
		CredentialID: cred.ID(),
		Detail:       string(typ),
	})
	if err := s.dispatch(ctx, assoc.Oob); err != nil {
		return domain.MfaAssociation{}, err
	}
	if assoc.Oob != nil {
		oob := *assoc.Oob
		oob.Secret = ""
		assoc.Oob = &oob
	}
	return assoc, nil
}

func (s *MfaService) Confirm(ctx context.Context, userID string, p VerifyParams) (domain.MfaAuthenticator, error) {
	return s.confirm(ctx, userID, nil, p)
}

// ConfirmForLogin confirms the pending factor of a credential that has no
// active factor yet, for a caller holding only an mfa_token.
func (s *MfaService) ConfirmForLogin(ctx context.Context, mfaToken string, p VerifyParams) (domain.MfaAuthenticator, error) {
	userID, err := s.ResolveMfaToken(ctx, mfaToken)
	if err != nil {
		return domain.MfaAuthenticator{}, err
	}
	return s.confirm(ctx, userID, firstFactorOnly, p)
}

func (s *MfaService) confirm(ctx context.Context, userID string, guard func(*domain.PasswordCredential) error, p VerifyParams) (domain.MfaAuthenticator, error) {
	now := s.Now.now()
	var confirmed domain.MfaAuthenticator
	cred, err := s.mutate(ctx, userID, func(c *domain.PasswordCredential) error {
		if guard != nil {
			if err := guard(c); err != nil {
				return err
			}
		}
		var err error
		confirmed, err = c.ConfirmMfaAuthenticatorAssociation(ctx, s.Kit, p.Type, p.OobCode, p.Code, now)
		return err
	})
	if err != nil {
		return domain.MfaAuthenticator{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		Code:         domain.AuditMfaConfirmed,
		UserID:       cred.UserID(),
		CredentialID: cred.ID(),
		Detail:       confirmed.ID,
	})
	return confirmed, nil
}

// Challenge starts a verification on one factor. For out-of-band factors the
// returned dispatch carries the handle the client must echo back; its Secret
// has already been sent to the user and is cleared.
func (s *MfaService) Challenge(ctx context.Context, userID, authenticatorID string) (*domain.OobDispatch, error) {
	now := s.Now.now()
	var dispatch *domain.OobDispatch
	cred, err := s.mutate(ctx, userID, func(c *domain.PasswordCredential) error {
		var err error
		dispatch, err = c.ChallengeMfaAuthenticator(s.Kit, authenticatorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, audit.Event{
		Code:         domain.AuditMfaChallenged,
		UserID:       cred.UserID(),
		CredentialID: cred.ID(),
		Detail:       authenticatorID,
	})
	if err := s.dispatch(ctx, dispatch); err != nil {
		return nil, err
	}
	if dispatch != nil {
		out := *dispatch
		out.Secret = ""
		return &out, nil
	}
	return nil, nil
}

// VerifyLogin completes an MFA-gated login. A wrong code counts against the
// mfa_token; once the attempts are used up the token is dropped and the
// login has to start over.
func (s *MfaService) VerifyLogin(ctx context.Context, mfaToken string, p VerifyParams) (domain.IssuedTokens, error) {
	l := slogx.FromContext(ctx)

	userID, err := s.ResolveMfaToken(ctx, mfaToken)
	if err != nil {
		return domain.IssuedTokens{}, err
	}

	var (
		result domain.MfaVerification
		set    domain.IssuedTokens
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if result, err = s.verifyTx(ctx, tx, userID, p); err != nil {
			return err
		}
		set, err = s.Tokens.issue(ctx, tx, userID, []string{"pwd", "mfa", string(p.Type)})
		return err
	})
	s.recordVerification(ctx, userID, p.Type, result, err)

	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			if _, ferr := s.MfaTokens.Fail(ctx, mfaToken); errors.Is(ferr, mfatoken.ErrExhausted) {
				l.Info("mfa login abandoned after too many attempts", "user_id", userID)
				return domain.IssuedTokens{}, domain.NewError(domain.ErrNotAuthenticated, "too many failed attempts").Because(err)
			}
		}
		return domain.IssuedTokens{}, err
	}

	if err := s.MfaTokens.Delete(ctx, mfaToken); err != nil {
		l.Warn("delete mfa token", "error", err)
	}
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensIssued, UserID: userID, Detail: "mfa"})
	return set, nil
}

func (s *MfaService) verifyTx(ctx context.Context, tx store.Tx, userID string, p VerifyParams) (domain.MfaVerification, error) {
	cred, err := s.load(ctx, tx, userID)
	if err != nil {
		return domain.MfaVerification{}, err
	}
	result, err := cred.VerifyMfaAuthenticator(ctx, s.Kit, p.Type, p.OobCode, p.Code, s.Now.now())
	if err != nil {
		return domain.MfaVerification{}, err
	}
	return result, tx.Credentials().UpdateCredential(ctx, cred.State())
}

func (s *MfaService) recordVerification(ctx context.Context, userID string, typ domain.MfaType, result domain.MfaVerification, err error) {
	base := audit.Event{UserID: userID, Detail: string(typ)}
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			base.Code = domain.AuditMfaVerifyFailed
			s.Audit.Record(ctx, base)
		}
		return
	}
	s.Audit.RecordAll(ctx, base, result.Audits...)
}

// Disassociate removes a factor and returns the ids of every authenticator
// that went with it.
func (s *MfaService) Disassociate(ctx context.Context, userID, authenticatorID string) ([]string, error) {
	now := s.Now.now()
	var removed []string
	cred, err := s.mutate(ctx, userID, func(c *domain.PasswordCredential) error {
		var err error
		removed, err = c.DisassociateMfaAuthenticator(authenticatorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, id := range removed {
		s.Audit.Record(ctx, audit.Event{
			Code:         domain.AuditMfaDisassociated,
			UserID:       cred.UserID(),
			CredentialID: cred.ID(),
			Detail:       id,
		})
	}
	return removed, nil
}

// dispatch sends an out-of-band code. The code is already stored, so a
// failed send leaves a challenge nobody can answer; the caller sees
// Unexpected and can challenge again.
func (s *MfaService) dispatch(ctx context.Context, d *domain.OobDispatch) error {
	if d == nil || s.Notifier == nil {
		return nil
	}
	channel := notify.ChannelEmail
	if d.Type == domain.MfaOobSms {
		channel = notify.ChannelSMS
	}
	if err := s.Notifier.MfaCode(ctx, channel, d.Destination, d.Secret); err != nil {
		slogx.FromContext(ctx).Error("mfa code notification failed",
			"authenticator_id", d.AuthenticatorID,
			"error", err,
		)
		return domain.NewError(domain.ErrUnexpected, "send mfa code").Because(err)
	}
	return nil
}
