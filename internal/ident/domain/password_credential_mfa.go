package domain

import (
	"context"
	"slices"
	"strings"
	"time"
)

// MfaAssociation is the result of associating a factor. Secret and BarCodeURI
// are set for TOTP, Oob for out-of-band factors. RecoveryCodes is only set when
// this association created the recovery authenticator, and is never returned
// again.
type MfaAssociation struct {
	Authenticator MfaAuthenticator
	Secret        string
	BarCodeURI    string
	Oob           *OobDispatch
	RecoveryCodes []string
}

// AssociateMfaAuthenticator adds a pending factor of typ. A pending factor of
// the same type is replaced. The first factor ever associated also creates the
// active recovery codes authenticator.
func (c *PasswordCredential) AssociateMfaAuthenticator(ctx context.Context, kit MfaKit, typ MfaType, phone, email *string, now time.Time) (MfaAssociation, error) {
	if typ == MfaRecoveryCodes {
		return MfaAssociation{}, validationError("recovery codes are issued automatically")
	}
	for _, a := range c.st.Authenticators {
		if a.Type == typ && a.Active {
			return MfaAssociation{}, Errorf(ErrValidation, "an active %s authenticator is already associated", typ)
		}
	}

	var (
		out MfaAssociation
		a   *MfaAuthenticator
		err error
	)
	switch typ {
	case MfaTotp:
		a, out.Secret, err = newTotpAuthenticator(ctx, kit, c.st.Username, now)
		if err == nil {
			out.BarCodeURI = deref(a.BarCodeURI)
		}
	case MfaOobSms:
		if phone == nil || strings.TrimSpace(*phone) == "" {
			return MfaAssociation{}, validationError("phone number is required for sms authenticators")
		}
		a, out.Oob, err = newOobAuthenticator(kit, typ, strings.TrimSpace(*phone), now)
	case MfaOobEmail:
		dest := c.st.Registration.Email
		if email != nil && strings.TrimSpace(*email) != "" {
			if dest, err = NormalizeUsername(*email); err != nil {
				return MfaAssociation{}, err
			}
		}
		if dest == "" {
			return MfaAssociation{}, validationError("email is required for email authenticators")
		}
		a, out.Oob, err = newOobAuthenticator(kit, typ, dest, now)
	default:
		return MfaAssociation{}, Errorf(ErrValidation, "unsupported authenticator type %q", typ)
	}
	if err != nil {
		return MfaAssociation{}, err
	}

	c.st.Authenticators = slices.DeleteFunc(c.st.Authenticators, func(x MfaAuthenticator) bool {
		return x.Type == typ && !x.Active
	})
	c.st.Authenticators = append(c.st.Authenticators, *a)

	if !c.hasRecoveryCodes() {
		rec, codes, err := newRecoveryAuthenticator(kit, now)
		if err != nil {
			return MfaAssociation{}, err
		}
		c.st.Authenticators = append(c.st.Authenticators, *rec)
		out.RecoveryCodes = codes
	}

	c.touch(now)
	out.Authenticator = a.clone()
	return out, nil
}

// ConfirmMfaAuthenticatorAssociation activates the pending factor of typ when
// the confirmation code checks out.
func (c *PasswordCredential) ConfirmMfaAuthenticatorAssociation(ctx context.Context, kit MfaKit, typ MfaType, oobCode *string, confirmationCode string, now time.Time) (MfaAuthenticator, error) {
	a := c.findAuthenticator(func(a *MfaAuthenticator) bool { return a.Type == typ && !a.Active })
	if a == nil {
		return MfaAuthenticator{}, Errorf(ErrEntityNotFound, "no pending %s authenticator", typ)
	}
	if err := a.check(ctx, kit, oobCode, confirmationCode, now); err != nil {
		return MfaAuthenticator{}, err
	}
	a.Active = true
	a.ConfirmedAt = &now
	c.touch(now)
	return a.clone(), nil
}

// ChallengeMfaAuthenticator starts a challenge on an active factor. TOTP
// challenges are implicit and return nil; out-of-band factors return a fresh
// code to dispatch.
func (c *PasswordCredential) ChallengeMfaAuthenticator(kit MfaKit, authenticatorID string, now time.Time) (*OobDispatch, error) {
	a := c.findAuthenticator(func(a *MfaAuthenticator) bool { return a.ID == authenticatorID })
	if a == nil {
		return nil, notFoundError("unknown authenticator")
	}
	if !a.Active {
		return nil, validationError("authenticator is not active")
	}
	switch {
	case a.Type == MfaTotp:
		return nil, nil
	case a.Type.IsOob():
		d, err := a.issueOob(kit)
		if err != nil {
			return nil, err
		}
		c.touch(now)
		return d, nil
	}
	return nil, validationError("recovery codes cannot be challenged")
}

// MfaVerification is the result of a successful VerifyMfaAuthenticator.
type MfaVerification struct {
	AuthenticatorID string
	Type            MfaType
	Audits          []AuditCode
}

// VerifyMfaAuthenticator checks a code against the active factor of typ. On
// success the verified state is refreshed so the same code cannot be replayed.
func (c *PasswordCredential) VerifyMfaAuthenticator(ctx context.Context, kit MfaKit, typ MfaType, oobCode *string, confirmationCode string, now time.Time) (MfaVerification, error) {
	a := c.findAuthenticator(func(a *MfaAuthenticator) bool { return a.Type == typ && a.Active })
	if a == nil {
		return MfaVerification{}, Errorf(ErrEntityNotFound, "no active %s authenticator", typ)
	}
	out := MfaVerification{AuthenticatorID: a.ID, Type: a.Type}
	if typ == MfaRecoveryCodes {
		if err := a.consumeRecoveryCode(kit, confirmationCode, now); err != nil {
			return MfaVerification{}, err
		}
		out.Audits = []AuditCode{AuditRecoveryCodeConsumed, AuditMfaVerified}
	} else {
		if err := a.check(ctx, kit, oobCode, confirmationCode, now); err != nil {
			return MfaVerification{}, err
		}
		out.Audits = []AuditCode{AuditMfaVerified}
	}
	c.touch(now)
	return out, nil
}

// DisassociateMfaAuthenticator removes one factor. Removing the last real
// factor also removes the recovery codes and turns MFA off. It returns the ids
// of every removed authenticator.
func (c *PasswordCredential) DisassociateMfaAuthenticator(authenticatorID string, now time.Time) ([]string, error) {
	target := c.findAuthenticator(func(a *MfaAuthenticator) bool { return a.ID == authenticatorID })
	if target == nil {
		return nil, notFoundError("unknown authenticator")
	}
	if target.Type == MfaRecoveryCodes {
		return nil, validationError("recovery codes are removed with the last authenticator")
	}

	remaining := slices.DeleteFunc(cloneAuthenticators(c.st.Authenticators), func(a MfaAuthenticator) bool {
		return a.ID == authenticatorID
	})
	activeLeft := slices.ContainsFunc(remaining, func(a MfaAuthenticator) bool {
		return a.Active && a.Type != MfaRecoveryCodes
	})
	if c.st.Mfa.Enabled && !activeLeft {
		if !c.st.Mfa.CanBeDisabled {
			return nil, preconditionError("the last active authenticator cannot be removed while mfa is mandatory")
		}
		c.st.Mfa.Enabled = false
	}

	removed := []string{authenticatorID}
	realLeft := slices.ContainsFunc(remaining, func(a MfaAuthenticator) bool { return a.Type != MfaRecoveryCodes })
	if !realLeft {
		remaining = slices.DeleteFunc(remaining, func(a MfaAuthenticator) bool {
			if a.Type == MfaRecoveryCodes {
				removed = append(removed, a.ID)
				return true
			}
			return false
		})
	}
	c.st.Authenticators = remaining
	c.touch(now)
	return removed, nil
}

func (c *PasswordCredential) findAuthenticator(match func(*MfaAuthenticator) bool) *MfaAuthenticator {
	for i := range c.st.Authenticators {
		if match(&c.st.Authenticators[i]) {
			return &c.st.Authenticators[i]
		}
	}
	return nil
}

func (c *PasswordCredential) hasRecoveryCodes() bool {
	return slices.ContainsFunc(c.st.Authenticators, func(a MfaAuthenticator) bool {
		return a.Type == MfaRecoveryCodes
	})
}
