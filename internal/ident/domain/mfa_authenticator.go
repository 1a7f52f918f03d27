package domain

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aussiebroadwan/ident/pkg/idx"
)

// MfaType is the kind of an MFA factor.
type MfaType string

const (
	MfaTotp          MfaType = "totp"
	MfaOobSms        MfaType = "oob_sms"
	MfaOobEmail      MfaType = "oob_email"
	MfaRecoveryCodes MfaType = "recovery_codes"
)

const (
	// RecoveryCodeCount is the size of the recovery code batch.
	RecoveryCodeCount = 10
	// OobCodeDigits is the length of codes sent over SMS or email.
	OobCodeDigits = 6
)

// ParseMfaType validates a factor type name.
func ParseMfaType(s string) (MfaType, error) {
	switch t := MfaType(s); t {
	case MfaTotp, MfaOobSms, MfaOobEmail, MfaRecoveryCodes:
		return t, nil
	}
	return "", Errorf(ErrValidation, "unsupported authenticator type %q", s)
}

// IsOob reports whether the factor delivers codes out of band.
func (t MfaType) IsOob() bool { return t == MfaOobSms || t == MfaOobEmail }

// RecoveryCode is one single-use backup code, kept as a digest.
type RecoveryCode struct {
	Digest     string     `json:"digest"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// MfaAuthenticator is one enrollable factor owned by a PasswordCredential.
// It is only mutated through the owning credential.
type MfaAuthenticator struct {
	ID     string
	Type   MfaType
	Active bool

	// VerifiedState guards against replay: the last accepted TOTP counter, or
	// the digest of the last consumed recovery code.
	VerifiedState *string

	OobCode         *string // handle returned to the client for the pending code
	OobSecretDigest *string // digest of the code sent to the user
	OobDestination  *string // phone number or email address

	TotpSecret *string // encrypted
	BarCodeURI *string

	RecoveryCodes []RecoveryCode

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	LastUsedAt  *time.Time
}

// RemainingRecoveryCodes counts unconsumed recovery codes.
func (a *MfaAuthenticator) RemainingRecoveryCodes() int {
	n := 0
	for _, rc := range a.RecoveryCodes {
		if rc.ConsumedAt == nil {
			n++
		}
	}
	return n
}

func (a MfaAuthenticator) clone() MfaAuthenticator {
	a.RecoveryCodes = slices.Clone(a.RecoveryCodes)
	return a
}

// MfaKit bundles the capabilities the MFA sub-protocol calls into.
type MfaKit struct {
	TOTP    TOTP
	Cipher  Cipher
	Secrets SecretGenerator
	Digest  Digester
	// MaxTimeSteps is the accepted TOTP drift in 30 second steps.
	MaxTimeSteps int
}

// OobDispatch is a one-time code that must be delivered out of band. Secret
// goes to Destination; OobCode goes back to the client.
type OobDispatch struct {
	AuthenticatorID string
	Type            MfaType
	Destination     string
	OobCode         string
	Secret          string
}

func newTotpAuthenticator(ctx context.Context, kit MfaKit, account string, now time.Time) (*MfaAuthenticator, string, error) {
	secret, uri, err := kit.TOTP.NewSecret(account)
	if err != nil {
		return nil, "", fmt.Errorf("generate totp secret: %w", err)
	}
	sealed, err := kit.Cipher.Encrypt(ctx, secret)
	if err != nil {
		return nil, "", fmt.Errorf("encrypt totp secret: %w", err)
	}
	return &MfaAuthenticator{
		ID:         idx.New().String(),
		Type:       MfaTotp,
		TotpSecret: &sealed,
		BarCodeURI: &uri,
		CreatedAt:  now,
	}, secret, nil
}

func newOobAuthenticator(kit MfaKit, typ MfaType, destination string, now time.Time) (*MfaAuthenticator, *OobDispatch, error) {
	a := &MfaAuthenticator{
		ID:             idx.New().String(),
		Type:           typ,
		OobDestination: &destination,
		CreatedAt:      now,
	}
	d, err := a.issueOob(kit)
	if err != nil {
		return nil, nil, err
	}
	return a, d, nil
}

func newRecoveryAuthenticator(kit MfaKit, now time.Time) (*MfaAuthenticator, []string, error) {
	codes := make([]string, 0, RecoveryCodeCount)
	stored := make([]RecoveryCode, 0, RecoveryCodeCount)
	for range RecoveryCodeCount {
		code, err := kit.Secrets.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("generate recovery code: %w", err)
		}
		codes = append(codes, code)
		stored = append(stored, RecoveryCode{Digest: kit.Digest.Digest(code)})
	}
	return &MfaAuthenticator{
		ID:            idx.New().String(),
		Type:          MfaRecoveryCodes,
		Active:        true,
		RecoveryCodes: stored,
		CreatedAt:     now,
		ConfirmedAt:   &now,
	}, codes, nil
}

// issueOob replaces any pending out-of-band code.
func (a *MfaAuthenticator) issueOob(kit MfaKit) (*OobDispatch, error) {
	handle, err := kit.Secrets.Token()
	if err != nil {
		return nil, fmt.Errorf("generate oob code: %w", err)
	}
	secret, err := kit.Secrets.Numeric(OobCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate oob secret: %w", err)
	}
	digest := kit.Digest.Digest(secret)
	a.OobCode = &handle
	a.OobSecretDigest = &digest
	return &OobDispatch{
		AuthenticatorID: a.ID,
		Type:            a.Type,
		Destination:     deref(a.OobDestination),
		OobCode:         handle,
		Secret:          secret,
	}, nil
}

// check validates a confirmation code for TOTP and OOB factors and refreshes
// the verified state on success.
func (a *MfaAuthenticator) check(ctx context.Context, kit MfaKit, oobCode *string, code string, now time.Time) error {
	switch {
	case a.Type == MfaTotp:
		return a.checkTotp(ctx, kit, code, now)
	case a.Type.IsOob():
		return a.checkOob(kit, oobCode, code)
	}
	return Errorf(ErrValidation, "authenticator type %s cannot be checked with a confirmation code", a.Type)
}

func (a *MfaAuthenticator) checkTotp(ctx context.Context, kit MfaKit, code string, now time.Time) error {
	if code == "" {
		return validationError("confirmation code is required")
	}
	if a.TotpSecret == nil {
		return NewError(ErrUnexpected, "totp authenticator has no secret")
	}
	secret, err := kit.Cipher.Decrypt(ctx, *a.TotpSecret)
	if err != nil {
		return NewError(ErrUnexpected, "decrypt totp secret").Because(err)
	}
	counter, ok := kit.TOTP.Validate(code, secret, now, kit.MaxTimeSteps)
	if !ok {
		return notAuthenticatedError("invalid confirmation code")
	}
	if a.VerifiedState != nil {
		last, err := strconv.ParseInt(*a.VerifiedState, 10, 64)
		if err == nil && counter <= last {
			return notAuthenticatedError("confirmation code already used")
		}
	}
	state := strconv.FormatInt(counter, 10)
	a.VerifiedState = &state
	a.LastUsedAt = &now
	return nil
}

func (a *MfaAuthenticator) checkOob(kit MfaKit, oobCode *string, code string) error {
	if oobCode == nil || *oobCode == "" {
		return validationError("oob_code is required")
	}
	if code == "" {
		return validationError("confirmation code is required")
	}
	if a.OobCode == nil || a.OobSecretDigest == nil {
		return notAuthenticatedError("no pending out-of-band code")
	}
	handleOK := subtle.ConstantTimeCompare([]byte(*oobCode), []byte(*a.OobCode)) == 1
	codeOK := subtle.ConstantTimeCompare([]byte(kit.Digest.Digest(code)), []byte(*a.OobSecretDigest)) == 1
	if !handleOK || !codeOK {
		return notAuthenticatedError("invalid confirmation code")
	}
	a.OobCode = nil
	a.OobSecretDigest = nil
	a.VerifiedState = nil
	return nil
}

func (a *MfaAuthenticator) consumeRecoveryCode(kit MfaKit, code string, now time.Time) error {
	if code == "" {
		return validationError("recovery code is required")
	}
	digest := kit.Digest.Digest(code)
	for i := range a.RecoveryCodes {
		rc := &a.RecoveryCodes[i]
		if subtle.ConstantTimeCompare([]byte(digest), []byte(rc.Digest)) != 1 {
			continue
		}
		if rc.ConsumedAt != nil {
			return notAuthenticatedError("recovery code already used")
		}
		rc.ConsumedAt = &now
		a.VerifiedState = &digest
		a.LastUsedAt = &now
		return nil
	}
	return notAuthenticatedError("invalid recovery code")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
