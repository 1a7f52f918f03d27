package cryptox

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP implements RFC 6238 codes on top of pquerna/otp. Validate reports the
// matched time-step counter so callers can reject replays.
type TOTP struct {
	Issuer    string
	Period    uint
	Digits    otp.Digits
	Algorithm otp.Algorithm
}

// NewTOTP returns the authenticator-app compatible profile: 30s, 6 digits,
// SHA1.
func NewTOTP(issuer string) *TOTP {
	return &TOTP{
		Issuer:    issuer,
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// NewSecret generates a base32 secret and its otpauth:// provisioning URI.
func (t *TOTP) NewSecret(accountName string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: accountName,
		Period:      t.Period,
		Digits:      t.Digits,
		Algorithm:   t.Algorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("cryptox: generate totp key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Validate walks the window [-maxTimeSteps, +maxTimeSteps] around at and
// returns the counter of the step whose code equals code.
func (t *TOTP) Validate(code, secret string, at time.Time, maxTimeSteps int) (int64, bool) {
	if len(code) != t.Digits.Length() {
		return 0, false
	}
	opts := totp.ValidateOpts{Period: t.Period, Digits: t.Digits, Algorithm: t.Algorithm}
	period := time.Duration(t.Period) * time.Second
	base := at.Unix() / int64(t.Period)
	for offset := -maxTimeSteps; offset <= maxTimeSteps; offset++ {
		want, err := totp.GenerateCodeCustom(secret, at.Add(time.Duration(offset)*period), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return base + int64(offset), true
		}
	}
	return 0, false
}

// CodeAt returns the code for secret at time at. Useful for provisioning checks
// and tests.
func (t *TOTP) CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{Period: t.Period, Digits: t.Digits, Algorithm: t.Algorithm})
}
