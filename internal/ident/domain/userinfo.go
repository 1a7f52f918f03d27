package domain

import (
	"slices"
	"time"
)

// OIDC scopes that gate userinfo claims.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeAddress = "address"
)

// SupportedScopes is advertised in discovery.
var SupportedScopes = []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopePhone, ScopeAddress}

// SupportedClaims is advertised in discovery.
var SupportedClaims = []string{
	"sub", "name", "given_name", "family_name", "picture", "zoneinfo", "locale",
	"email", "email_verified", "phone_number", "phone_number_verified", "address",
}

// PostalAddress is the OIDC address claim.
type PostalAddress struct {
	Formatted     string `json:"formatted,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country,omitempty"`
}

// UserProfile holds the claims a user can release to clients.
type UserProfile struct {
	UserID        string
	Name          *string
	GivenName     *string
	FamilyName    *string
	Picture       *string
	Zoneinfo      *string
	Locale        *string
	Email         *string
	EmailVerified bool
	PhoneNumber   *string
	PhoneVerified bool
	Address       *PostalAddress
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserInfo is the userinfo response. Claims that the granted scopes do not
// cover are serialised as null.
type UserInfo struct {
	Subject             string         `json:"sub"`
	Name                *string        `json:"name"`
	GivenName           *string        `json:"given_name"`
	FamilyName          *string        `json:"family_name"`
	Picture             *string        `json:"picture"`
	Zoneinfo            *string        `json:"zoneinfo"`
	Locale              *string        `json:"locale"`
	Email               *string        `json:"email"`
	EmailVerified       *bool          `json:"email_verified"`
	PhoneNumber         *string        `json:"phone_number"`
	PhoneNumberVerified *bool          `json:"phone_number_verified"`
	Address             *PostalAddress `json:"address"`
}

// UserInfoClaims assembles the claims scopes allow for profile.
func UserInfoClaims(profile UserProfile, scopes []string) UserInfo {
	info := UserInfo{Subject: profile.UserID}
	if slices.Contains(scopes, ScopeProfile) {
		info.Name = profile.Name
		info.GivenName = profile.GivenName
		info.FamilyName = profile.FamilyName
		info.Picture = profile.Picture
		info.Zoneinfo = profile.Zoneinfo
		info.Locale = profile.Locale
	}
	if slices.Contains(scopes, ScopeEmail) && profile.Email != nil {
		info.Email = profile.Email
		verified := profile.EmailVerified
		info.EmailVerified = &verified
	}
	if slices.Contains(scopes, ScopePhone) && profile.PhoneNumber != nil {
		info.PhoneNumber = profile.PhoneNumber
		verified := profile.PhoneVerified
		info.PhoneNumberVerified = &verified
	}
	if slices.Contains(scopes, ScopeAddress) {
		info.Address = profile.Address
	}
	return info
}
