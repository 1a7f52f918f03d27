package domain

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/ident/pkg/idx"
)

// ClientSecret is one hashed secret of a client. A nil ExpiresAt never expires.
type ClientSecret struct {
	ID        string
	Hash      string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (s ClientSecret) expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// OAuth2ClientState is the persisted form of an OAuth2Client.
type OAuth2ClientState struct {
	ID          string
	Name        string
	RedirectURI string

	// Confidential is set by the first secret and never cleared, so a
	// client whose secrets all expire cannot fall back to public.
	Confidential bool
	Secrets      []ClientSecret

	Deleted   bool
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAuth2Client is a registered relying party.
type OAuth2Client struct {
	st OAuth2ClientState
}

// NewOAuth2Client registers a client without secrets. Secrets are added with
// GenerateSecret; a client that never gets one is public.
func NewOAuth2Client(id, name, redirectURI string, now time.Time) (*OAuth2Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("client name is required")
	}
	if err := checkRedirectURI(redirectURI); err != nil {
		return nil, err
	}
	if id == "" {
		id = idx.New().String()
	}
	return &OAuth2Client{st: OAuth2ClientState{
		ID:          id,
		Name:        name,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}, nil
}

// OAuth2ClientFromPersisted rehydrates a client from storage.
func OAuth2ClientFromPersisted(st OAuth2ClientState) *OAuth2Client {
	st.Secrets = slices.Clone(st.Secrets)
	return &OAuth2Client{st: st}
}

// State returns a copy of the client for persistence.
func (c *OAuth2Client) State() OAuth2ClientState {
	st := c.st
	st.Secrets = slices.Clone(c.st.Secrets)
	return st
}

func (c *OAuth2Client) ID() string { return c.st.ID }
func (c *OAuth2Client) Name() string { return c.st.Name }
func (c *OAuth2Client) RedirectURI() string { return c.st.RedirectURI }
func (c *OAuth2Client) Deleted() bool { return c.st.Deleted }

// Public reports whether the client has never been given a secret. Public
// clients authenticate with PKCE alone.
func (c *OAuth2Client) Public() bool { return !c.st.Confidential }

// Update changes the name and/or redirect URI.
func (c *OAuth2Client) Update(name, redirectURI *string, now time.Time) error {
	if c.st.Deleted {
		return notFoundError("client is deleted")
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return validationError("client name is required")
		}
		c.st.Name = n
	}
	if redirectURI != nil {
		if err := checkRedirectURI(*redirectURI); err != nil {
			return err
		}
		c.st.RedirectURI = *redirectURI
	}
	c.st.UpdatedAt = now
	return nil
}

// Delete soft-deletes the client.
func (c *OAuth2Client) Delete(now time.Time) {
	c.st.Deleted = true
	c.st.UpdatedAt = now
}

// GenerateSecret appends a new secret and returns its raw value once. Earlier
// secrets stay valid until they expire.
func (c *OAuth2Client) GenerateSecret(ctx context.Context, gen SecretGenerator, hasher PasswordHasher, expiresAt *time.Time, now time.Time) (string, error) {
	if c.st.Deleted {
		return "", notFoundError("client is deleted")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return "", validationError("secret expiry must be in the future")
	}
	raw, err := gen.Token()
	if err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	hash, err := hasher.HashPassword(ctx, raw)
	if err != nil {
		return "", NewError(ErrUnexpected, "hash client secret").Because(err)
	}
	c.st.Secrets = append(c.st.Secrets, ClientSecret{
		ID:        idx.New().String(),
		Hash:      hash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	c.st.Confidential = true
	c.st.UpdatedAt = now
	return raw, nil
}

// VerifySecret checks candidate against every unexpired secret. A
// confidential client without a live secret accepts nothing.
func (c *OAuth2Client) VerifySecret(ctx context.Context, hasher PasswordHasher, candidate string, now time.Time) error {
	if c.st.Deleted || candidate == "" {
		return validationError("invalid client credentials")
	}
	for _, s := range c.st.Secrets {
		if s.expired(now) {
			continue
		}
		ok, err := hasher.VerifyPassword(ctx, candidate, s.Hash)
		if err != nil {
			return NewError(ErrUnexpected, "verify client secret").Because(err)
		}
		if ok {
			return nil
		}
	}
	return validationError("invalid client credentials")
}

// PruneExpiredSecrets drops expired secrets and returns how many went.
func (c *OAuth2Client) PruneExpiredSecrets(now time.Time) int {
	before := len(c.st.Secrets)
	c.st.Secrets = slices.DeleteFunc(c.st.Secrets, func(s ClientSecret) bool { return s.expired(now) })
	if n := before - len(c.st.Secrets); n > 0 {
		c.st.UpdatedAt = now
		return n
	}
	return 0
}

// ValidSecrets counts secrets that have not expired at now.
func (c *OAuth2Client) ValidSecrets(now time.Time) int {
	n := 0
	for _, s := range c.st.Secrets {
		if !s.expired(now) {
			n++
		}
	}
	return n
}

func checkRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return validationError("redirect uri must be an absolute url")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return validationError("redirect uri must use http or https")
	}
	if u.Fragment != "" {
		return validationError("redirect uri must not contain a fragment")
	}
	return nil
}
