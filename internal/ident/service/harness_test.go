package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/aussiebroadwan/ident/internal/ident/mfatoken"
	"github.com/aussiebroadwan/ident/internal/ident/notify"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/internal/ident/store/drivers/sqlite"

	"github.com/stretchr/testify/require"
)

// clock is a settable test clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// outbox records every notification by recipient.
type outbox struct {
	mu            sync.Mutex
	verifications map[string]string
	resets        map[string]string
	codes         map[string]string
	sent          int
	err           error // returned by every send once set
}

func newOutbox() *outbox {
	return &outbox{
		verifications: map[string]string{},
		resets:        map[string]string{},
		codes:         map[string]string{},
	}
}

func (o *outbox) Verification(_ context.Context, to, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.verifications[to] = token
	o.sent++
	return nil
}

func (o *outbox) PasswordReset(_ context.Context, to, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.resets[to] = token
	o.sent++
	return nil
}

func (o *outbox) MfaCode(_ context.Context, _ notify.Channel, to, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.codes[to] = code
	o.sent++
	return nil
}

// failWith makes every later send return err.
func (o *outbox) failWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

// auditLog collects recorded audit codes.
type auditLog struct {
	mu    sync.Mutex
	codes []domain.AuditCode
}

func (a *auditLog) sink() audit.Sink {
	return audit.FuncSink(func(_ context.Context, e audit.Event) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.codes = append(a.codes, e.Code)
	})
}

func (a *auditLog) has(code domain.AuditCode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.codes {
		if c == code {
			return true
		}
	}
	return false
}

type harness struct {
	store  *sqlite.Store
	clock  *clock
	outbox *outbox
	audits *auditLog
	issuer *domaintest.Issuer

	credentials *service.CredentialService
	mfa         *service.MfaService
	platform    *service.PlatformTokenService
	clients     *service.ClientService
	consents    *service.ConsentService
	authorize   *service.AuthorizeService
	tokens      *service.TokenService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{
		store:  st,
		clock:  &clock{t: domaintest.Now},
		outbox: newOutbox(),
		audits: &auditLog{},
	}
	h.issuer = &domaintest.Issuer{Clock: h.clock.Now}
	now := service.Clock(h.clock.Now)
	rec := audit.NewRecorder(h.audits.sink())
	secrets := &domaintest.Secrets{}
	kit, _ := domaintest.Kit()
	vault := domaintest.Vault()
	mfaTokens := mfatoken.NewMemory(5*time.Minute, 3)

	h.platform = &service.PlatformTokenService{Store: st, Issuer: h.issuer, Vault: vault, Audit: rec, Now: now}
	h.credentials = &service.CredentialService{
		Store:         st,
		Hasher:        domaintest.Hasher{},
		Secrets:       secrets,
		Digest:        domaintest.Digest,
		Notifier:      h.outbox,
		Audit:         rec,
		Tokens:        h.platform,
		MfaTokens:     mfaTokens,
		CanDisableMfa: true,
		Now:           now,
	}
	h.mfa = &service.MfaService{
		Store:     st,
		Kit:       kit,
		Notifier:  h.outbox,
		MfaTokens: mfaTokens,
		Tokens:    h.platform,
		Audit:     rec,
		Now:       now,
	}
	h.clients = &service.ClientService{Store: st, Hasher: domaintest.Hasher{}, Secrets: secrets, Audit: rec, Now: now}
	h.consents = &service.ConsentService{Store: st, Audit: rec, Now: now}
	h.authorize = &service.AuthorizeService{
		Store:      st,
		Secrets:    secrets,
		Digest:     domaintest.Digest,
		Audit:      rec,
		LoginURL:   "https://id.example.com/login",
		ConsentURL: "https://id.example.com/consent",
		Now:        now,
	}
	h.tokens = &service.TokenService{
		Store:  st,
		Hasher: domaintest.Hasher{},
		Issuer: h.issuer,
		Vault:  vault,
		Audit:  rec,
		Now:    now,
	}
	return h
}

// registerVerified registers email with the default password and confirms it.
func (h *harness) registerVerified(t *testing.T, email string) domain.PasswordCredentialState {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.credentials.Register(ctx, service.RegisterParams{
		Email:       email,
		Password:    domaintest.DefaultPassword,
		DisplayName: "Alice",
	}))
	require.NoError(t, h.credentials.ConfirmRegistration(ctx, h.outbox.verifications[email]))
	st, err := h.store.Credentials().GetCredentialByUsername(ctx, email)
	require.NoError(t, err)
	return st
}
