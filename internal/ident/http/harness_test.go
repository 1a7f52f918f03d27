package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	identhttp "github.com/aussiebroadwan/ident/internal/ident/http"
	"github.com/aussiebroadwan/ident/internal/ident/mfatoken"
	"github.com/aussiebroadwan/ident/internal/ident/notify"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/internal/ident/store/drivers/sqlite"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://id.example.com"
	testRedirect = "https://spa.example.com/callback"
	testVerifier = "dBjftJeZ4CVP-mJ92K9YFEz3J4Rd3E1x9uL1qJ7b7gU"
)

// mailbox keeps the last message sent to each recipient.
type mailbox struct {
	mu   sync.Mutex
	last map[string]notify.Message
}

func (m *mailbox) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[msg.To] = msg
	return nil
}

// token returns the token line of the last verification or reset message.
func (m *mailbox) token(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.last[to]
	require.True(t, ok, "no message for %s", to)
	lines := strings.Split(msg.Body, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	return lines[2]
}

// code returns the one-time code of the last MFA message.
func (m *mailbox) code(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.last[to]
	require.True(t, ok, "no message for %s", to)
	fields := strings.Fields(msg.Body)
	return fields[len(fields)-1]
}

type testServer struct {
	router  *identhttp.Router
	mail    *mailbox
	clients *service.ClientService
}

type serverOption func(*identhttp.Router)

func newServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	return newServerAt(t, testIssuer, opts...)
}

// newServerAt builds a router that identifies itself as issuer.
func newServerAt(t *testing.T, issuer string, opts ...serverOption) *testServer {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: issuer, RSABits: 2048})
	require.NoError(t, err)

	mail := &mailbox{last: map[string]notify.Message{}}
	dispatcher := &notify.Dispatcher{Email: mail}
	rec := audit.NewRecorder(audit.SlogSink{})
	secrets := &domaintest.Secrets{}
	kit, _ := domaintest.Kit()
	vault := domaintest.Vault()
	mfaTokens := mfatoken.NewMemory(5*time.Minute, 3)
	signer := &service.JWTIssuer{Keys: km, Issuer: issuer}

	platform := &service.PlatformTokenService{Store: st, Issuer: signer, Vault: vault, Audit: rec}
	clients := &service.ClientService{Store: st, Hasher: domaintest.Hasher{}, Secrets: secrets, Audit: rec}

	r := identhttp.NewRouter(km, issuer, "test", st, slog.New(slog.DiscardHandler))
	r.Limits = identhttp.Limits{}
	r.Platform = platform
	r.Credentials = &service.CredentialService{
		Store:         st,
		Hasher:        domaintest.Hasher{},
		Secrets:       secrets,
		Digest:        domaintest.Digest,
		Notifier:      dispatcher,
		Audit:         rec,
		Tokens:        platform,
		MfaTokens:     mfaTokens,
		CanDisableMfa: true,
	}
	r.Mfa = &service.MfaService{
		Store:     st,
		Kit:       kit,
		Notifier:  dispatcher,
		MfaTokens: mfaTokens,
		Tokens:    platform,
		Audit:     rec,
	}
	r.Authorize = &service.AuthorizeService{
		Store:      st,
		Secrets:    secrets,
		Digest:     domaintest.Digest,
		Audit:      rec,
		LoginURL:   issuer + "/login",
		ConsentURL: issuer + "/consent",
		CodeTTL:    5 * time.Minute,
	}
	r.Tokens = &service.TokenService{Store: st, Hasher: domaintest.Hasher{}, Issuer: signer, Vault: vault, Audit: rec}
	r.Consents = &service.ConsentService{Store: st, Audit: rec}
	for _, opt := range opts {
		opt(r)
	}
	r.ApplyRoutes()

	return &testServer{router: r, mail: mail, clients: clients}
}

// request describes one call against the router.
type request struct {
	method string
	path   string
	body   any
	bearer string
}

func (s *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values, basicUser, basicPass string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		r.SetBasicAuth(url.QueryEscape(basicUser), url.QueryEscape(basicPass))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) authsdk.ErrorResponse {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	out := decodeBody[authsdk.ErrorResponse](t, w)
	require.Equal(t, code, out.Error)
	return out
}

// signUp registers and confirms email through the API.
func (s *testServer) signUp(t *testing.T, email string) {
	t.Helper()
	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/register", body: authsdk.RegisterRequest{
		Email:       email,
		Password:    domaintest.DefaultPassword,
		DisplayName: "Alice",
	}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/register/confirm", body: authsdk.ConfirmRegistrationRequest{
		Token: s.mail.token(t, email),
	}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

// login authenticates with the default password and returns the token set.
func (s *testServer) login(t *testing.T, email string) authsdk.TokenResponse {
	t.Helper()
	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
		Username: email,
		Password: domaintest.DefaultPassword,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[authsdk.TokenResponse](t, w)
}
