package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/idx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// ClientService administers OAuth2 clients. It backs the operator CLI.
type ClientService struct {
	Store   store.Store
	Hasher  domain.PasswordHasher
	Secrets domain.SecretGenerator
	Audit   *audit.Recorder
	Now     Clock
}

// CreateClientParams is the input of Create.
type CreateClientParams struct {
	Name        string
	RedirectURI string
	// Confidential clients get an initial secret; public clients have none
	// and must use PKCE.
	Confidential bool
	// SecretExpiresAt optionally bounds the initial secret.
	SecretExpiresAt *time.Time
}

// Create registers a client. The raw secret of a confidential client is
// returned once and never stored.
func (s *ClientService) Create(ctx context.Context, p CreateClientParams) (domain.OAuth2ClientState, string, error) {
	now := s.Now.now()

	client, err := domain.NewOAuth2Client(idx.NewAt(now).String(), p.Name, p.RedirectURI, now)
	if err != nil {
		return domain.OAuth2ClientState{}, "", err
	}
	var secret string
	if p.Confidential {
		if secret, err = client.GenerateSecret(ctx, s.Secrets, s.Hasher, p.SecretExpiresAt, now); err != nil {
			return domain.OAuth2ClientState{}, "", err
		}
	}
	if err := s.Store.Clients().CreateClient(ctx, client.State()); err != nil {
		return domain.OAuth2ClientState{}, "", err
	}

	slogx.FromContext(ctx).Info("client created", "client_id", client.ID(), "public", client.Public())
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditClientCreated, ClientID: client.ID()})
	return client.State(), secret, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (domain.OAuth2ClientState, error) {
	st, err := s.Store.Clients().GetClient(ctx, id)
	if err != nil {
		return domain.OAuth2ClientState{}, orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown client"))
	}
	if st.Deleted {
		return domain.OAuth2ClientState{}, domain.NewError(domain.ErrEntityNotFound, "unknown client")
	}
	return st, nil
}

func (s *ClientService) List(ctx context.Context) ([]domain.OAuth2ClientState, error) {
	return s.Store.Clients().ListClients(ctx)
}

func (s *ClientService) mutate(ctx context.Context, id string, fn func(*domain.OAuth2Client) error) (*domain.OAuth2Client, error) {
	var client *domain.OAuth2Client
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Clients().GetClient(ctx, id)
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown client"))
		}
		client = domain.OAuth2ClientFromPersisted(st)
		if client.Deleted() {
			return domain.NewError(domain.ErrEntityNotFound, "unknown client")
		}
		if err := fn(client); err != nil {
			return err
		}
		return tx.Clients().UpdateClient(ctx, client.State())
	})
	return client, err
}

// Update changes the name and/or redirect URI; nil leaves a field alone.
func (s *ClientService) Update(ctx context.Context, id string, name, redirectURI *string) (domain.OAuth2ClientState, error) {
	now := s.Now.now()
	client, err := s.mutate(ctx, id, func(c *domain.OAuth2Client) error {
		return c.Update(name, redirectURI, now)
	})
	if err != nil {
		return domain.OAuth2ClientState{}, err
	}
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditClientUpdated, ClientID: id})
	return client.State(), nil
}

// GenerateSecret adds a secret to the client and returns it raw. Existing
// secrets stay valid so they can be rotated out gradually.
func (s *ClientService) GenerateSecret(ctx context.Context, id string, expiresAt *time.Time) (string, error) {
	now := s.Now.now()
	var secret string
	_, err := s.mutate(ctx, id, func(c *domain.OAuth2Client) error {
		var err error
		secret, err = c.GenerateSecret(ctx, s.Secrets, s.Hasher, expiresAt, now)
		return err
	})
	if err != nil {
		return "", err
	}
	slogx.FromContext(ctx).Info("client secret generated", "client_id", id)
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditClientSecretGenerated, ClientID: id})
	return secret, nil
}

// Delete soft-deletes the client. Its grants stop working immediately since
// client authentication fails.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	now := s.Now.now()
	_, err := s.mutate(ctx, id, func(c *domain.OAuth2Client) error {
		c.Delete(now)
		return nil
	})
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("client deleted", "client_id", id)
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditClientDeleted, ClientID: id})
	return nil
}
