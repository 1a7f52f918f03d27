package app

import (
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/internal/ident/store/drivers/sqlite"
	"github.com/aussiebroadwan/ident/pkg/cryptox"
)

// ErrEphemeralKeys is returned by key administration in ephemeral mode, where
// keys only exist inside the server process.
var ErrEphemeralKeys = errors.New("signing keys are ephemeral; set IDENT_KEY_MODE=persistent to manage them")

// Admin bundles the services the operator commands act through. It works on
// the database directly; a running server picks key changes up on its next
// housekeeping run.
type Admin struct {
	Logger      *slog.Logger
	Store       *sqlite.Store
	Clients     *service.ClientService
	Credentials *service.CredentialService
	Keys        *service.KeyRotationService
}

// NewAdmin opens the database for cfg and wires the admin services.
func NewAdmin(cfg Config) (*Admin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg)

	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rec := audit.NewRecorder(audit.SlogSink{})
	hasher := cryptox.NewArgon2Hasher(pepper)
	secrets := cryptox.RandomSecrets{}

	a := &Admin{
		Logger:      logger,
		Store:       db,
		Clients:     &service.ClientService{Store: db, Hasher: hasher, Secrets: secrets, Audit: rec},
		Credentials: &service.CredentialService{Store: db, Hasher: hasher, Secrets: secrets, Digest: cryptox.SHA256Digester{}, Audit: rec},
	}

	if cfg.KeyMode == KeyModePersistent {
		cipher, err := LoadCipher(cfg, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.Keys = &service.KeyRotationService{
			Store:    db,
			Sealer:   cipher,
			RSABits:  cfg.RSABits,
			Lifetime: cfg.KeyLifetime,
		}
	}
	return a, nil
}

// KeyService returns the key rotation service, or ErrEphemeralKeys.
func (a *Admin) KeyService() (*service.KeyRotationService, error) {
	if a.Keys == nil {
		return nil, ErrEphemeralKeys
	}
	return a.Keys, nil
}

func (a *Admin) Close() error { return a.Store.Close() }
