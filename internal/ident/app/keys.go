package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// LoadCipher builds the at-rest cipher from the configured master key. Without
// one a random key is generated and everything sealed with it is lost on
// restart; that is only acceptable in ephemeral mode, which Validate enforces.
func LoadCipher(cfg Config, logger *slog.Logger) (*cryptox.AESCipher, error) {
	material, ephemeral, err := cryptox.LoadMasterKey(cfg.MasterKeyFile, cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		logger.Warn("no master key configured, using a random one; sealed MFA secrets and tokens will not survive a restart")
	}
	return cryptox.NewAESCipher(material)
}

// InitKeys returns the signing KeyManager for the configured storage mode.
//
//   - ephemeral: keys are generated on start and held in memory only. Every
//     token signed by a previous process stops verifying after a restart.
//   - persistent: keys are sealed with the master key and stored. Missing keys
//     are generated until NumKeys are active, and rotations made with
//     `ident keys rotate` are picked up by housekeeping.
//
// Tokens carry either the issuer or a client id as audience, so the verifier
// built here checks the issuer only; the router layers audience checks on top.
func InitKeys(ctx context.Context, cfg Config, db store.Store, sealer jwtx.Sealer, logger *slog.Logger) (*jwtx.KeyManager, error) {
	var (
		km  *jwtx.KeyManager
		err error
	)

	switch cfg.KeyMode {
	case KeyModePersistent:
		km, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:    store.NewKeyStoreAdapter(db, nil),
			Sealer:   sealer,
			Issuer:   cfg.Issuer,
			RSABits:  cfg.RSABits,
			NumKeys:  cfg.NumKeys,
			Lifetime: cfg.KeyLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init persistent key manager: %w", err)
		}
		logger.Info("persistent signing keys loaded",
			"num_keys", km.NumSigners(),
			"lifetime", cfg.KeyLifetime,
		)

	default:
		km, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:  cfg.Issuer,
			RSABits: cfg.RSABits,
			NumKeys: cfg.NumKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("init ephemeral key manager: %w", err)
		}
		logger.Info("generated ephemeral signing keys", "num_keys", km.NumSigners())
		logger.Warn("tokens signed before this start no longer verify")
	}

	return km, nil
}
