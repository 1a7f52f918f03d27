package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// KeyRotationService rotates the RSA keys tokens are signed with.
//
// With a Store the keys are sealed and persisted, so a rotation made from the
// CLI reaches a running server on its next Sync. Without one (ephemeral key
// mode) rotation only touches the in-memory KeyManager.
//
// Keys may be nil when the service runs outside the server process.
type KeyRotationService struct {
	Store    store.Store
	Keys     *jwtx.KeyManager
	Sealer   jwtx.Sealer
	RSABits  int
	Lifetime time.Duration
	Now      Clock
}

// RotateResult describes a completed rotation.
type RotateResult struct {
	NewKey      domain.SigningKey
	RetiredKids []string
}

// Rotate generates a new signing key. With retireExisting every other active
// key stops signing; retired keys stay published until they expire so the
// tokens they signed keep verifying.
func (s *KeyRotationService) Rotate(ctx context.Context, retireExisting bool) (RotateResult, error) {
	l := slogx.FromContext(ctx)
	now := s.Now.now()
	bits := s.RSABits
	if bits == 0 {
		bits = jwtx.DefaultRSABits
	}

	var (
		result RotateResult
		signer *jwtx.Signer
	)
	if s.Store != nil {
		if s.Sealer == nil {
			return RotateResult{}, errors.New("key rotation: sealer is required with a store")
		}
		rec, sg, err := jwtx.NewSigningKeyRecord(s.Sealer, bits, orDuration(s.Lifetime, jwtx.DefaultKeyLifetime), now)
		if err != nil {
			return RotateResult{}, err
		}
		signer = sg
		result.NewKey = store.SigningKeyFromRecord(rec)

		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.SigningKeys().CreateSigningKey(ctx, result.NewKey); err != nil {
				return fmt.Errorf("create signing key: %w", err)
			}
			if !retireExisting {
				return nil
			}
			active, err := tx.SigningKeys().ListActiveSigningKeys(ctx, now)
			if err != nil {
				return fmt.Errorf("list active keys: %w", err)
			}
			for _, k := range active {
				if k.Kid == rec.Kid {
					continue
				}
				if err := tx.SigningKeys().RetireSigningKey(ctx, k.Kid, now); err != nil {
					return fmt.Errorf("retire key %s: %w", k.Kid, err)
				}
				result.RetiredKids = append(result.RetiredKids, k.Kid)
			}
			return nil
		})
		if err != nil {
			return RotateResult{}, err
		}
	} else {
		if s.Keys == nil {
			return RotateResult{}, errors.New("key rotation: no store and no key manager")
		}
		sg, _, err := jwtx.GenerateSigner(bits)
		if err != nil {
			return RotateResult{}, fmt.Errorf("generate key: %w", err)
		}
		signer = sg
		result.NewKey = domain.SigningKey{Kid: sg.KID(), Algorithm: jwtx.AlgRS256, CreatedAt: now}
		if retireExisting {
			for _, old := range s.Keys.GetSigners() {
				result.RetiredKids = append(result.RetiredKids, old.KID())
			}
		}
	}

	if s.Keys != nil {
		if err := s.Keys.AddSigner(signer); err != nil {
			return RotateResult{}, fmt.Errorf("add signer: %w", err)
		}
		for _, kid := range result.RetiredKids {
			if err := s.Keys.RetireSignerByKid(kid); err != nil {
				l.Warn("retire signer in memory", "kid", kid, "error", err)
			}
		}
	}

	l.Info("signing key rotated", "kid", result.NewKey.Kid, "retired", len(result.RetiredKids))
	return result, nil
}

// Retire stops kid from signing without adding a new key. The last active key
// cannot be retired.
func (s *KeyRotationService) Retire(ctx context.Context, kid string) error {
	now := s.Now.now()
	if s.Store != nil {
		err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			active, err := tx.SigningKeys().ListActiveSigningKeys(ctx, now)
			if err != nil {
				return err
			}
			if len(active) <= 1 {
				return domain.NewError(domain.ErrPreconditionViolation, "the last active signing key cannot be retired")
			}
			return orNotFound(tx.SigningKeys().RetireSigningKey(ctx, kid, now),
				domain.Errorf(domain.ErrEntityNotFound, "unknown signing key %s", kid))
		})
		if err != nil {
			return err
		}
	}
	if s.Keys != nil {
		if err := s.Keys.RetireSignerByKid(kid); err != nil && s.Store == nil {
			return domain.NewError(domain.ErrPreconditionViolation, "retire signing key").Because(err)
		}
	}
	slogx.FromContext(ctx).Info("signing key retired", "kid", kid)
	return nil
}

// List returns the published keys, newest first. In ephemeral mode only the
// active signers are known.
func (s *KeyRotationService) List(ctx context.Context) ([]domain.SigningKey, error) {
	if s.Store != nil {
		return s.Store.SigningKeys().ListAllSigningKeys(ctx, s.Now.now())
	}
	if s.Keys == nil {
		return nil, errors.New("key rotation: no store and no key manager")
	}
	signers := s.Keys.GetSigners()
	keys := make([]domain.SigningKey, len(signers))
	for i, sg := range signers {
		keys[i] = domain.SigningKey{Kid: sg.KID(), Algorithm: sg.Alg()}
	}
	return keys, nil
}

// Sync brings the in-memory KeyManager in line with the store: keys created
// elsewhere start signing, keys retired elsewhere stop, and expired keys are
// unpublished. It is a no-op without both a store and a key manager.
func (s *KeyRotationService) Sync(ctx context.Context) error {
	if s.Store == nil || s.Keys == nil {
		return nil
	}
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	all, err := s.Store.SigningKeys().ListAllSigningKeys(ctx, now)
	if err != nil {
		return fmt.Errorf("list signing keys: %w", err)
	}

	signing := map[string]bool{}
	for _, sg := range s.Keys.GetSigners() {
		signing[sg.KID()] = true
	}
	published := map[string]bool{}
	for _, j := range s.Keys.KeySet.PublicJWKS().Keys {
		published[j.Kid] = true
	}

	stored := map[string]bool{}
	for _, k := range all {
		stored[k.Kid] = true
		active := k.IsActive(now)
		switch {
		case active && !signing[k.Kid]:
			sg, err := jwtx.OpenSigningKey(s.Sealer, store.SigningKeyRecord(k))
			if err != nil {
				return err
			}
			if err := s.Keys.AddSigner(sg); err != nil {
				return err
			}
			l.Info("signing key loaded", "kid", k.Kid)
		case !active && signing[k.Kid]:
			if err := s.Keys.RetireSignerByKid(k.Kid); err != nil {
				l.Warn("retire signer", "kid", k.Kid, "error", err)
			}
		case !active && !published[k.Kid]:
			sg, err := jwtx.OpenSigningKey(s.Sealer, store.SigningKeyRecord(k))
			if err != nil {
				return err
			}
			if err := s.Keys.KeySet.AddSigner(sg); err != nil {
				return err
			}
		}
	}

	for kid := range published {
		if stored[kid] {
			continue
		}
		if signing[kid] {
			if err := s.Keys.RetireSignerByKid(kid); err != nil {
				l.Warn("retire expired signer", "kid", kid, "error", err)
				continue
			}
		}
		if err := s.Keys.RemoveKey(kid); err != nil {
			l.Warn("unpublish expired key", "kid", kid, "error", err)
		}
	}
	return nil
}
