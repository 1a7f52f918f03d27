package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// Housekeeping task names, used as the kind label of the removed counter.
const (
	TaskClientSecrets = "client_secrets"
	TaskCodes         = "authorization_codes"
	TaskAuthTokens    = "auth_tokens"
	TaskSigningKeys   = "signing_keys"
)

// HousekeepingService periodically removes expired client secrets,
// authorization codes, platform token sets and signing keys.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Keys, when set, is re-synced with the store on every run so key
	// rotations made from the CLI reach this process.
	Keys *KeyRotationService
	// Removed counts removed records by task.
	Removed *prometheus.CounterVec

	Now Clock
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. A non-positive interval defaults to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
	}
}

// Run cleans up once immediately and then on every tick until ctx is done.
func (s *HousekeepingService) Run(ctx context.Context) error {
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
	defer s.Logger.Info("housekeeping service stopped")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// RunOnce performs every cleanup task and returns how many records each
// removed. A failing task is logged and does not stop the others.
func (s *HousekeepingService) RunOnce(ctx context.Context) map[string]int64 {
	ctx = slogx.WithContext(ctx, s.Logger)
	now := s.Now.now()
	s.Logger.Debug("starting housekeeping cleanup")

	tasks := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{TaskClientSecrets, s.pruneClientSecrets},
		{TaskCodes, s.expireCodes},
		{TaskAuthTokens, s.Store.AuthTokens().DeleteExpiredAuthTokens},
		{TaskSigningKeys, s.Store.SigningKeys().DeleteExpiredSigningKeys},
	}

	removed := make(map[string]int64, len(tasks))
	for _, t := range tasks {
		n, err := t.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping task failed", "task", t.name, "error", err)
			continue
		}
		removed[t.name] = n
		if n > 0 {
			s.Logger.Info("housekeeping removed records", "task", t.name, "count", n)
			if s.Removed != nil {
				s.Removed.WithLabelValues(t.name).Add(float64(n))
			}
		}
	}

	if s.Keys != nil {
		if err := s.Keys.Sync(ctx); err != nil {
			s.Logger.Error("signing key sync failed", "error", err)
		}
	}
	return removed
}

func (s *HousekeepingService) pruneClientSecrets(ctx context.Context, now time.Time) (int64, error) {
	clients, err := s.Store.Clients().ListClientsWithExpiredSecrets(ctx, now)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, st := range clients {
		client := domain.OAuth2ClientFromPersisted(st)
		n := client.PruneExpiredSecrets(now)
		if n == 0 {
			continue
		}
		if err := s.Store.Clients().UpdateClient(ctx, client.State()); err != nil {
			s.Logger.Warn("prune client secrets", "client_id", client.ID(), "error", err)
			continue
		}
		total += int64(n)
	}
	return total, nil
}

func (s *HousekeepingService) expireCodes(ctx context.Context, now time.Time) (int64, error) {
	grants, err := s.Store.Authorizations().ListAuthorizationsWithExpiredCode(ctx, now)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, st := range grants {
		authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
		if !authz.ExpireCode(now) {
			continue
		}
		if err := s.Store.Authorizations().UpdateAuthorization(ctx, authz.State()); err != nil {
			s.Logger.Warn("expire authorization code", "authorization_id", authz.ID(), "error", err)
			continue
		}
		total++
	}
	return total, nil
}
