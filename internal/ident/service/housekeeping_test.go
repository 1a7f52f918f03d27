package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingRunOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "alice@example.com")
	client := h.publicClient(t)

	expires := h.clock.Now().Add(time.Hour)
	_, err := h.clients.GenerateSecret(ctx, client.ID, &expires)
	require.NoError(t, err)
	_, err = h.clients.GenerateSecret(ctx, client.ID, nil)
	require.NoError(t, err)

	h.authorizeCode(t, cred.UserID, client.ID)
	_, err = h.credentials.Authenticate(ctx, "alice@example.com", domaintest.DefaultPassword)
	require.NoError(t, err)

	removed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "removed_total"}, []string{"kind"})
	hk := service.NewHousekeepingService(h.store, slog.New(slog.DiscardHandler), time.Minute)
	hk.Removed = removed
	hk.Now = h.clock.Now

	// Nothing has expired yet.
	counts := hk.RunOnce(ctx)
	require.Zero(t, counts[service.TaskClientSecrets])
	require.Zero(t, counts[service.TaskCodes])
	require.Zero(t, counts[service.TaskAuthTokens])

	h.clock.Advance(48 * time.Hour)
	counts = hk.RunOnce(ctx)
	require.EqualValues(t, 1, counts[service.TaskClientSecrets])
	require.EqualValues(t, 1, counts[service.TaskCodes])
	require.EqualValues(t, 1, counts[service.TaskAuthTokens])
	require.InDelta(t, 1, testutil.ToFloat64(removed.WithLabelValues(service.TaskClientSecrets)), 0)

	st, err := h.clients.Get(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, st.Secrets, 1)

	// A second pass finds nothing left.
	counts = hk.RunOnce(ctx)
	require.Zero(t, counts[service.TaskClientSecrets])
	require.Zero(t, counts[service.TaskCodes])
	require.Zero(t, counts[service.TaskAuthTokens])
}

func TestHousekeepingRunStopsWithContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	hk := service.NewHousekeepingService(h.store, slog.New(slog.DiscardHandler), time.Hour)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- hk.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
