package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

func TestRecorderFansOut(t *testing.T) {
	t.Parallel()
	var a, b []audit.Event
	r := audit.NewRecorder(
		audit.FuncSink(func(_ context.Context, e audit.Event) { a = append(a, e) }),
		audit.FuncSink(func(_ context.Context, e audit.Event) { b = append(b, e) }),
	)

	r.RecordAll(context.Background(), audit.Event{UserID: "u1"},
		domain.AuditInvalidCredentials, domain.AuditAccountLockedOut)

	require.Len(t, a, 2)
	require.Equal(t, a, b)
	require.Equal(t, domain.AuditInvalidCredentials, a[0].Code)
	require.Equal(t, domain.AuditAccountLockedOut, a[1].Code)
	require.Equal(t, "u1", a[1].UserID)
	require.False(t, a[0].At.IsZero())
}

func TestNilRecorderDrops(t *testing.T) {
	t.Parallel()
	var r *audit.Recorder
	require.NotPanics(t, func() {
		r.Record(context.Background(), audit.Event{Code: domain.AuditAuthenticationSucceeded})
	})
}

func TestSlogSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := slogx.WithContext(context.Background(), l)

	audit.SlogSink{}.Emit(ctx, audit.Event{
		Code:   domain.AuditMfaVerified,
		At:     time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC),
		UserID: "u1",
	})
	out := buf.String()
	require.Contains(t, out, `"code":"mfa.verified"`)
	require.Contains(t, out, `"user_id":"u1"`)
	require.NotContains(t, out, "client_id")
}

func TestCounterSink(t *testing.T) {
	t.Parallel()
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "events_total"}, []string{"code"})
	s := audit.CounterSink{Counter: vec}
	ctx := context.Background()

	s.Emit(ctx, audit.Event{Code: domain.AuditTokensIssued})
	s.Emit(ctx, audit.Event{Code: domain.AuditTokensIssued})
	s.Emit(ctx, audit.Event{Code: domain.AuditTokensRevoked})

	require.InDelta(t, 2, testutil.ToFloat64(vec.WithLabelValues("tokens.issued")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(vec.WithLabelValues("tokens.revoked")), 0)
}
