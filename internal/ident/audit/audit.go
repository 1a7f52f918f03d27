// Package audit records security-relevant outcomes. Services emit events with
// a fixed code vocabulary; sinks turn them into log lines and counters.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// Event is one audited outcome.
type Event struct {
	Code         domain.AuditCode
	At           time.Time
	UserID       string
	CredentialID string
	ClientID     string
	Detail       string
}

// Sink receives events. Emit must not block for long and must not fail the
// caller; sinks swallow their own errors.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Recorder fans events out to every sink.
type Recorder struct {
	sinks []Sink
	now   func() time.Time
}

// NewRecorder returns a recorder over sinks.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, now: time.Now}
}

// Record emits e, stamping it when At is zero. A nil Recorder drops events.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	if e.At.IsZero() {
		e.At = r.now()
	}
	for _, s := range r.sinks {
		s.Emit(ctx, e)
	}
}

// RecordAll emits one event per code, sharing the other fields of base.
func (r *Recorder) RecordAll(ctx context.Context, base Event, codes ...domain.AuditCode) {
	for _, c := range codes {
		base.Code = c
		r.Record(ctx, base)
	}
}

// SlogSink writes events to the request logger.
type SlogSink struct{}

func (SlogSink) Emit(ctx context.Context, e Event) {
	attrs := []any{
		slog.String("code", string(e.Code)),
		slog.Time("at", e.At),
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.CredentialID != "" {
		attrs = append(attrs, slog.String("credential_id", e.CredentialID))
	}
	if e.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", e.ClientID))
	}
	if e.Detail != "" {
		attrs = append(attrs, slog.String("detail", e.Detail))
	}
	slogx.FromContext(ctx).Info("audit", slog.Group("audit", attrs...))
}

// CounterSink counts events by code.
type CounterSink struct {
	Counter *prometheus.CounterVec
}

func (s CounterSink) Emit(_ context.Context, e Event) {
	s.Counter.WithLabelValues(string(e.Code)).Inc()
}

// FuncSink adapts a function to Sink.
type FuncSink func(ctx context.Context, e Event)

func (f FuncSink) Emit(ctx context.Context, e Event) { f(ctx, e) }
