package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/internal/ident/metrics"
)

func TestMiddlewareLabelsByPattern(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/v1/things/a", "/v1/things/b", "/nope"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.InDelta(t, 2, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "GET /v1/things/{id}", "418")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")), 0)
}

func TestHandlerExposesAuditCounter(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	m.AuditEvents.WithLabelValues("authn.succeeded").Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ident_audit_events_total{code="authn.succeeded"} 1`)
}
