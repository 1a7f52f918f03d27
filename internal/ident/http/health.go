package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

const (
	healthOK          = "ok"
	healthUnavailable = "unavailable"
)

// HealthHandler answers the liveness and readiness probes.
type HealthHandler struct {
	Started time.Time
	Version string
	Store   store.Store
	Keys    *jwtx.KeySet
}

func (h *HealthHandler) response(status string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
	}
}

// HandleLive godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 while the process is serving requests.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.response(healthOK))
}

// HandleReady godoc
//
//	@Summary		Readiness probe
//	@Description	Returns 503 until the database answers and a signing key is loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"one of the checks failed"
//	@Router			/readyz [get].
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := &authsdk.HealthChecks{Database: healthOK, Signer: healthOK}
	ready := true

	if err := h.Store.Ping(r.Context()); err != nil {
		checks.Database = "error: " + err.Error()
		ready = false
	}
	if !h.Keys.IsReady() {
		checks.Signer = "error: no signing key"
		ready = false
	}

	out := h.response(healthOK)
	out.Checks = checks
	status := http.StatusOK
	if !ready {
		out.Status = healthUnavailable
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, out)
}
