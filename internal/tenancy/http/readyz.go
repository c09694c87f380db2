package http

import (
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Probe
//	@Description	Checks critical dependencies. Returns 503 when the database is unreachable.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	tenancysdk.HealthResponse
//	@Failure		503	{object}	tenancysdk.HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &tenancysdk.HealthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, tenancysdk.HealthResponse{
			Status: status,
			Checks: checks,
		})
	}
}
