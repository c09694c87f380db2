package http

import (
	"net/http"
	"time"

	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

// LivezHandler godoc
//
//	@Summary		Liveness Probe
//	@Description	Returns basic service health, uptime and version. Always 200 when the process is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	tenancysdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(version string, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, tenancysdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
