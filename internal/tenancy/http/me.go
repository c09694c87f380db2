package http

import (
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/slogx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

type ProfileHandler struct {
	Store  store.Store
	Guards *guard.Pipeline
}

// HandleGet godoc
//
//	@Summary		Get Profile
//	@Description	Fetch the authenticated principal's own profile, including the owner seats currently inside the seat cap.
//	@Tags			Profile
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	tenancysdk.Profile
//	@Failure		401	{object}	tenancysdk.ErrorResponse
//	@Router			/v1/me [get].
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	gc, fault := h.Guards.Authenticated()(r.Context(), guardContext(r))
	if fault != nil {
		writeFault(w, fault)
		return
	}
	principal := gc.Principal

	owned, err := h.Store.Memberships().ListOwnedTenants(r.Context(), principal.ID)
	if err != nil {
		slogx.FromContext(r.Context()).Error("owned-tenant listing failed", "principal_id", principal.ID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tenancysdk.Profile{
		ID:             principal.ID,
		Email:          principal.Email,
		Name:           principal.Name,
		GlobalRole:     string(principal.GlobalRole),
		Plan:           string(principal.Plan),
		Subscription:   string(principal.Subscription),
		MaxClients:     principal.SeatCap(),
		MFAEnabled:     principal.MFAEnabled(),
		AccessExpiry:   principal.AccessExpiresAt,
		AllowedTenants: guard.AllowedTenants(principal.SeatCap(), owned),
	})
}
