package http

import (
	"encoding/json"
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

type MFAHandler struct {
	MFAService *service.MFAService
	Guards     *guard.Pipeline
}

// HandleEnroll godoc
//
//	@Summary		Enroll TOTP
//	@Description	Generate a TOTP secret for the authenticated principal. MFA is not active until the first code verifies.
//	@Tags			MFA
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	tenancysdk.MFAEnrollResponse
//	@Failure		401	{object}	tenancysdk.ErrorResponse
//	@Failure		409	{object}	tenancysdk.ErrorResponse	"already enabled"
//	@Router			/v1/mfa/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	gc, fault := h.Guards.Authenticated()(r.Context(), guardContext(r))
	if fault != nil {
		writeFault(w, fault)
		return
	}

	enroll, fault := h.MFAService.EnrollTOTP(r.Context(), gc.Principal.ID)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tenancysdk.MFAEnrollResponse{
		Secret:  enroll.Secret,
		QRCode:  enroll.QRCode,
		Issuer:  enroll.Issuer,
		Account: enroll.Account,
	})
}

// HandleVerify godoc
//
//	@Summary		Verify TOTP
//	@Description	Confirm TOTP enrollment with a first code, enabling MFA.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	tenancysdk.MFAVerifyRequest	true	"TOTP code"
//	@Success		204
//	@Failure		400	{object}	tenancysdk.ErrorResponse
//	@Failure		401	{object}	tenancysdk.ErrorResponse
//	@Router			/v1/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	gc, fault := h.Guards.Authenticated()(r.Context(), guardContext(r))
	if fault != nil {
		writeFault(w, fault)
		return
	}

	var req tenancysdk.MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	if fault := h.MFAService.VerifyTOTP(r.Context(), gc.Principal.ID, req.Code); fault != nil {
		writeFault(w, fault)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
