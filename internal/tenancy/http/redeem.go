package http

import (
	"encoding/json"
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

type RedeemHandler struct {
	RedemptionService *service.RedemptionService
	Guards            *guard.Pipeline
}

func redeemResponse(result service.RedemptionResult) tenancysdk.RedeemResponse {
	resp := tenancysdk.RedeemResponse{
		PrincipalID: result.Principal.ID,
		Email:       result.Principal.Email,
		TenantID:    result.TenantID,
	}
	if result.Provisioned != nil {
		resp.ProvisionedTenant = &tenancysdk.Tenant{
			ID:         result.Provisioned.ID,
			Name:       result.Provisioned.Name,
			Plan:       string(result.Provisioned.Plan),
			RequireMFA: result.Provisioned.RequireMFA,
			CreatedAt:  result.Provisioned.CreatedAt,
		}
	}
	return resp
}

// HandleSignup godoc
//
//	@Summary		Redeem Token (signup)
//	@Description	Redeem a credential token without an existing account. Creates the account and applies the token's grant atomically. When the token is bound to an email the supplied one is ignored.
//	@Tags			Redemption
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tenancysdk.RedeemSignupRequest	true	"Token and account details"
//	@Success		201		{object}	tenancysdk.RedeemResponse
//	@Failure		400		{object}	tenancysdk.ErrorResponse
//	@Failure		403		{object}	tenancysdk.ErrorResponse	"domain restriction"
//	@Failure		404		{object}	tenancysdk.ErrorResponse	"unknown token"
//	@Failure		409		{object}	tenancysdk.ErrorResponse	"account exists or token not active"
//	@Failure		410		{object}	tenancysdk.ErrorResponse	"expired or exhausted"
//	@Router			/v1/tokens/redeem [post].
func (h *RedeemHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req tenancysdk.RedeemSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}
	if len(req.Password) < 8 {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	result, fault := h.RedemptionService.RedeemSignup(r.Context(), req.Token, req.Email, req.Name, req.Password)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, redeemResponse(result))
}

// HandleRedeem godoc
//
//	@Summary		Redeem Token (authenticated)
//	@Description	Redeem a credential token as the authenticated principal. Each principal can redeem a given token at most once.
//	@Tags			Redemption
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		tenancysdk.RedeemRequest	true	"Token"
//	@Success		200		{object}	tenancysdk.RedeemResponse
//	@Failure		401		{object}	tenancysdk.ErrorResponse
//	@Failure		403		{object}	tenancysdk.ErrorResponse	"bound to another account or domain restriction"
//	@Failure		409		{object}	tenancysdk.ErrorResponse	"already redeemed or token not active"
//	@Failure		410		{object}	tenancysdk.ErrorResponse	"expired or exhausted"
//	@Router			/v1/me/tokens/redeem [post].
func (h *RedeemHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	gc, fault := h.Guards.Authenticated()(r.Context(), guardContext(r))
	if fault != nil {
		writeFault(w, fault)
		return
	}

	var req tenancysdk.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Token == "" {
		writeBadRequest(w, "token is required")
		return
	}

	result, fault := h.RedemptionService.Redeem(r.Context(), req.Token, gc.Principal.ID)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, redeemResponse(result))
}
