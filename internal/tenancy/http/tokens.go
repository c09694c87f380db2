package http

import (
	"encoding/json"
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

type TokenAdminHandler struct {
	TokenAdminService *service.TokenAdminService
	Guards            *guard.Pipeline
}

// requireAdmin runs the authentication guard and then gates on an elevated
// global role. Token administration is platform-level, never tenant-level.
func (h *TokenAdminHandler) requireAdmin(r *http.Request) (guard.Context, *domain.Fault) {
	gc, fault := h.Guards.Authenticated()(r.Context(), guardContext(r))
	if fault != nil {
		return guard.Context{}, fault
	}
	if !gc.Principal.GlobalRole.Elevated() {
		return guard.Context{}, domain.Faultf(domain.FaultForbidden, "platform administrator role required")
	}
	return gc, nil
}

func tokenSummary(t domain.CredentialToken) tenancysdk.TokenSummary {
	return tenancysdk.TokenSummary{
		ID:         t.ID,
		Status:     string(t.Status),
		Email:      t.Email,
		TenantID:   t.TenantID,
		Role:       string(t.Role),
		UsageLimit: t.UsageLimit,
		UseCount:   t.UseCount,
		ExpiresAt:  t.ExpiresAt,
		CreatedBy:  t.CreatedBy,
		CreatedAt:  t.CreatedAt,
	}
}

// HandleMint godoc
//
//	@Summary		Mint Credential Token
//	@Description	Create a credential token. The opaque value is returned exactly once; only its fingerprint is stored.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		tenancysdk.MintTokenRequest	true	"Token parameters"
//	@Success		201		{object}	tenancysdk.MintTokenResponse
//	@Failure		400		{object}	tenancysdk.ErrorResponse
//	@Failure		401		{object}	tenancysdk.ErrorResponse
//	@Failure		403		{object}	tenancysdk.ErrorResponse
//	@Failure		404		{object}	tenancysdk.ErrorResponse	"unknown tenant or lead"
//	@Router			/v1/tokens [post].
func (h *TokenAdminHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	gc, fault := h.requireAdmin(r)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	var req tenancysdk.MintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	raw, token, fault := h.TokenAdminService.MintToken(r.Context(), service.MintTokenParams{
		Email:              req.Email,
		TenantID:           req.TenantID,
		Role:               domain.MembershipRole(req.Role),
		GrantGlobalRole:    domain.GlobalRole(req.GrantGlobalRole),
		GrantPlan:          domain.PlanTier(req.GrantPlan),
		GrantMaxClients:    req.GrantMaxClients,
		GrantSubscription:  domain.SubscriptionStatus(req.GrantSubscription),
		UsageLimit:         req.UsageLimit,
		ExpiresAt:          req.ExpiresAt,
		AccessDurationType: domain.AccessDurationType(req.AccessDurationType),
		AccessDurationDays: req.AccessDurationDays,
		RestrictedDomains:  req.RestrictedDomains,
		WaitlistLeadID:     req.WaitlistLeadID,
		CreatedBy:          gc.Principal.ID,
	})
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tenancysdk.MintTokenResponse{
		Token:     raw,
		TokenID:   token.ID,
		ExpiresAt: token.ExpiresAt,
	})
}

// HandleList godoc
//
//	@Summary		List Credential Tokens
//	@Description	List tokens, optionally filtered to one tenant. Raw values are never included.
//	@Tags			Tokens
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tenant_id	query		string	false	"Filter by tenant"
//	@Success		200			{array}		tenancysdk.TokenSummary
//	@Failure		401			{object}	tenancysdk.ErrorResponse
//	@Failure		403			{object}	tenancysdk.ErrorResponse
//	@Router			/v1/tokens [get].
func (h *TokenAdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, fault := h.requireAdmin(r); fault != nil {
		writeFault(w, fault)
		return
	}

	tokens, fault := h.TokenAdminService.ListTokens(r.Context(), r.URL.Query().Get("tenant_id"))
	if fault != nil {
		writeFault(w, fault)
		return
	}

	out := make([]tenancysdk.TokenSummary, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenSummary(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevoke godoc
//
//	@Summary		Revoke Credential Token
//	@Description	Move an active token to revoked. Terminal states cannot be revoked again.
//	@Tags			Tokens
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Token ID"
//	@Success		204
//	@Failure		401	{object}	tenancysdk.ErrorResponse
//	@Failure		403	{object}	tenancysdk.ErrorResponse
//	@Failure		404	{object}	tenancysdk.ErrorResponse
//	@Failure		409	{object}	tenancysdk.ErrorResponse	"not active"
//	@Router			/v1/tokens/{id} [delete].
func (h *TokenAdminHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if _, fault := h.requireAdmin(r); fault != nil {
		writeFault(w, fault)
		return
	}

	if fault := h.TokenAdminService.RevokeToken(r.Context(), r.PathValue("id")); fault != nil {
		writeFault(w, fault)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateLead godoc
//
//	@Summary		Record Wait-list Lead
//	@Description	Record a wait-list signup so a wait-list token can reference it.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		tenancysdk.CreateLeadRequest	true	"Lead details"
//	@Success		201		{object}	tenancysdk.Lead
//	@Failure		401		{object}	tenancysdk.ErrorResponse
//	@Failure		403		{object}	tenancysdk.ErrorResponse
//	@Failure		409		{object}	tenancysdk.ErrorResponse	"email already recorded"
//	@Router			/v1/leads [post].
func (h *TokenAdminHandler) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	if _, fault := h.requireAdmin(r); fault != nil {
		writeFault(w, fault)
		return
	}

	var req tenancysdk.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	lead, fault := h.TokenAdminService.CreateLead(r.Context(), req.Email, req.Company)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tenancysdk.Lead{
		ID:        lead.ID,
		Email:     lead.Email,
		Company:   lead.Company,
		CreatedAt: lead.CreatedAt,
	})
}
