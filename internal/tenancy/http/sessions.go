package http

import (
	"encoding/json"
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/service"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

type SessionHandler struct {
	SessionService *service.SessionService
}

// HandleLogin godoc
//
//	@Summary		Create Session
//	@Description	Authenticate with email and password. Principals with MFA enabled receive a step-up challenge instead of a session token.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tenancysdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	tenancysdk.SessionResponse	"session token or step-up challenge"
//	@Failure		400		{object}	tenancysdk.ErrorResponse
//	@Failure		401		{object}	tenancysdk.ErrorResponse
//	@Router			/v1/sessions [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req tenancysdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, fault := h.SessionService.Login(r.Context(), req.Email, req.Password)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	if result.StepUp != nil {
		httpx.WriteJSON(w, http.StatusOK, tenancysdk.SessionResponse{
			StepUpRequired: true,
			ChallengeToken: result.StepUp.ChallengeToken,
			Methods:        result.StepUp.Methods,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tenancysdk.SessionResponse{
		SessionToken: result.SessionToken,
		TokenType:    "Bearer",
		ExpiresAt:    result.ExpiresAt,
	})
}

// HandleStepUp godoc
//
//	@Summary		Complete Step-Up
//	@Description	Exchange a step-up challenge and a TOTP code for an elevated session.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tenancysdk.StepUpRequest	true	"Challenge and code"
//	@Success		200		{object}	tenancysdk.SessionResponse
//	@Failure		400		{object}	tenancysdk.ErrorResponse
//	@Failure		401		{object}	tenancysdk.ErrorResponse
//	@Router			/v1/sessions/step-up [post].
func (h *SessionHandler) HandleStepUp(w http.ResponseWriter, r *http.Request) {
	var req tenancysdk.StepUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		writeBadRequest(w, "challenge_token and code are required")
		return
	}

	result, fault := h.SessionService.CompleteStepUp(r.Context(), req.ChallengeToken, req.Code)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tenancysdk.SessionResponse{
		SessionToken: result.SessionToken,
		TokenType:    "Bearer",
		ExpiresAt:    result.ExpiresAt,
	})
}

// HandleBeginStepUp godoc
//
//	@Summary		Begin Step-Up
//	@Description	Issue a step-up challenge for the authenticated principal, typically after a STEP_UP_REQUIRED error.
//	@Tags			Sessions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	tenancysdk.SessionResponse	"step-up challenge"
//	@Failure		401	{object}	tenancysdk.ErrorResponse
//	@Failure		409	{object}	tenancysdk.ErrorResponse	"MFA not enrolled"
//	@Router			/v1/me/step-up [post].
func (h *SessionHandler) HandleBeginStepUp(w http.ResponseWriter, r *http.Request) {
	gc := guardContext(r)
	if gc.Principal == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}

	challenge, fault := h.SessionService.BeginStepUp(r.Context(), gc.Principal.ID)
	if fault != nil {
		writeFault(w, fault)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tenancysdk.SessionResponse{
		StepUpRequired: true,
		ChallengeToken: challenge.ChallengeToken,
		Methods:        challenge.Methods,
	})
}
