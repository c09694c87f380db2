package tenancysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response decoded into the service's error body.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tenancy API error %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client talks to the tenancy service. A zero session token means
// unauthenticated calls only.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	sessionToken string
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithSession returns a copy of the client that authenticates with token.
func (c *Client) WithSession(token string) *Client {
	clone := *c
	clone.sessionToken = token
	return &clone
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        body.Error,
			Description: body.ErrorDescription,
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions", LoginRequest{Email: email, Password: password}, &out)
	return out, err
}

// CompleteStepUp exchanges a challenge and TOTP code for an elevated session.
func (c *Client) CompleteStepUp(ctx context.Context, challengeToken, code string) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/sessions/step-up",
		StepUpRequest{ChallengeToken: challengeToken, Code: code}, &out)
	return out, err
}

// BeginStepUp requests a challenge for the authenticated principal.
func (c *Client) BeginStepUp(ctx context.Context) (SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/v1/me/step-up", nil, &out)
	return out, err
}

// EnrollMFA starts TOTP enrollment.
func (c *Client) EnrollMFA(ctx context.Context) (MFAEnrollResponse, error) {
	var out MFAEnrollResponse
	err := c.do(ctx, http.MethodPost, "/v1/mfa/enroll", nil, &out)
	return out, err
}

// VerifyMFA confirms enrollment with a first TOTP code.
func (c *Client) VerifyMFA(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/v1/mfa/verify", MFAVerifyRequest{Code: code}, nil)
}

// RedeemSignup redeems a credential token anonymously, creating an account.
func (c *Client) RedeemSignup(ctx context.Context, req RedeemSignupRequest) (RedeemResponse, error) {
	var out RedeemResponse
	err := c.do(ctx, http.MethodPost, "/v1/tokens/redeem", req, &out)
	return out, err
}

// Redeem redeems a credential token as the authenticated principal.
func (c *Client) Redeem(ctx context.Context, token string) (RedeemResponse, error) {
	var out RedeemResponse
	err := c.do(ctx, http.MethodPost, "/v1/me/tokens/redeem", RedeemRequest{Token: token}, &out)
	return out, err
}

// MintToken creates a credential token. Requires an elevated global role.
func (c *Client) MintToken(ctx context.Context, req MintTokenRequest) (MintTokenResponse, error) {
	var out MintTokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/tokens", req, &out)
	return out, err
}

// RevokeToken revokes an active credential token.
func (c *Client) RevokeToken(ctx context.Context, tokenID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/tokens/"+tokenID, nil, nil)
}

// ListTokens lists credential tokens, optionally filtered to one tenant.
func (c *Client) ListTokens(ctx context.Context, tenantID string) ([]TokenSummary, error) {
	path := "/v1/tokens"
	if tenantID != "" {
		path += "?tenant_id=" + tenantID
	}
	var out []TokenSummary
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateLead records a wait-list lead. Platform administrators only.
func (c *Client) CreateLead(ctx context.Context, req CreateLeadRequest) (Lead, error) {
	var out Lead
	err := c.do(ctx, http.MethodPost, "/v1/leads", req, &out)
	return out, err
}

// GetTenant fetches a tenant the principal can access.
func (c *Client) GetTenant(ctx context.Context, tenantID string) (Tenant, error) {
	var out Tenant
	err := c.do(ctx, http.MethodGet, "/v1/tenants/"+tenantID, nil, &out)
	return out, err
}

// RequestArchiveExport queues a premium archive export for a tenant.
func (c *Client) RequestArchiveExport(ctx context.Context, tenantID string) (ArchiveExportResponse, error) {
	var out ArchiveExportResponse
	err := c.do(ctx, http.MethodPost, "/v1/tenants/"+tenantID+"/archive-export", nil, &out)
	return out, err
}

// Me fetches the authenticated principal's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, &out)
	return out, err
}

// Livez reports whether the service is up.
func (c *Client) Livez(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/livez", nil, nil)
}

// Readyz reports whether the service can reach its database.
func (c *Client) Readyz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}
