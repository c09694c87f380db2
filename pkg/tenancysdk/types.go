// Package tenancysdk is a small Go client for the tenancy service API. It
// covers every public endpoint and is what the end-to-end tests drive the
// service with.
package tenancysdk

import "time"

// ErrorResponse is the uniform JSON error body every endpoint returns.
type ErrorResponse struct {
	// Error is the machine-readable fault kind (e.g. "EXHAUSTED").
	Error string `json:"error"`

	// ErrorDescription is a human-readable description.
	ErrorDescription string `json:"error_description"`
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a signed session token.
type SessionResponse struct {
	SessionToken string    `json:"session_token"`
	TokenType    string    `json:"token_type"` // always "Bearer"
	ExpiresAt    time.Time `json:"expires_at"`

	// Step-up fields, set instead of a token when MFA is required.
	StepUpRequired bool     `json:"step_up_required,omitempty"`
	ChallengeToken string   `json:"challenge_token,omitempty"`
	Methods        []string `json:"methods,omitempty"`
}

// StepUpRequest exchanges a challenge plus a TOTP code for an elevated
// session.
type StepUpRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// MFAEnrollResponse carries TOTP provisioning details. The secret is shown
// exactly once.
type MFAEnrollResponse struct {
	Secret  string `json:"secret"`
	QRCode  string `json:"qr_code"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// MFAVerifyRequest confirms enrollment with a first code.
type MFAVerifyRequest struct {
	Code string `json:"code"`
}

// RedeemSignupRequest redeems a credential token without an existing
// account. Email is ignored when the token is bound to one.
type RedeemSignupRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// RedeemRequest redeems a credential token as the authenticated principal.
type RedeemRequest struct {
	Token string `json:"token"`
}

// RedeemResponse reports what a successful redemption changed.
type RedeemResponse struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	TenantID    string `json:"tenant_id,omitempty"`

	// ProvisionedTenant is set when a wait-list redemption created one.
	ProvisionedTenant *Tenant `json:"provisioned_tenant,omitempty"`
}

// MintTokenRequest creates a credential token. Administrators only.
type MintTokenRequest struct {
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`

	GrantGlobalRole   string `json:"grant_global_role,omitempty"`
	GrantPlan         string `json:"grant_plan,omitempty"`
	GrantMaxClients   int    `json:"grant_max_clients,omitempty"`
	GrantSubscription string `json:"grant_subscription,omitempty"`

	UsageLimit *int       `json:"usage_limit,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	AccessDurationType string `json:"access_duration_type,omitempty"`
	AccessDurationDays int    `json:"access_duration_days,omitempty"`

	RestrictedDomains []string `json:"restricted_domains,omitempty"`
	WaitlistLeadID    string   `json:"waitlist_lead_id,omitempty"`
}

// CreateLeadRequest records a wait-list signup.
type CreateLeadRequest struct {
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
}

// Lead is a recorded wait-list signup.
type Lead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MintTokenResponse returns the opaque token value exactly once.
type MintTokenResponse struct {
	Token     string     `json:"token"`
	TokenID   string     `json:"token_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokenSummary is the administrative view of a credential token. The raw
// value is never included.
type TokenSummary struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Email      string     `json:"email,omitempty"`
	TenantID   string     `json:"tenant_id,omitempty"`
	Role       string     `json:"role,omitempty"`
	UsageLimit *int       `json:"usage_limit,omitempty"`
	UseCount   int        `json:"use_count"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Tenant is the public view of a tenant.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Plan       string    `json:"plan"`
	RequireMFA bool      `json:"require_mfa"`
	CreatedAt  time.Time `json:"created_at"`

	// Role the calling principal holds in this tenant.
	Role string `json:"role,omitempty"`
}

// Profile is the authenticated principal's own view.
type Profile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	GlobalRole   string     `json:"global_role"`
	Plan         string     `json:"plan"`
	Subscription string     `json:"subscription"`
	MaxClients   int        `json:"max_clients"`
	MFAEnabled   bool       `json:"mfa_enabled"`
	AccessExpiry *time.Time `json:"access_expires_at,omitempty"`

	// AllowedTenants are the tenants inside the principal's seat cap, in
	// allocation order.
	AllowedTenants []string `json:"allowed_tenants,omitempty"`
}

// HealthChecks reports the status of each critical dependency.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"` // "ok" or "degraded"
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ArchiveExportResponse acknowledges a premium archive export request.
type ArchiveExportResponse struct {
	TenantID  string    `json:"tenant_id"`
	Requested time.Time `json:"requested_at"`
	Status    string    `json:"status"` // always "queued"
}
