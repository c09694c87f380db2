package domain

import (
	"strings"
	"time"
)

// TokenStatus is the lifecycle state of a credential token. Accepted and
// revoked are terminal.
type TokenStatus string

const (
	TokenActive   TokenStatus = "active"
	TokenAccepted TokenStatus = "accepted"
	TokenRevoked  TokenStatus = "revoked"
)

func (s TokenStatus) Valid() bool {
	switch s {
	case TokenActive, TokenAccepted, TokenRevoked:
		return true
	}
	return false
}

// AccessDurationType controls the access window a redemption grants.
type AccessDurationType string

const (
	DurationUnlimited AccessDurationType = "unlimited"
	DurationLimited   AccessDurationType = "limited"
)

// CredentialToken is an opaque, constrained grant (magic link or invitation)
// redeemable for account or tenant state changes. Only its SHA-256
// fingerprint is stored. Mutated exclusively by the redemption engine and
// by administrative revocation.
type CredentialToken struct {
	ID          string
	Fingerprint string
	Status      TokenStatus

	// Email binds the token to one address. Empty = the redeemer supplies
	// their own (anonymous flow) or redeems as themselves (authenticated).
	Email string

	// TenantID scopes the grant to one tenant. Empty = platform scope.
	TenantID string

	// Role granted on the target tenant for tenant-scoped tokens.
	Role MembershipRole

	// Platform-scope grants, applied to the principal directly. Ignored
	// for tenant-scoped and wait-list tokens.
	GrantGlobalRole   GlobalRole
	GrantPlan         PlanTier
	GrantMaxClients   int
	GrantSubscription SubscriptionStatus

	// UsageLimit caps total successful redemptions. Nil = unlimited.
	UsageLimit *int
	UseCount   int

	ExpiresAt *time.Time // nil = never expires

	AccessDurationType AccessDurationType
	AccessDurationDays int

	// RestrictedDomains limits redemption to emails under these domains
	// (lowercase, space-delimited in storage). Empty = unrestricted.
	RestrictedDomains []string

	// WaitlistLeadID marks a wait-list-origin token. Redemption provisions
	// a fresh tenant and never elevates the principal's global role.
	WaitlistLeadID string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exhausted reports whether the usage limit has been reached.
func (t CredentialToken) Exhausted() bool {
	return t.UsageLimit != nil && t.UseCount >= *t.UsageLimit
}

// Expired reports whether the token's own expiry has passed.
func (t CredentialToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// DomainAllowed reports whether email's domain is inside the restricted
// set. Comparison is case-insensitive; an empty set allows everything.
func (t CredentialToken) DomainAllowed(email string) bool {
	if len(t.RestrictedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, allowed := range t.RestrictedDomains {
		if strings.ToLower(allowed) == domain {
			return true
		}
	}
	return false
}

// AccessExpiry computes the accessExpiresAt a redemption at now grants:
// nil for unlimited tokens, now + accessDurationDays otherwise.
func (t CredentialToken) AccessExpiry(now time.Time) *time.Time {
	if t.AccessDurationType != DurationLimited {
		return nil
	}
	expiry := now.AddDate(0, 0, t.AccessDurationDays)
	return &expiry
}

// RedemptionLedgerEntry is the append-only witness that a principal has
// consumed a token. Its (TokenID, PrincipalID) uniqueness is the
// idempotency guard for authenticated redemption.
type RedemptionLedgerEntry struct {
	TokenID     string
	PrincipalID string
	RedeemedAt  time.Time
}
