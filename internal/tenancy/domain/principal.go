package domain

import "time"

// GlobalRole is a principal's platform-wide role. Platform owner/admin
// bypass tenant membership checks entirely.
type GlobalRole string

const (
	GlobalRolePlatformOwner GlobalRole = "platform_owner"
	GlobalRolePlatformAdmin GlobalRole = "platform_admin"
	GlobalRoleMember        GlobalRole = "member"
)

// Elevated reports whether the role bypasses tenant-level access checks.
func (r GlobalRole) Elevated() bool {
	return r == GlobalRolePlatformOwner || r == GlobalRolePlatformAdmin
}

func (r GlobalRole) Valid() bool {
	switch r {
	case GlobalRolePlatformOwner, GlobalRolePlatformAdmin, GlobalRoleMember:
		return true
	}
	return false
}

type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Premium reports whether the tier unlocks premium features.
func (p PlanTier) Premium() bool {
	return p == PlanPro || p == PlanEnterprise
}

func (p PlanTier) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = "none"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionNone, SubscriptionTrialing, SubscriptionActive,
		SubscriptionPastDue, SubscriptionCanceled:
		return true
	}
	return false
}

// DefaultMaxClients is the seat cap applied when a principal has none set.
const DefaultMaxClients = 2

// Principal is an authenticated user identity. Principals are never hard
// deleted; DeletedAt marks soft deletion and soft-deleted rows are invisible
// to every lookup.
type Principal struct {
	ID           string
	Email        string // unique, stored lowercase
	Name         string
	PasswordHash string // argon2id PHC encoded
	GlobalRole   GlobalRole
	Plan         PlanTier
	// MaxClients caps how many tenants this principal can hold an owner
	// seat in. Zero means unset; readers apply DefaultMaxClients.
	MaxClients      int
	AccessExpiresAt *time.Time // nil = no expiry
	Subscription    SubscriptionStatus
	TOTPSecret      *string    // base32, nil until enrolled
	MFAEnabledAt    *time.Time // nil until verified
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccessExpired reports whether the principal's own access window has
// closed. Expired access voids everything regardless of role.
func (p Principal) AccessExpired(now time.Time) bool {
	return p.AccessExpiresAt != nil && now.After(*p.AccessExpiresAt)
}

// SeatCap returns the effective owner-seat cap.
func (p Principal) SeatCap() int {
	if p.MaxClients <= 0 {
		return DefaultMaxClients
	}
	return p.MaxClients
}

// MFAEnabled reports whether the principal has completed TOTP enrollment.
func (p Principal) MFAEnabled() bool {
	return p.MFAEnabledAt != nil
}

// AssuranceLevel is the authentication strength of the current session.
type AssuranceLevel string

const (
	AssuranceBase     AssuranceLevel = "base"
	AssuranceElevated AssuranceLevel = "elevated" // step-up MFA complete
)
