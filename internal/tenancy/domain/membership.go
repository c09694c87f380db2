package domain

import "time"

// MembershipRole is a principal's role within one tenant.
type MembershipRole string

const (
	RoleOwner   MembershipRole = "owner"
	RoleAdmin   MembershipRole = "admin"
	RoleEditor  MembershipRole = "editor"
	RoleViewer  MembershipRole = "viewer"
	RoleAuditor MembershipRole = "auditor"
)

func (r MembershipRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer, RoleAuditor:
		return true
	}
	return false
}

// CanEdit reports whether the role may mutate tenant content. Viewer and
// auditor are read-only.
func (r MembershipRole) CanEdit() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

// Membership binds a principal to a tenant with a role. Unique per
// (principal, tenant).
type Membership struct {
	PrincipalID string
	TenantID    string
	Role        MembershipRole
	// AccessExpiresAt voids the membership once passed, regardless of
	// role. Set by limited-duration credential tokens.
	AccessExpiresAt *time.Time
	JoinedAt        time.Time
	UpdatedAt       time.Time
}

// Expired reports whether the membership's access window has closed.
func (m Membership) Expired(now time.Time) bool {
	return m.AccessExpiresAt != nil && now.After(*m.AccessExpiresAt)
}

// OwnedTenant is the projection the seat allocator works on: one tenant in
// which a principal holds an owner membership, with the ordering keys it
// needs. Rank is the stable insertion-order tiebreak for identical creation
// times.
type OwnedTenant struct {
	TenantID        string
	TenantCreatedAt time.Time
	Rank            int64
}
