// Package guard implements the ordered authorization checks every protected
// operation runs before business logic: authentication, step-up MFA, tenant
// membership, role gating and plan gating. Guards refine an ambient request
// context or fail with one typed fault, never both. The seat allocator
// lives here too because owner-seat enforcement is part of tenant access.
package guard

import (
	"context"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
)

// Input is the parsed request payload as the guards see it. Payloads that
// target a tenant expose its id; everything else returns "".
type Input interface {
	TenantID() string
}

// TenantInput is the trivial Input for requests whose tenant id comes from
// the URL path.
type TenantInput string

func (t TenantInput) TenantID() string { return string(t) }

// NoInput is the Input for requests with no tenant-bearing payload.
type NoInput struct{}

func (NoInput) TenantID() string { return "" }

// Context is the ambient request context the guard chain refines. The
// session middleware fills the first four fields; TenantAccess attaches the
// resolved fields on success.
type Context struct {
	// Principal is nil for anonymous requests.
	Principal *domain.Principal

	// ExplicitTenantID is a tenant id supplied out-of-band (header or
	// session), used when the payload has none.
	ExplicitTenantID string

	// Assurance is the session's authentication strength.
	Assurance domain.AssuranceLevel

	// Input is the parsed request payload. Never nil; use NoInput{}.
	Input Input

	// Fields below are attached by guards, not by callers.

	ResolvedTenantID string
	ResolvedRole     domain.MembershipRole
	Premium          bool
}

// requestTenantID resolves the target tenant id: payload first, then the
// ambient explicit id.
func (gc Context) requestTenantID() string {
	if id := gc.Input.TenantID(); id != "" {
		return id
	}
	return gc.ExplicitTenantID
}

// Guard is one authorization check. It returns a strictly refined context
// or a terminal fault.
type Guard func(ctx context.Context, gc Context) (Context, *domain.Fault)

// Chain sequences guards; the first fault aborts the chain.
func Chain(guards ...Guard) Guard {
	return func(ctx context.Context, gc Context) (Context, *domain.Fault) {
		for _, g := range guards {
			next, fault := g(ctx, gc)
			if fault != nil {
				return Context{}, fault
			}
			gc = next
		}
		return gc, nil
	}
}

// Directory is the read-only store surface the guards need.
type Directory interface {
	Membership(ctx context.Context, principalID, tenantID string) (domain.Membership, error)
	OwnedTenants(ctx context.Context, principalID string) ([]domain.OwnedTenant, error)
	Tenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	AnyTenantRequiresMFA(ctx context.Context, principalID string) (bool, error)
}

// storeDirectory adapts the root store to the Directory surface.
type storeDirectory struct {
	st store.Store
}

// NewStoreDirectory wraps a store as a guard Directory.
func NewStoreDirectory(st store.Store) Directory {
	return storeDirectory{st: st}
}

func (d storeDirectory) Membership(ctx context.Context, principalID, tenantID string) (domain.Membership, error) {
	return d.st.Memberships().GetMembership(ctx, principalID, tenantID)
}

func (d storeDirectory) OwnedTenants(ctx context.Context, principalID string) ([]domain.OwnedTenant, error) {
	return d.st.Memberships().ListOwnedTenants(ctx, principalID)
}

func (d storeDirectory) Tenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	return d.st.Tenants().GetTenantByID(ctx, tenantID)
}

func (d storeDirectory) AnyTenantRequiresMFA(ctx context.Context, principalID string) (bool, error) {
	return d.st.Memberships().AnyTenantRequiresMFA(ctx, principalID)
}
