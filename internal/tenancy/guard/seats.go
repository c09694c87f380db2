package guard

import (
	"sort"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

// AllowedTenants computes which of a principal's owned tenants currently
// hold a seat: sorted ascending by tenant creation time with insertion
// order breaking ties, the first maxClients win. The computation is pure
// and re-derived on every request: nothing records which tenant "owns" a
// seat, so when the cap shrinks or new tenants appear, the newest owned
// tenants lose access first. That ordering decides which existing customers
// a user can still reach; do not change it.
func AllowedTenants(maxClients int, owned []domain.OwnedTenant) []string {
	if maxClients <= 0 {
		maxClients = domain.DefaultMaxClients
	}

	sorted := make([]domain.OwnedTenant, len(owned))
	copy(sorted, owned)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TenantCreatedAt.Equal(sorted[j].TenantCreatedAt) {
			return sorted[i].TenantCreatedAt.Before(sorted[j].TenantCreatedAt)
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	if len(sorted) > maxClients {
		sorted = sorted[:maxClients]
	}

	allowed := make([]string, len(sorted))
	for i, o := range sorted {
		allowed[i] = o.TenantID
	}
	return allowed
}

// seatAllowed reports whether tenantID is inside the allowed set.
func seatAllowed(maxClients int, owned []domain.OwnedTenant, tenantID string) bool {
	for _, id := range AllowedTenants(maxClients, owned) {
		if id == tenantID {
			return true
		}
	}
	return false
}
