package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

func owned(id string, created time.Time, rank int64) domain.OwnedTenant {
	return domain.OwnedTenant{TenantID: id, TenantCreatedAt: created, Rank: rank}
}

func TestAllowedTenantsOldestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := []domain.OwnedTenant{
		owned("t3", base.Add(3*time.Hour), 3),
		owned("t1", base.Add(1*time.Hour), 1),
		owned("t2", base.Add(2*time.Hour), 2),
	}

	require.Equal(t, []string{"t1", "t2"}, AllowedTenants(2, tenants))
	require.Equal(t, []string{"t1"}, AllowedTenants(1, tenants))
	require.Equal(t, []string{"t1", "t2", "t3"}, AllowedTenants(3, tenants))
}

func TestAllowedTenantsRankIsGrantedIffWithinCap(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tenants []domain.OwnedTenant
	for i := range 6 {
		tenants = append(tenants, owned(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), int64(i)))
	}

	for cap := 1; cap <= 6; cap++ {
		allowed := AllowedTenants(cap, tenants)
		require.Len(t, allowed, cap)
		for rank, tenant := range tenants {
			if rank < cap {
				require.Contains(t, allowed, tenant.TenantID)
			} else {
				require.NotContains(t, allowed, tenant.TenantID)
			}
		}
	}
}

func TestAllowedTenantsTieBreakByInsertionOrder(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := []domain.OwnedTenant{
		owned("second", at, 2),
		owned("first", at, 1),
	}

	require.Equal(t, []string{"first"}, AllowedTenants(1, tenants))
}

func TestAllowedTenantsDefaultsCapToTwo(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := []domain.OwnedTenant{
		owned("t1", base, 1),
		owned("t2", base.Add(time.Hour), 2),
		owned("t3", base.Add(2*time.Hour), 3),
	}

	require.Equal(t, []string{"t1", "t2"}, AllowedTenants(0, tenants))
	require.Equal(t, []string{"t1", "t2"}, AllowedTenants(-1, tenants))
}

func TestAllowedTenantsShrinkDropsNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := []domain.OwnedTenant{
		owned("oldest", base, 1),
		owned("middle", base.Add(time.Hour), 2),
		owned("newest", base.Add(2*time.Hour), 3),
	}

	wide := AllowedTenants(3, tenants)
	narrow := AllowedTenants(2, tenants)

	require.Contains(t, wide, "newest")
	require.NotContains(t, narrow, "newest")
	require.Contains(t, narrow, "oldest")
	require.Contains(t, narrow, "middle")
}

func TestAllowedTenantsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tenants := []domain.OwnedTenant{
		owned("t2", base.Add(time.Hour), 2),
		owned("t1", base, 1),
	}

	_ = AllowedTenants(1, tenants)
	require.Equal(t, "t2", tenants[0].TenantID)
}
