package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
)

// fakeDirectory is an in-memory Directory for guard tests.
type fakeDirectory struct {
	tenants     map[string]domain.Tenant
	memberships map[string]domain.Membership // key: principalID + "/" + tenantID
	owned       map[string][]domain.OwnedTenant
	mfaAnywhere map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		tenants:     map[string]domain.Tenant{},
		memberships: map[string]domain.Membership{},
		owned:       map[string][]domain.OwnedTenant{},
		mfaAnywhere: map[string]bool{},
	}
}

func (d *fakeDirectory) Membership(_ context.Context, principalID, tenantID string) (domain.Membership, error) {
	m, ok := d.memberships[principalID+"/"+tenantID]
	if !ok {
		return domain.Membership{}, store.ErrNotFound
	}
	return m, nil
}

func (d *fakeDirectory) OwnedTenants(_ context.Context, principalID string) ([]domain.OwnedTenant, error) {
	return d.owned[principalID], nil
}

func (d *fakeDirectory) Tenant(_ context.Context, tenantID string) (domain.Tenant, error) {
	t, ok := d.tenants[tenantID]
	if !ok {
		return domain.Tenant{}, store.ErrNotFound
	}
	return t, nil
}

func (d *fakeDirectory) AnyTenantRequiresMFA(_ context.Context, principalID string) (bool, error) {
	return d.mfaAnywhere[principalID], nil
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testPipeline(dir Directory) *Pipeline {
	return &Pipeline{Dir: dir, Now: func() time.Time { return testNow }}
}

func member(name string) *domain.Principal {
	return &domain.Principal{ID: name, Email: name + "@example.com", GlobalRole: domain.GlobalRoleMember}
}

func requireFault(t *testing.T, fault *domain.Fault, kind domain.FaultKind) {
	t.Helper()
	require.NotNil(t, fault)
	require.Equal(t, kind, fault.Kind)
}

func TestAuthenticated(t *testing.T) {
	t.Parallel()

	p := testPipeline(newFakeDirectory())
	ctx := context.Background()

	t.Run("rejects anonymous", func(t *testing.T) {
		_, fault := p.Authenticated()(ctx, Context{Input: NoInput{}})
		requireFault(t, fault, domain.FaultUnauthenticated)
	})

	t.Run("rejects expired account access", func(t *testing.T) {
		past := testNow.Add(-time.Hour)
		expired := member("expired")
		expired.AccessExpiresAt = &past

		_, fault := p.Authenticated()(ctx, Context{Principal: expired, Input: NoInput{}})
		requireFault(t, fault, domain.FaultAccessExpired)
	})

	t.Run("passes open access window", func(t *testing.T) {
		future := testNow.Add(time.Hour)
		ok := member("ok")
		ok.AccessExpiresAt = &future

		refined, fault := p.Authenticated()(ctx, Context{Principal: ok, Input: NoInput{}})
		require.Nil(t, fault)
		require.Equal(t, ok, refined.Principal)
	})

	t.Run("passes nil expiry", func(t *testing.T) {
		_, fault := p.Authenticated()(ctx, Context{Principal: member("open"), Input: NoInput{}})
		require.Nil(t, fault)
	})
}

func TestStepUpMFA(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.tenants["strict"] = domain.Tenant{ID: "strict", RequireMFA: true, Plan: domain.PlanPro}
	dir.tenants["lax"] = domain.Tenant{ID: "lax", RequireMFA: false, Plan: domain.PlanFree}
	dir.mfaAnywhere["careful"] = true
	p := testPipeline(dir)
	ctx := context.Background()

	t.Run("elevated assurance passes immediately", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal: member("p"),
			Assurance: domain.AssuranceElevated,
			Input:     TenantInput("strict"),
		})
		require.Nil(t, fault)
	})

	t.Run("tenant requiring MFA demands step-up at base assurance", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal: member("p"),
			Assurance: domain.AssuranceBase,
			Input:     TenantInput("strict"),
		})
		requireFault(t, fault, domain.FaultStepUpRequired)
	})

	t.Run("tenant without MFA requirement passes", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal: member("p"),
			Assurance: domain.AssuranceBase,
			Input:     TenantInput("lax"),
		})
		require.Nil(t, fault)
	})

	t.Run("no derivable tenant falls back to any-membership predicate", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal: member("careful"),
			Assurance: domain.AssuranceBase,
			Input:     NoInput{},
		})
		requireFault(t, fault, domain.FaultStepUpRequired)

		_, fault = p.StepUpMFA()(ctx, Context{
			Principal: member("carefree"),
			Assurance: domain.AssuranceBase,
			Input:     NoInput{},
		})
		require.Nil(t, fault)
	})

	t.Run("unknown tenant defers to TenantAccess", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal: member("p"),
			Assurance: domain.AssuranceBase,
			Input:     TenantInput("missing"),
		})
		require.Nil(t, fault)
	})

	t.Run("ambient tenant id used when payload has none", func(t *testing.T) {
		_, fault := p.StepUpMFA()(ctx, Context{
			Principal:        member("p"),
			Assurance:        domain.AssuranceBase,
			ExplicitTenantID: "strict",
			Input:            NoInput{},
		})
		requireFault(t, fault, domain.FaultStepUpRequired)
	})
}

func TestTenantAccess(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.tenants["t1"] = domain.Tenant{ID: "t1"}
	dir.memberships["alice/t1"] = domain.Membership{PrincipalID: "alice", TenantID: "t1", Role: domain.RoleEditor}
	past := testNow.Add(-time.Hour)
	dir.memberships["bob/t1"] = domain.Membership{PrincipalID: "bob", TenantID: "t1", Role: domain.RoleViewer, AccessExpiresAt: &past}
	p := testPipeline(dir)
	ctx := context.Background()

	t.Run("fails without resolvable tenant", func(t *testing.T) {
		_, fault := p.TenantAccess()(ctx, Context{Principal: member("alice"), Input: NoInput{}})
		requireFault(t, fault, domain.FaultForbidden)
	})

	t.Run("zero memberships means forbidden", func(t *testing.T) {
		_, fault := p.TenantAccess()(ctx, Context{Principal: member("stranger"), Input: TenantInput("t1")})
		requireFault(t, fault, domain.FaultForbidden)
	})

	t.Run("expired membership means access expired", func(t *testing.T) {
		_, fault := p.TenantAccess()(ctx, Context{Principal: member("bob"), Input: TenantInput("t1")})
		requireFault(t, fault, domain.FaultAccessExpired)
	})

	t.Run("active membership attaches resolved tenant and role", func(t *testing.T) {
		refined, fault := p.TenantAccess()(ctx, Context{Principal: member("alice"), Input: TenantInput("t1")})
		require.Nil(t, fault)
		require.Equal(t, "t1", refined.ResolvedTenantID)
		require.Equal(t, domain.RoleEditor, refined.ResolvedRole)
	})

	t.Run("platform admin bypasses membership", func(t *testing.T) {
		admin := &domain.Principal{ID: "root", GlobalRole: domain.GlobalRolePlatformAdmin}
		refined, fault := p.TenantAccess()(ctx, Context{Principal: admin, Input: TenantInput("t1")})
		require.Nil(t, fault)
		require.Equal(t, "t1", refined.ResolvedTenantID)
	})
}

// Scenario: a principal owns tenants created at t1<t2<t3 with maxClients=2.
// The two oldest stay reachable; the newest is seat-blocked.
func TestTenantAccessSeatLimit(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	base := testNow.Add(-24 * time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		created := base.Add(time.Duration(i) * time.Hour)
		dir.tenants[id] = domain.Tenant{ID: id, CreatedAt: created}
		dir.memberships["owner/"+id] = domain.Membership{PrincipalID: "owner", TenantID: id, Role: domain.RoleOwner}
		dir.owned["owner"] = append(dir.owned["owner"], domain.OwnedTenant{
			TenantID: id, TenantCreatedAt: created, Rank: int64(i),
		})
	}
	p := testPipeline(dir)
	ctx := context.Background()

	principal := member("owner")
	principal.MaxClients = 2

	for _, id := range []string{"first", "second"} {
		refined, fault := p.TenantAccess()(ctx, Context{Principal: principal, Input: TenantInput(id)})
		require.Nil(t, fault, "tenant %s should be within the seat cap", id)
		require.Equal(t, domain.RoleOwner, refined.ResolvedRole)
	}

	_, fault := p.TenantAccess()(ctx, Context{Principal: principal, Input: TenantInput("third")})
	requireFault(t, fault, domain.FaultForbidden)
}

func TestRequireEditor(t *testing.T) {
	t.Parallel()

	p := testPipeline(newFakeDirectory())
	ctx := context.Background()

	for _, role := range []domain.MembershipRole{domain.RoleOwner, domain.RoleAdmin, domain.RoleEditor} {
		_, fault := p.RequireEditor()(ctx, Context{ResolvedRole: role, Input: NoInput{}})
		require.Nil(t, fault, "role %s should pass", role)
	}

	for _, role := range []domain.MembershipRole{domain.RoleViewer, domain.RoleAuditor} {
		_, fault := p.RequireEditor()(ctx, Context{ResolvedRole: role, Input: NoInput{}})
		requireFault(t, fault, domain.FaultForbidden)
	}
}

func TestRequirePremium(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.tenants["free"] = domain.Tenant{ID: "free", Plan: domain.PlanFree}
	dir.tenants["pro"] = domain.Tenant{ID: "pro", Plan: domain.PlanPro}
	dir.tenants["ent"] = domain.Tenant{ID: "ent", Plan: domain.PlanEnterprise}
	ctx := context.Background()

	t.Run("free plan is rejected", func(t *testing.T) {
		p := testPipeline(dir)
		_, fault := p.RequirePremium()(ctx, Context{Principal: member("p"), ResolvedTenantID: "free", Input: NoInput{}})
		requireFault(t, fault, domain.FaultPlanRequired)
	})

	t.Run("pro and enterprise pass", func(t *testing.T) {
		p := testPipeline(dir)
		for _, id := range []string{"pro", "ent"} {
			refined, fault := p.RequirePremium()(ctx, Context{Principal: member("p"), ResolvedTenantID: id, Input: NoInput{}})
			require.Nil(t, fault)
			require.True(t, refined.Premium)
		}
	})

	t.Run("kill switch wins over plan", func(t *testing.T) {
		p := testPipeline(dir)
		p.PremiumDisabled = func() bool { return true }
		_, fault := p.RequirePremium()(ctx, Context{Principal: member("p"), ResolvedTenantID: "ent", Input: NoInput{}})
		requireFault(t, fault, domain.FaultFeatureDisabled)
	})

	t.Run("platform elevation bypasses plan and kill switch", func(t *testing.T) {
		p := testPipeline(dir)
		p.PremiumDisabled = func() bool { return true }
		admin := &domain.Principal{ID: "root", GlobalRole: domain.GlobalRolePlatformOwner}
		refined, fault := p.RequirePremium()(ctx, Context{Principal: admin, ResolvedTenantID: "free", Input: NoInput{}})
		require.Nil(t, fault)
		require.True(t, refined.Premium)
	})
}

func TestChainStopsAtFirstFault(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.tenants["strict"] = domain.Tenant{ID: "strict", RequireMFA: true}
	p := testPipeline(dir)
	ctx := context.Background()

	chain := Chain(p.Authenticated(), p.StepUpMFA(), p.TenantAccess())

	// Anonymous request fails at the first guard; the MFA guard never runs.
	_, fault := chain(ctx, Context{Input: TenantInput("strict")})
	requireFault(t, fault, domain.FaultUnauthenticated)

	// Authenticated but base assurance fails at the second guard.
	_, fault = chain(ctx, Context{Principal: member("p"), Assurance: domain.AssuranceBase, Input: TenantInput("strict")})
	requireFault(t, fault, domain.FaultStepUpRequired)
}

// Scenario D from the product requirements: requireMfa tenant, base
// assurance fails, elevated assurance proceeds through the same chain.
func TestStepUpScenario(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.tenants["strict"] = domain.Tenant{ID: "strict", RequireMFA: true}
	dir.memberships["alice/strict"] = domain.Membership{PrincipalID: "alice", TenantID: "strict", Role: domain.RoleAdmin}
	p := testPipeline(dir)
	ctx := context.Background()

	chain := Chain(p.Authenticated(), p.StepUpMFA(), p.TenantAccess())

	_, fault := chain(ctx, Context{Principal: member("alice"), Assurance: domain.AssuranceBase, Input: TenantInput("strict")})
	requireFault(t, fault, domain.FaultStepUpRequired)

	refined, fault := chain(ctx, Context{Principal: member("alice"), Assurance: domain.AssuranceElevated, Input: TenantInput("strict")})
	require.Nil(t, fault)
	require.Equal(t, domain.RoleAdmin, refined.ResolvedRole)
}
