package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/internal/tenancy/store/drivers/sqlite"
	"github.com/veridianhq/tenancy/pkg/cryptox"
	"github.com/veridianhq/tenancy/pkg/idx"
)

func newStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedPrincipal(t *testing.T, st store.Store, email string) domain.Principal {
	t.Helper()

	hash, err := cryptox.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	p := domain.Principal{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test Principal",
		PasswordHash: hash,
		GlobalRole:   domain.GlobalRoleMember,
		Plan:         domain.PlanFree,
		Subscription: domain.SubscriptionNone,
	}
	require.NoError(t, st.Principals().CreatePrincipal(context.Background(), p))
	return p
}

func mintTestToken(t *testing.T, st store.Store, params MintTokenParams) (string, domain.CredentialToken) {
	t.Helper()

	admin := &TokenAdminService{Store: st}
	raw, token, fault := admin.MintToken(context.Background(), params)
	require.Nil(t, fault)
	return raw, token
}

func TestRedeemValidationOrder(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := &RedemptionService{Store: st}

	t.Run("unknown token", func(t *testing.T) {
		_, fault := svc.RedeemSignup(ctx, "no-such-token", "a@b.com", "A", "pw-long-enough")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultNotFound, fault.Kind)
	})

	t.Run("revoked token reports invalid state", func(t *testing.T) {
		raw, token := mintTestToken(t, st, MintTokenParams{ExpiresAt: ptr(time.Now().Add(time.Minute))})
		require.NoError(t, st.Tokens().SetTokenStatus(ctx, token.ID, domain.TokenRevoked))

		_, fault := svc.RedeemSignup(ctx, raw, "a@b.com", "A", "pw-long-enough")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultInvalidState, fault.Kind)
	})

	t.Run("expired token", func(t *testing.T) {
		raw, _ := mintTestToken(t, st, MintTokenParams{ExpiresAt: ptr(time.Now().Add(50 * time.Millisecond))})
		time.Sleep(80 * time.Millisecond)

		_, fault := svc.RedeemSignup(ctx, raw, "a@b.com", "A", "pw-long-enough")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultExpired, fault.Kind)
	})

	t.Run("domain restriction", func(t *testing.T) {
		raw, _ := mintTestToken(t, st, MintTokenParams{RestrictedDomains: []string{"acme.com"}})

		_, fault := svc.RedeemSignup(ctx, raw, "mallory@evil.com", "M", "pw-long-enough")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultDomainForbidden, fault.Kind)
	})

	t.Run("existing account must use the authenticated flow", func(t *testing.T) {
		seedPrincipal(t, st, "existing@example.com")
		raw, _ := mintTestToken(t, st, MintTokenParams{})

		_, fault := svc.RedeemSignup(ctx, raw, "existing@example.com", "E", "pw-long-enough")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultAlreadyExists, fault.Kind)
	})
}

func TestRedeemSignupTenantInvitation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := &RedemptionService{Store: st}

	require.NoError(t, st.Tenants().CreateTenant(ctx, domain.Tenant{
		ID: "acme", Name: "Acme", Plan: domain.PlanPro,
	}))

	limit := 1
	raw, token := mintTestToken(t, st, MintTokenParams{
		TenantID:          "acme",
		Role:              domain.RoleViewer,
		UsageLimit:        &limit,
		RestrictedDomains: []string{"acme.com"},
	})

	result, fault := svc.RedeemSignup(ctx, raw, "eve@acme.com", "Eve", "pw-long-enough")
	require.Nil(t, fault)
	require.Equal(t, "acme", result.TenantID)
	require.Nil(t, result.Provisioned)

	// Principal exists with a viewer membership and no platform elevation.
	p, err := st.Principals().GetPrincipalByEmail(ctx, "eve@acme.com")
	require.NoError(t, err)
	require.Equal(t, domain.GlobalRoleMember, p.GlobalRole)

	m, err := st.Memberships().GetMembership(ctx, p.ID, "acme")
	require.NoError(t, err)
	require.Equal(t, domain.RoleViewer, m.Role)
	require.Nil(t, m.AccessExpiresAt)

	// The single use is consumed and the token flipped to accepted.
	got, err := st.Tokens().GetTokenByID(ctx, token.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TokenAccepted, got.Status)
	require.Equal(t, 1, got.UseCount)

	// A second signup attempt fails on lifecycle state.
	_, fault = svc.RedeemSignup(ctx, raw, "second@acme.com", "S", "pw-long-enough")
	require.NotNil(t, fault)
	require.Equal(t, domain.FaultInvalidState, fault.Kind)
}

func TestRedeemWaitlistProvisionsTenantWithoutElevation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := &RedemptionService{Store: st}

	lead := domain.WaitlistLead{
		ID:      idx.New().String(),
		Email:   "founder@startup.io",
		Company: "Startup Industries",
	}
	require.NoError(t, st.Leads().CreateLead(ctx, lead))

	raw, _ := mintTestToken(t, st, MintTokenParams{
		Email:          "founder@startup.io",
		WaitlistLeadID: lead.ID,
		GrantPlan:      domain.PlanPro,
		// A hostile grant that must be ignored on the wait-list path.
		GrantGlobalRole: domain.GlobalRolePlatformAdmin,
	})

	result, fault := svc.RedeemSignup(ctx, raw, "ignored@other.com", "Founder", "pw-long-enough")
	require.Nil(t, fault)
	require.NotNil(t, result.Provisioned)
	require.Equal(t, "Startup Industries", result.Provisioned.Name)
	require.Equal(t, domain.PlanPro, result.Provisioned.Plan)

	// The bound email wins over the caller-supplied one.
	p, err := st.Principals().GetPrincipalByEmail(ctx, "founder@startup.io")
	require.NoError(t, err)
	require.Equal(t, domain.GlobalRoleMember, p.GlobalRole)

	m, err := st.Memberships().GetMembership(ctx, p.ID, result.Provisioned.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, m.Role)
}

func TestRedeemAuthenticatedPlatformGrant(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &RedemptionService{Store: st, Now: func() time.Time { return base }}

	principal := seedPrincipal(t, st, "member@example.com")

	raw, token := mintTestToken(t, st, MintTokenParams{
		GrantPlan:          domain.PlanEnterprise,
		GrantMaxClients:    5,
		GrantSubscription:  domain.SubscriptionActive,
		AccessDurationType: domain.DurationLimited,
		AccessDurationDays: 30,
	})

	result, fault := svc.Redeem(ctx, raw, principal.ID)
	require.Nil(t, fault)
	require.Equal(t, domain.PlanEnterprise, result.Principal.Plan)
	require.Equal(t, 5, result.Principal.MaxClients)
	// An empty role grant keeps the current role.
	require.Equal(t, domain.GlobalRoleMember, result.Principal.GlobalRole)

	got, err := st.Principals().GetPrincipalByID(ctx, principal.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AccessExpiresAt)
	require.WithinDuration(t, base.AddDate(0, 0, 30), *got.AccessExpiresAt, time.Second)

	// Access is live 29 days in and void 31 days in.
	require.False(t, got.AccessExpired(base.AddDate(0, 0, 29)))
	require.True(t, got.AccessExpired(base.AddDate(0, 0, 31)))

	// Second redemption by the same principal hits the ledger.
	_, fault = svc.Redeem(ctx, raw, principal.ID)
	require.NotNil(t, fault)
	require.Equal(t, domain.FaultAlreadyRedeemed, fault.Kind)

	entries, err := st.Ledger().ListEntriesByToken(ctx, token.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRedeemBoundEmailMismatch(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := &RedemptionService{Store: st}

	principal := seedPrincipal(t, st, "alice@example.com")
	raw, _ := mintTestToken(t, st, MintTokenParams{Email: "bob@example.com"})

	_, fault := svc.Redeem(ctx, raw, principal.ID)
	require.NotNil(t, fault)
	require.Equal(t, domain.FaultForbidden, fault.Kind)
}

func TestRedeemUsageLimitExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := &RedemptionService{Store: st}

	limit := 1
	raw, _ := mintTestToken(t, st, MintTokenParams{
		GrantPlan:  domain.PlanPro,
		UsageLimit: &limit,
	})

	principals := make([]domain.Principal, 5)
	for i := range principals {
		principals[i] = seedPrincipal(t, st, fmt.Sprintf("user%d@example.com", i))
	}

	successes := 0
	for _, p := range principals {
		if _, fault := svc.Redeem(ctx, raw, p.ID); fault == nil {
			successes++
		} else {
			require.Contains(t,
				[]domain.FaultKind{domain.FaultInvalidState, domain.FaultExhausted},
				fault.Kind,
			)
		}
	}
	require.Equal(t, 1, successes)
}

func ptr[T any](v T) *T { return &v }
