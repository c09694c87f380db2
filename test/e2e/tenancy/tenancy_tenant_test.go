package tenancy_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

// TestWaitlistProvisioningAndTenantAccess walks the wait-list path:
// 1. Admin records a lead and mints a wait-list token
// 2. Anonymous signup redemption provisions a tenant named after the lead
// 3. The owner can read the tenant; strangers and anonymous callers cannot
func TestWaitlistProvisioningAndTenantAccess(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	owner, tenant := provisionTenant(t, client, admin, "owner@initech.com", "Initech", "Initech123!pass")

	t.Logf("Tenant provisioned: %s (%s)", tenant.Name, tenant.ID)

	got, err := owner.GetTenant(t.Context(), tenant.ID)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, got.ID)
	require.Equal(t, "Initech", got.Name)
	require.Equal(t, "owner", got.Role, "Provisioning should enroll the redeemer as owner")

	// Wait-list provisioning must not elevate the owner's global role.
	profile, err := owner.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "member", profile.GlobalRole)
	require.Contains(t, profile.AllowedTenants, tenant.ID)

	// A principal without a membership is refused.
	strangerToken := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{})
	redeemSignup(t, client, strangerToken, "stranger@example.com", "Stranger", "Stranger123!pass")
	stranger := loginAs(t, client, "stranger@example.com", "Stranger123!pass")

	_, err = stranger.GetTenant(t.Context(), tenant.ID)
	assertAPIError(t, err, http.StatusForbidden, "FORBIDDEN")

	// Anonymous callers never reach the membership check.
	_, err = client.GetTenant(t.Context(), tenant.ID)
	assertAPIError(t, err, http.StatusUnauthorized, "UNAUTHENTICATED")

	// Platform-elevated principals bypass membership entirely.
	_, err = admin.GetTenant(t.Context(), tenant.ID)
	require.NoError(t, err)
}

// TestTenantMembershipInvitation covers tenant-scoped tokens redeemed by an
// authenticated principal: the grant enrolls them at the token's role.
func TestTenantMembershipInvitation(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	_, tenant := provisionTenant(t, client, admin, "owner@globex.com", "Globex", "Globex123!pass")

	// Create the invitee and a viewer invitation scoped to the tenant.
	signupToken := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{})
	redeemSignup(t, client, signupToken, "auditor@example.com", "Auditor", "Auditor123!pass")
	invitee := loginAs(t, client, "auditor@example.com", "Auditor123!pass")

	inviteToken := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{
		TenantID: tenant.ID,
		Role:     "viewer",
	})

	resp, err := invitee.Redeem(t.Context(), inviteToken)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, resp.TenantID)
	require.Nil(t, resp.ProvisionedTenant, "A tenant-scoped grant provisions nothing")

	got, err := invitee.GetTenant(t.Context(), tenant.ID)
	require.NoError(t, err)
	require.Equal(t, "viewer", got.Role)

	// Viewers are read-only; the premium export is a mutating operation.
	_, err = invitee.RequestArchiveExport(t.Context(), tenant.ID)
	assertAPIError(t, err, http.StatusForbidden, "FORBIDDEN")

	// The ledger rejects a second redemption by the same principal.
	_, err = invitee.Redeem(t.Context(), inviteToken)
	assertAPIError(t, err, http.StatusConflict, "ALREADY_REDEEMED")
}

// TestOwnerSeatLimit verifies the seat allocator: an owner of more tenants
// than their cap can only act on the oldest ones.
func TestOwnerSeatLimit(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	// First tenant arrives through anonymous signup.
	owner, first := provisionTenant(t, client, admin, "serial@founder.com", "First Co", "Serial123!pass")

	// Two more through authenticated wait-list redemptions.
	var tenantIDs []string
	tenantIDs = append(tenantIDs, first.ID)
	for i, company := range []string{"Second Co", "Third Co"} {
		lead, err := admin.CreateLead(t.Context(), tenancysdk.CreateLeadRequest{
			Email:   fmt.Sprintf("lead%d@leads.example.com", i),
			Company: company,
		})
		require.NoError(t, err)

		token := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{
			WaitlistLeadID: lead.ID,
		})

		resp, err := owner.Redeem(t.Context(), token)
		require.NoError(t, err)
		require.NotNil(t, resp.ProvisionedTenant)
		tenantIDs = append(tenantIDs, resp.ProvisionedTenant.ID)
	}

	// The default cap is two seats: the two oldest tenants stay allowed.
	profile, err := owner.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, tenantIDs[:2], profile.AllowedTenants, "Seats go to the oldest tenants in order")

	_, err = owner.GetTenant(t.Context(), tenantIDs[0])
	require.NoError(t, err)
	_, err = owner.GetTenant(t.Context(), tenantIDs[1])
	require.NoError(t, err)

	_, err = owner.GetTenant(t.Context(), tenantIDs[2])
	assertAPIError(t, err, http.StatusForbidden, "FORBIDDEN")
}

// TestArchiveExportPlanGate verifies the premium gate on archive exports.
func TestArchiveExportPlanGate(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	// Free tenant: the owner is refused with a payment error.
	freeOwner, freeTenant := provisionTenant(t, client, admin, "owner@freeco.com", "Free Co", "FreeCo123!pass")

	_, err := freeOwner.RequestArchiveExport(t.Context(), freeTenant.ID)
	assertAPIError(t, err, http.StatusPaymentRequired, "PLAN_REQUIRED")

	// Premium tenant: the wait-list token's plan grant carries to the
	// provisioned tenant, so the export queues.
	lead, err := admin.CreateLead(t.Context(), tenancysdk.CreateLeadRequest{
		Email:   "owner@proco.com",
		Company: "Pro Co",
	})
	require.NoError(t, err)

	token := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{
		WaitlistLeadID: lead.ID,
		GrantPlan:      "pro",
	})
	resp := redeemSignup(t, client, token, "owner@proco.com", "Pro Owner", "ProCo123!pass")
	require.NotNil(t, resp.ProvisionedTenant)
	require.Equal(t, "pro", resp.ProvisionedTenant.Plan)

	proOwner := loginAs(t, client, "owner@proco.com", "ProCo123!pass")

	export, err := proOwner.RequestArchiveExport(t.Context(), resp.ProvisionedTenant.ID)
	require.NoError(t, err)
	require.Equal(t, "queued", export.Status)
	require.Equal(t, resp.ProvisionedTenant.ID, export.TenantID)
}
