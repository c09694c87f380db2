package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/notify"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/cryptox"
	"github.com/veridianhq/tenancy/pkg/idx"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

// RedemptionService turns an active credential token into principal and
// tenant state changes exactly once per (token, principal) pair, and at
// most usageLimit times in total. Two entry points share one validation and
// effect pipeline: RedeemSignup for callers without an account and Redeem
// for authenticated callers.
type RedemptionService struct {
	Store    store.Store
	Notifier notify.Notifier

	// Now defaults to time.Now; injected in tests.
	Now func() time.Time
}

// RedemptionResult reports what a successful redemption changed.
type RedemptionResult struct {
	Principal domain.Principal

	// TenantID is the tenant the grant touched: the token's target tenant
	// or the freshly provisioned one.
	TenantID string

	// Provisioned is non-nil when a wait-list redemption created a tenant.
	Provisioned *domain.Tenant
}

func (s *RedemptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RedeemSignup is the anonymous entry point: the caller has no principal
// yet and one may be created. When the token carries a bound email the
// caller's email input is ignored in favour of the binding.
func (s *RedemptionService) RedeemSignup(
	ctx context.Context,
	rawToken, email, name, password string,
) (RedemptionResult, *domain.Fault) {
	log := slogx.FromContext(ctx)
	now := s.now()

	token, fault := s.lookupToken(ctx, rawToken, now)
	if fault != nil {
		return RedemptionResult{}, fault
	}

	// Resolve the redeeming email: the token's binding wins; otherwise
	// the caller must supply one.
	if token.Email != "" {
		email = token.Email
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return RedemptionResult{}, domain.Faultf(domain.FaultInvalidState, "this token requires an email address")
	}

	if !token.DomainAllowed(email) {
		log.Warn("redemption blocked by domain restriction", "token_id", token.ID)
		return RedemptionResult{}, domain.Faultf(domain.FaultDomainForbidden, "email domain is not permitted for this token")
	}

	// An existing account must sign in and use the authenticated flow, so
	// its redemption lands in the ledger under the right principal.
	_, err := s.Store.Principals().GetPrincipalByEmail(ctx, email)
	if err == nil {
		return RedemptionResult{}, domain.Faultf(domain.FaultAlreadyExists, "an account with this email already exists; sign in to redeem")
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("principal lookup failed", "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}

	passwordHash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Error("password hashing failed", "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}

	principal := domain.Principal{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		GlobalRole:   domain.GlobalRoleMember,
		Plan:         domain.PlanFree,
		Subscription: domain.SubscriptionNone,
	}

	var result RedemptionResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, principal); err != nil {
			return err
		}
		var fault *domain.Fault
		result, fault = s.apply(ctx, tx, token, principal, now)
		if fault != nil {
			return fault
		}
		return nil
	})
	if err != nil {
		return RedemptionResult{}, s.mapTxFailure(ctx, err)
	}

	log.Info("signup redemption complete",
		slog.String("token_id", token.ID),
		slog.String("principal_id", principal.ID),
		slog.String("tenant_id", result.TenantID),
	)

	notify.Send(ctx, s.Notifier, log, notify.Event{
		Kind:      "redemption_complete",
		Recipient: email,
		Fields:    map[string]string{"tenant_id": result.TenantID},
	})

	return result, nil
}

// Redeem is the authenticated entry point: the token mutates the calling
// principal's or a tenant's state. The redemption ledger makes the call
// idempotent-by-rejection: a second attempt fails ALREADY_REDEEMED.
func (s *RedemptionService) Redeem(
	ctx context.Context,
	rawToken, principalID string,
) (RedemptionResult, *domain.Fault) {
	log := slogx.FromContext(ctx)
	now := s.now()

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return RedemptionResult{}, domain.Faultf(domain.FaultUnauthenticated, "authentication required")
	}
	if err != nil {
		log.Error("principal lookup failed", "principal_id", principalID, "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}

	token, fault := s.lookupToken(ctx, rawToken, now)
	if fault != nil {
		return RedemptionResult{}, fault
	}

	// A bound email scopes the token to one account.
	if token.Email != "" && !strings.EqualFold(token.Email, principal.Email) {
		log.Warn("redemption attempted against a token bound to another email", "token_id", token.ID)
		return RedemptionResult{}, domain.Faultf(domain.FaultForbidden, "this token was issued to a different account")
	}

	if !token.DomainAllowed(principal.Email) {
		return RedemptionResult{}, domain.Faultf(domain.FaultDomainForbidden, "email domain is not permitted for this token")
	}

	redeemed, err := s.Store.Ledger().HasEntry(ctx, token.ID, principal.ID)
	if err != nil {
		log.Error("ledger lookup failed", "token_id", token.ID, "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}
	if redeemed {
		return RedemptionResult{}, domain.Faultf(domain.FaultAlreadyRedeemed, "this token has already been redeemed by this account")
	}

	var result RedemptionResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var fault *domain.Fault
		result, fault = s.apply(ctx, tx, token, principal, now)
		if fault != nil {
			return fault
		}
		return nil
	})
	if err != nil {
		return RedemptionResult{}, s.mapTxFailure(ctx, err)
	}

	log.Info("redemption complete",
		slog.String("token_id", token.ID),
		slog.String("principal_id", principal.ID),
		slog.String("tenant_id", result.TenantID),
	)

	notify.Send(ctx, s.Notifier, log, notify.Event{
		Kind:      "redemption_complete",
		Recipient: principal.Email,
		Fields:    map[string]string{"tenant_id": result.TenantID},
	})

	return result, nil
}

// lookupToken runs validation steps 1-4: existence, lifecycle state, expiry
// and exhaustion, each producing its own fault. Detecting exhaustion at the
// limit flips the token to accepted so later lookups short-circuit on state.
func (s *RedemptionService) lookupToken(
	ctx context.Context,
	rawToken string,
	now time.Time,
) (domain.CredentialToken, *domain.Fault) {
	log := slogx.FromContext(ctx)

	token, err := s.Store.Tokens().GetTokenByFingerprint(ctx, cryptox.FingerprintToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return domain.CredentialToken{}, domain.Faultf(domain.FaultNotFound, "unknown token")
	}
	if err != nil {
		log.Error("token lookup failed", "err", err)
		return domain.CredentialToken{}, domain.Internalf("internal error")
	}

	if token.Status != domain.TokenActive {
		return domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "token is no longer active")
	}

	if token.Expired(now) {
		return domain.CredentialToken{}, domain.Faultf(domain.FaultExpired, "token has expired")
	}

	if token.Exhausted() {
		if err := s.Store.Tokens().SetTokenStatus(ctx, token.ID, domain.TokenAccepted); err != nil {
			log.Error("failed to mark exhausted token accepted", "token_id", token.ID, "err", err)
		}
		return domain.CredentialToken{}, domain.Faultf(domain.FaultExhausted, "token usage limit reached")
	}

	return token, nil
}

// apply runs the shared effect pipeline inside tx. The conditional
// use-count increment is first: two racing redemptions at the usage
// boundary serialize there, and the loser observes zero affected rows.
func (s *RedemptionService) apply(
	ctx context.Context,
	tx store.Tx,
	token domain.CredentialToken,
	principal domain.Principal,
	now time.Time,
) (RedemptionResult, *domain.Fault) {
	log := slogx.FromContext(ctx)

	consumed, err := tx.Tokens().ConsumeTokenUse(ctx, token.ID)
	if err != nil {
		log.Error("token consume failed", "token_id", token.ID, "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}
	if !consumed {
		// Lost the race: someone else took the last use, revoked the
		// token, or flipped it accepted between our read and this write.
		return RedemptionResult{}, s.concurrentConsumeFault(ctx, tx, token.ID)
	}

	accessExpiresAt := token.AccessExpiry(now)
	result := RedemptionResult{Principal: principal}

	switch {
	case token.TenantID != "":
		if _, err := tx.Tenants().GetTenantByID(ctx, token.TenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return RedemptionResult{}, domain.Faultf(domain.FaultNotFound, "token targets a tenant that no longer exists")
			}
			log.Error("tenant lookup failed", "tenant_id", token.TenantID, "err", err)
			return RedemptionResult{}, domain.Internalf("internal error")
		}
		if err := tx.Memberships().UpsertMembership(ctx, domain.Membership{
			PrincipalID:     principal.ID,
			TenantID:        token.TenantID,
			Role:            token.Role,
			AccessExpiresAt: accessExpiresAt,
			JoinedAt:        now,
		}); err != nil {
			log.Error("membership upsert failed", "tenant_id", token.TenantID, "err", err)
			return RedemptionResult{}, domain.Internalf("internal error")
		}
		result.TenantID = token.TenantID

	case token.WaitlistLeadID != "":
		tenant, fault := s.provisionWaitlistTenant(ctx, tx, token, principal, accessExpiresAt, now)
		if fault != nil {
			return RedemptionResult{}, fault
		}
		result.TenantID = tenant.ID
		result.Provisioned = &tenant

	default:
		// Platform scope: apply the stored grants to the principal
		// directly. Empty grant fields keep the current values.
		if fault := s.applyPlatformGrant(ctx, tx, token, &principal, accessExpiresAt); fault != nil {
			return RedemptionResult{}, fault
		}
		result.Principal = principal
	}

	if err := tx.Ledger().AppendEntry(ctx, domain.RedemptionLedgerEntry{
		TokenID:     token.ID,
		PrincipalID: principal.ID,
		RedeemedAt:  now,
	}); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RedemptionResult{}, domain.Faultf(domain.FaultAlreadyRedeemed, "this token has already been redeemed by this account")
		}
		log.Error("ledger append failed", "token_id", token.ID, "err", err)
		return RedemptionResult{}, domain.Internalf("internal error")
	}

	return result, nil
}

// provisionWaitlistTenant creates a fresh tenant for a wait-list-origin
// token and enrolls the principal as its owner. The token's global-role
// grant is ignored here: an open acquisition channel must never
// hand out platform-wide privilege.
func (s *RedemptionService) provisionWaitlistTenant(
	ctx context.Context,
	tx store.Tx,
	token domain.CredentialToken,
	principal domain.Principal,
	accessExpiresAt *time.Time,
	now time.Time,
) (domain.Tenant, *domain.Fault) {
	log := slogx.FromContext(ctx)

	name := principal.Name
	lead, err := tx.Leads().GetLeadByID(ctx, token.WaitlistLeadID)
	switch {
	case err == nil:
		name = lead.TenantName(principal.Name)
	case errors.Is(err, store.ErrNotFound):
		// Lead purged since the token was minted; fall back to the
		// principal's name.
	default:
		log.Error("lead lookup failed", "lead_id", token.WaitlistLeadID, "err", err)
		return domain.Tenant{}, domain.Internalf("internal error")
	}
	if name == "" {
		name = principal.Email
	}

	plan := token.GrantPlan
	if !plan.Valid() {
		plan = domain.PlanFree
	}

	tenant := domain.Tenant{
		ID:        idx.New().String(),
		Name:      name,
		Plan:      plan,
		CreatedAt: now,
	}
	if err := tx.Tenants().CreateTenant(ctx, tenant); err != nil {
		log.Error("tenant provisioning failed", "err", err)
		return domain.Tenant{}, domain.Internalf("internal error")
	}

	if err := tx.Memberships().UpsertMembership(ctx, domain.Membership{
		PrincipalID:     principal.ID,
		TenantID:        tenant.ID,
		Role:            domain.RoleOwner,
		AccessExpiresAt: accessExpiresAt,
		JoinedAt:        now,
	}); err != nil {
		log.Error("owner enrollment failed", "tenant_id", tenant.ID, "err", err)
		return domain.Tenant{}, domain.Internalf("internal error")
	}

	return tenant, nil
}

func (s *RedemptionService) applyPlatformGrant(
	ctx context.Context,
	tx store.Tx,
	token domain.CredentialToken,
	principal *domain.Principal,
	accessExpiresAt *time.Time,
) *domain.Fault {
	log := slogx.FromContext(ctx)

	role := token.GrantGlobalRole
	if !role.Valid() {
		role = principal.GlobalRole
	}
	plan := token.GrantPlan
	if !plan.Valid() {
		plan = principal.Plan
	}
	maxClients := token.GrantMaxClients
	if maxClients <= 0 {
		maxClients = principal.MaxClients
	}
	sub := token.GrantSubscription
	if !sub.Valid() {
		sub = principal.Subscription
	}

	if err := tx.Principals().ApplyPlatformGrant(ctx, principal.ID, role, plan, maxClients, sub); err != nil {
		log.Error("platform grant failed", "principal_id", principal.ID, "err", err)
		return domain.Internalf("internal error")
	}
	if err := tx.Principals().SetAccessExpiry(ctx, principal.ID, accessExpiresAt); err != nil {
		log.Error("access expiry update failed", "principal_id", principal.ID, "err", err)
		return domain.Internalf("internal error")
	}

	principal.GlobalRole = role
	principal.Plan = plan
	principal.MaxClients = maxClients
	principal.Subscription = sub
	principal.AccessExpiresAt = accessExpiresAt
	return nil
}

// concurrentConsumeFault re-reads the token to report the precise reason a
// conditional consume matched zero rows, flipping status to accepted when
// the race exhausted the limit.
func (s *RedemptionService) concurrentConsumeFault(ctx context.Context, tx store.Tx, tokenID string) *domain.Fault {
	log := slogx.FromContext(ctx)

	token, err := tx.Tokens().GetTokenByID(ctx, tokenID)
	if err != nil {
		log.Error("token re-read failed after consume race", "token_id", tokenID, "err", err)
		return domain.Internalf("internal error")
	}
	if token.Status != domain.TokenActive {
		return domain.Faultf(domain.FaultInvalidState, "token is no longer active")
	}
	if token.Exhausted() {
		if err := tx.Tokens().SetTokenStatus(ctx, token.ID, domain.TokenAccepted); err != nil {
			log.Error("failed to mark exhausted token accepted", "token_id", token.ID, "err", err)
		}
		return domain.Faultf(domain.FaultExhausted, "token usage limit reached")
	}
	return domain.Internalf("internal error")
}

// mapTxFailure converts a WithTx error back into the fault that aborted
// it, or an opaque INTERNAL fault for everything else.
func (s *RedemptionService) mapTxFailure(ctx context.Context, err error) *domain.Fault {
	var fault *domain.Fault
	if errors.As(err, &fault) {
		return fault
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		// Unique-constraint backstop on (token, principal) or email.
		return domain.Faultf(domain.FaultAlreadyRedeemed, "this token has already been redeemed by this account")
	}
	slogx.FromContext(ctx).Error("redemption transaction failed", "err", err)
	return domain.Internalf("internal error")
}
