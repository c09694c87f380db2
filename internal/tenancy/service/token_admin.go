package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/cryptox"
	"github.com/veridianhq/tenancy/pkg/idx"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

// TokenAdminService mints, revokes and lists credential tokens. Callers are
// gated upstream; this layer only validates the token parameters themselves.
type TokenAdminService struct {
	Store store.Store

	Now func() time.Time
}

func (s *TokenAdminService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// MintTokenParams carries everything an administrator may set on a token.
type MintTokenParams struct {
	Email    string
	TenantID string
	Role     domain.MembershipRole

	GrantGlobalRole   domain.GlobalRole
	GrantPlan         domain.PlanTier
	GrantMaxClients   int
	GrantSubscription domain.SubscriptionStatus

	UsageLimit *int
	ExpiresAt  *time.Time

	AccessDurationType domain.AccessDurationType
	AccessDurationDays int

	RestrictedDomains []string
	WaitlistLeadID    string
	CreatedBy         string
}

// MintToken creates a credential token and returns the raw secret exactly
// once, alongside the stored record. Only the fingerprint survives.
func (s *TokenAdminService) MintToken(ctx context.Context, params MintTokenParams) (string, domain.CredentialToken, *domain.Fault) {
	log := slogx.FromContext(ctx)
	now := s.now()

	// 1. Validate the parameter set before touching the store.
	if params.ExpiresAt != nil && !params.ExpiresAt.After(now) {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "expiresAt must be in the future")
	}
	if params.UsageLimit != nil && *params.UsageLimit <= 0 {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "usageLimit must be positive")
	}
	if params.TenantID != "" && !params.Role.Valid() {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "a tenant-scoped token requires a valid role")
	}
	if params.GrantGlobalRole != "" && !params.GrantGlobalRole.Valid() {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "unknown global role grant")
	}
	if params.GrantPlan != "" && !params.GrantPlan.Valid() {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "unknown plan grant")
	}
	if params.GrantSubscription != "" && !params.GrantSubscription.Valid() {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "unknown subscription grant")
	}

	durationType := params.AccessDurationType
	if durationType == "" {
		durationType = domain.DurationUnlimited
	}
	if durationType == domain.DurationLimited && params.AccessDurationDays <= 0 {
		return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "a limited-duration token requires accessDurationDays")
	}

	domains := make([]string, 0, len(params.RestrictedDomains))
	for _, d := range params.RestrictedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || strings.Contains(d, "@") || strings.Contains(d, " ") {
			return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "invalid restricted domain %q", d)
		}
		domains = append(domains, d)
	}

	// 2. Referenced records must exist at mint time.
	if params.TenantID != "" {
		if _, err := s.Store.Tenants().GetTenantByID(ctx, params.TenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", domain.CredentialToken{}, domain.Faultf(domain.FaultNotFound, "unknown tenant")
			}
			log.Error("tenant lookup failed", "tenant_id", params.TenantID, "err", err)
			return "", domain.CredentialToken{}, domain.Internalf("internal error")
		}
	}
	if params.WaitlistLeadID != "" {
		if params.TenantID != "" {
			return "", domain.CredentialToken{}, domain.Faultf(domain.FaultInvalidState, "a wait-list token cannot also target a tenant")
		}
		if _, err := s.Store.Leads().GetLeadByID(ctx, params.WaitlistLeadID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", domain.CredentialToken{}, domain.Faultf(domain.FaultNotFound, "unknown wait-list lead")
			}
			log.Error("lead lookup failed", "lead_id", params.WaitlistLeadID, "err", err)
			return "", domain.CredentialToken{}, domain.Internalf("internal error")
		}
	}

	// 3. Generate the secret and persist only its fingerprint.
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("token generation failed", "err", err)
		return "", domain.CredentialToken{}, domain.Internalf("internal error")
	}

	token := domain.CredentialToken{
		ID:                 idx.New().String(),
		Fingerprint:        cryptox.FingerprintToken(raw),
		Status:             domain.TokenActive,
		Email:              strings.ToLower(strings.TrimSpace(params.Email)),
		TenantID:           params.TenantID,
		Role:               params.Role,
		GrantGlobalRole:    params.GrantGlobalRole,
		GrantPlan:          params.GrantPlan,
		GrantMaxClients:    params.GrantMaxClients,
		GrantSubscription:  params.GrantSubscription,
		UsageLimit:         params.UsageLimit,
		ExpiresAt:          params.ExpiresAt,
		AccessDurationType: durationType,
		AccessDurationDays: params.AccessDurationDays,
		RestrictedDomains:  domains,
		WaitlistLeadID:     params.WaitlistLeadID,
		CreatedBy:          params.CreatedBy,
		CreatedAt:          now,
	}
	if err := s.Store.Tokens().CreateToken(ctx, token); err != nil {
		log.Error("token persistence failed", "err", err)
		return "", domain.CredentialToken{}, domain.Internalf("internal error")
	}

	log.Info("credential token minted",
		"token_id", token.ID,
		"tenant_id", token.TenantID,
		"created_by", token.CreatedBy,
	)
	return raw, token, nil
}

// RevokeToken moves an active token to revoked. Accepted and already
// revoked tokens are terminal and cannot be revoked again.
func (s *TokenAdminService) RevokeToken(ctx context.Context, tokenID string) *domain.Fault {
	log := slogx.FromContext(ctx)

	token, err := s.Store.Tokens().GetTokenByID(ctx, tokenID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Faultf(domain.FaultNotFound, "unknown token")
	}
	if err != nil {
		log.Error("token lookup failed", "token_id", tokenID, "err", err)
		return domain.Internalf("internal error")
	}

	if token.Status != domain.TokenActive {
		return domain.Faultf(domain.FaultInvalidState, "only active tokens can be revoked")
	}

	if err := s.Store.Tokens().SetTokenStatus(ctx, tokenID, domain.TokenRevoked); err != nil {
		log.Error("token revocation failed", "token_id", tokenID, "err", err)
		return domain.Internalf("internal error")
	}

	log.Info("credential token revoked", "token_id", tokenID)
	return nil
}

// ListTokens returns tokens, optionally filtered to one tenant.
func (s *TokenAdminService) ListTokens(ctx context.Context, tenantID string) ([]domain.CredentialToken, *domain.Fault) {
	tokens, err := s.Store.Tokens().ListTokens(ctx, tenantID)
	if err != nil {
		slogx.FromContext(ctx).Error("token listing failed", "err", err)
		return nil, domain.Internalf("internal error")
	}
	return tokens, nil
}

// CreateLead records a wait-list signup so a wait-list credential token can
// reference it. Leads normally arrive through the marketing-site importer;
// this is the administrative path.
func (s *TokenAdminService) CreateLead(ctx context.Context, email, company string) (domain.WaitlistLead, *domain.Fault) {
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.WaitlistLead{}, domain.Faultf(domain.FaultInvalidState, "a lead requires a valid email")
	}

	lead := domain.WaitlistLead{
		ID:        idx.New().String(),
		Email:     email,
		Company:   strings.TrimSpace(company),
		CreatedAt: s.now(),
	}
	if err := s.Store.Leads().CreateLead(ctx, lead); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.WaitlistLead{}, domain.Faultf(domain.FaultAlreadyExists, "a lead with that email already exists")
		}
		log.Error("lead persistence failed", "err", err)
		return domain.WaitlistLead{}, domain.Internalf("internal error")
	}

	log.Info("wait-list lead recorded", "lead_id", lead.ID)
	return lead, nil
}

// Redemptions returns the ledger entries recorded against one token.
func (s *TokenAdminService) Redemptions(ctx context.Context, tokenID string) ([]domain.RedemptionLedgerEntry, *domain.Fault) {
	log := slogx.FromContext(ctx)

	if _, err := s.Store.Tokens().GetTokenByID(ctx, tokenID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Faultf(domain.FaultNotFound, "unknown token")
		}
		log.Error("token lookup failed", "token_id", tokenID, "err", err)
		return nil, domain.Internalf("internal error")
	}

	entries, err := s.Store.Ledger().ListEntriesByToken(ctx, tokenID)
	if err != nil {
		log.Error("ledger listing failed", "token_id", tokenID, "err", err)
		return nil, domain.Internalf("internal error")
	}
	return entries, nil
}
