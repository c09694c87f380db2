// Package store defines the persistence contracts for the tenancy service.
// Concrete drivers live under drivers/. The guard pipeline and the
// redemption engine only ever see these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. It exposes sub-repositories to
// keep concerns tidy and testable, and a WithTx wrapper for the multi-step
// operations that must be atomic (redemption effects in particular).
type Store interface {
	Principals() Principals
	Tenants() Tenants
	Memberships() Memberships
	Tokens() CredentialTokens
	Ledger() RedemptionLedger
	Leads() WaitlistLeads
	Challenges() StepUpChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn
	// returns an error and committing otherwise. This is the recommended
	// way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Principals interface {
	// GetPrincipalByID returns a principal by id. Soft-deleted rows are
	// invisible here and everywhere else.
	GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// GetPrincipalByEmail looks up by lowercase email.
	GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error)

	// CreatePrincipal inserts a new principal (id via ULID). Returns
	// ErrAlreadyExists on an email collision.
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// ApplyPlatformGrant elevates global role, plan, seat cap and
	// subscription status in one update. Used by platform-scope token
	// redemption and admin actions.
	ApplyPlatformGrant(ctx context.Context, principalID string, role domain.GlobalRole,
		plan domain.PlanTier, maxClients int, sub domain.SubscriptionStatus) error

	// SetAccessExpiry updates the principal's own access window.
	SetAccessExpiry(ctx context.Context, principalID string, expiresAt *time.Time) error

	// UpdateTOTPSecret stores an enrolled-but-unverified TOTP secret.
	UpdateTOTPSecret(ctx context.Context, principalID string, secret string) error

	// EnableMFA marks TOTP enrollment as verified.
	EnableMFA(ctx context.Context, principalID string) error

	// SoftDeletePrincipal marks the row deleted. Principals are never
	// hard-deleted.
	SoftDeletePrincipal(ctx context.Context, principalID string) error

	// IsEmpty reports whether any (non-deleted) principals exist. Used by
	// first-run bootstrap.
	IsEmpty(ctx context.Context) (bool, error)
}

type Tenants interface {
	GetTenantByID(ctx context.Context, id string) (domain.Tenant, error)
	CreateTenant(ctx context.Context, t domain.Tenant) error
	SetTenantPlan(ctx context.Context, tenantID string, plan domain.PlanTier) error
	SetTenantRequireMFA(ctx context.Context, tenantID string, require bool) error
}

type Memberships interface {
	// GetMembership fetches the unique (principal, tenant) row.
	GetMembership(ctx context.Context, principalID, tenantID string) (domain.Membership, error)

	// UpsertMembership creates the membership or updates role and access
	// expiry on the existing row. Redemption and admin assignment both go
	// through here.
	UpsertMembership(ctx context.Context, m domain.Membership) error

	DeleteMembership(ctx context.Context, principalID, tenantID string) error

	// ListOwnedTenants returns the tenants where the principal holds an
	// owner membership, ordered ascending by tenant creation time with
	// insertion order as the tiebreak. The seat allocator depends on this
	// exact ordering.
	ListOwnedTenants(ctx context.Context, principalID string) ([]domain.OwnedTenant, error)

	// ListMemberships returns all memberships for a principal.
	ListMemberships(ctx context.Context, principalID string) ([]domain.Membership, error)

	// AnyTenantRequiresMFA reports whether any tenant the principal
	// belongs to has requireMfa set. StepUpMFA's fallback predicate.
	AnyTenantRequiresMFA(ctx context.Context, principalID string) (bool, error)
}

type CredentialTokens interface {
	// CreateToken writes a new token (fingerprint is SHA-256 of the
	// opaque value; the raw value is never stored).
	CreateToken(ctx context.Context, t domain.CredentialToken) error

	GetTokenByID(ctx context.Context, id string) (domain.CredentialToken, error)
	GetTokenByFingerprint(ctx context.Context, fingerprint string) (domain.CredentialToken, error)

	// ListTokens returns tokens newest first, filtered to one tenant when
	// tenantID is non-empty.
	ListTokens(ctx context.Context, tenantID string) ([]domain.CredentialToken, error)

	// SetTokenStatus flips lifecycle state (revocation, exhaustion).
	SetTokenStatus(ctx context.Context, tokenID string, status domain.TokenStatus) error

	// ConsumeTokenUse atomically increments use_count, guarded by
	// "status = active AND (usage_limit IS NULL OR use_count <
	// usage_limit)", and flips status to accepted when the increment
	// reaches the limit. Returns false when the guard did not match,
	// observed via affected row count. This is the race-free boundary for
	// concurrent redemptions.
	ConsumeTokenUse(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpiredTokens removes tokens whose expires_at passed more
	// than grace ago, returning the number removed. Housekeeping.
	DeleteExpiredTokens(ctx context.Context, grace time.Duration) (int64, error)
}

type RedemptionLedger interface {
	// AppendEntry records that a principal consumed a token. Returns
	// ErrAlreadyExists when an entry for (token, principal) exists; the
	// database uniqueness constraint is the idempotency backstop.
	AppendEntry(ctx context.Context, e domain.RedemptionLedgerEntry) error

	// HasEntry reports whether (token, principal) was already redeemed.
	HasEntry(ctx context.Context, tokenID, principalID string) (bool, error)

	// ListEntriesByToken returns the redemption history of a token.
	ListEntriesByToken(ctx context.Context, tokenID string) ([]domain.RedemptionLedgerEntry, error)
}

type WaitlistLeads interface {
	GetLeadByID(ctx context.Context, id string) (domain.WaitlistLead, error)
	CreateLead(ctx context.Context, l domain.WaitlistLead) error
}

type StepUpChallenges interface {
	CreateChallenge(ctx context.Context, c domain.StepUpChallenge) error

	// GetChallenge retrieves a challenge by its token, expired or not;
	// callers check expiry so they can distinguish the failure.
	GetChallenge(ctx context.Context, id string) (domain.StepUpChallenge, error)

	// IncrementChallengeAttempts bumps the failed-attempt counter and
	// returns the updated row.
	IncrementChallengeAttempts(ctx context.Context, id string) (domain.StepUpChallenge, error)

	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges is housekeeping. Returns the number removed.
	DeleteExpiredChallenges(ctx context.Context) (int64, error)
}
