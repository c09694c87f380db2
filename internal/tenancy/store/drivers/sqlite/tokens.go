package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type tokensRepo struct {
	db dbtx
}

const tokenColumns = `id, fingerprint, status, email, tenant_id, role,
	grant_global_role, grant_plan, grant_max_clients, grant_subscription,
	usage_limit, use_count, expires_at, access_duration_type,
	access_duration_days, restricted_domains, waitlist_lead_id,
	created_by, created_at, updated_at`

func scanToken(row interface{ Scan(...any) error }) (domain.CredentialToken, error) {
	var (
		t          domain.CredentialToken
		tenantID   sql.NullString
		usageLimit sql.NullInt64
		expiresAt  sql.NullTime
		domains    string
		leadID     sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Fingerprint, &t.Status, &t.Email, &tenantID, &t.Role,
		&t.GrantGlobalRole, &t.GrantPlan, &t.GrantMaxClients, &t.GrantSubscription,
		&usageLimit, &t.UseCount, &expiresAt, &t.AccessDurationType,
		&t.AccessDurationDays, &domains, &leadID,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.CredentialToken{}, mapNotFound(err)
	}
	t.TenantID = mapNullString(tenantID)
	t.UsageLimit = mapNullIntPtr(usageLimit)
	t.ExpiresAt = mapNullTimePtr(expiresAt)
	t.RestrictedDomains = splitAndFilter(domains)
	t.WaitlistLeadID = mapNullString(leadID)
	return t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.CredentialToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credential_tokens (
			id, fingerprint, status, email, tenant_id, role,
			grant_global_role, grant_plan, grant_max_clients, grant_subscription,
			usage_limit, expires_at, access_duration_type, access_duration_days,
			restricted_domains, waitlist_lead_id, created_by
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Fingerprint, t.Status, t.Email, mapStringNull(t.TenantID), t.Role,
		t.GrantGlobalRole, t.GrantPlan, t.GrantMaxClients, t.GrantSubscription,
		mapOptionalInt(t.UsageLimit), mapOptionalTime(t.ExpiresAt),
		t.AccessDurationType, t.AccessDurationDays,
		strings.Join(t.RestrictedDomains, " "), mapStringNull(t.WaitlistLeadID),
		t.CreatedBy,
	)
	return mapAlreadyExists(err)
}

func (r *tokensRepo) GetTokenByID(ctx context.Context, id string) (domain.CredentialToken, error) {
	return scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM credential_tokens WHERE id = ?`, id))
}

func (r *tokensRepo) GetTokenByFingerprint(ctx context.Context, fingerprint string) (domain.CredentialToken, error) {
	return scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM credential_tokens WHERE fingerprint = ?`, fingerprint))
}

func (r *tokensRepo) ListTokens(ctx context.Context, tenantID string) ([]domain.CredentialToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM credential_tokens ORDER BY created_at DESC, id DESC`
	args := []any{}
	if tenantID != "" {
		query = `SELECT ` + tokenColumns + ` FROM credential_tokens
			WHERE tenant_id = ? ORDER BY created_at DESC, id DESC`
		args = append(args, tenantID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.CredentialToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *tokensRepo) SetTokenStatus(ctx context.Context, tokenID string, status domain.TokenStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credential_tokens
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, tokenID,
	)
	return mapNoRows(res, err)
}

// ConsumeTokenUse is the race-free redemption boundary: the WHERE clause
// only matches an active token with spare uses, and the increment and the
// flip-to-accepted at the limit happen in the same statement. Concurrent
// redeemers serialize on the row; losers see zero affected rows.
func (r *tokensRepo) ConsumeTokenUse(ctx context.Context, tokenID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credential_tokens
		 SET use_count = use_count + 1,
		     status = CASE
				WHEN usage_limit IS NOT NULL AND use_count + 1 >= usage_limit
				THEN 'accepted' ELSE status
			 END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND status = 'active'
		   AND (usage_limit IS NULL OR use_count < usage_limit)`,
		tokenID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, grace time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM credential_tokens
		 WHERE expires_at IS NOT NULL AND expires_at < ?
		   AND id NOT IN (SELECT token_id FROM redemption_ledger)`,
		time.Now().Add(-grace),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
