package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type principalsRepo struct {
	db dbtx
}

const principalColumns = `id, email, name, password_hash, global_role, plan,
	max_clients, access_expires_at, subscription, totp_secret,
	mfa_enabled_at, deleted_at, created_at, updated_at`

func (r *principalsRepo) scanPrincipal(row interface{ Scan(...any) error }) (domain.Principal, error) {
	var (
		p             domain.Principal
		accessExpires sql.NullTime
		totpSecret    sql.NullString
		mfaEnabledAt  sql.NullTime
		deletedAt     sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.GlobalRole, &p.Plan,
		&p.MaxClients, &accessExpires, &p.Subscription, &totpSecret,
		&mfaEnabledAt, &deletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.AccessExpiresAt = mapNullTimePtr(accessExpires)
	p.TOTPSecret = mapNullStringPtr(totpSecret)
	p.MFAEnabledAt = mapNullTimePtr(mfaEnabledAt)
	p.DeletedAt = mapNullTimePtr(deletedAt)
	return p, nil
}

func (r *principalsRepo) GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error) {
	return r.scanPrincipal(r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals
		 WHERE id = ? AND deleted_at IS NULL`, id))
}

func (r *principalsRepo) GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error) {
	return r.scanPrincipal(r.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals
		 WHERE email = lower(?) AND deleted_at IS NULL`, email))
}

func (r *principalsRepo) CreatePrincipal(ctx context.Context, p domain.Principal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO principals (
			id, email, name, password_hash, global_role, plan,
			max_clients, access_expires_at, subscription
		 ) VALUES (?, lower(?), ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.Name, p.PasswordHash, p.GlobalRole, p.Plan,
		p.MaxClients, mapOptionalTime(p.AccessExpiresAt), p.Subscription,
	)
	if isUniqueViolation(err) {
		return mapAlreadyExists(err)
	}
	return err
}

func (r *principalsRepo) ApplyPlatformGrant(
	ctx context.Context,
	principalID string,
	role domain.GlobalRole,
	plan domain.PlanTier,
	maxClients int,
	sub domain.SubscriptionStatus,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE principals
		 SET global_role = ?, plan = ?, max_clients = ?, subscription = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		role, plan, maxClients, sub, principalID,
	)
	return mapNoRows(res, err)
}

func (r *principalsRepo) SetAccessExpiry(ctx context.Context, principalID string, expiresAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE principals
		 SET access_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		mapOptionalTime(expiresAt), principalID,
	)
	return mapNoRows(res, err)
}

func (r *principalsRepo) UpdateTOTPSecret(ctx context.Context, principalID string, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE principals
		 SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		mapStringNull(secret), principalID,
	)
	return mapNoRows(res, err)
}

func (r *principalsRepo) EnableMFA(ctx context.Context, principalID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE principals
		 SET mfa_enabled_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		principalID,
	)
	return mapNoRows(res, err)
}

func (r *principalsRepo) SoftDeletePrincipal(ctx context.Context, principalID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE principals
		 SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		principalID,
	)
	return mapNoRows(res, err)
}

func (r *principalsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM principals WHERE deleted_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
