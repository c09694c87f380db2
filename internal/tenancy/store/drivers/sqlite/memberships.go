package sqlite

import (
	"context"
	"database/sql"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type membershipsRepo struct {
	db dbtx
}

func (r *membershipsRepo) GetMembership(ctx context.Context, principalID, tenantID string) (domain.Membership, error) {
	var (
		m             domain.Membership
		accessExpires sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT principal_id, tenant_id, role, access_expires_at, joined_at, updated_at
		 FROM memberships WHERE principal_id = ? AND tenant_id = ?`,
		principalID, tenantID,
	).Scan(&m.PrincipalID, &m.TenantID, &m.Role, &accessExpires, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	m.AccessExpiresAt = mapNullTimePtr(accessExpires)
	return m, nil
}

func (r *membershipsRepo) UpsertMembership(ctx context.Context, m domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (principal_id, tenant_id, role, access_expires_at, joined_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (principal_id, tenant_id) DO UPDATE SET
			role = excluded.role,
			access_expires_at = excluded.access_expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		m.PrincipalID, m.TenantID, m.Role, mapOptionalTime(m.AccessExpiresAt), m.JoinedAt,
	)
	return err
}

func (r *membershipsRepo) DeleteMembership(ctx context.Context, principalID, tenantID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE principal_id = ? AND tenant_id = ?`,
		principalID, tenantID,
	)
	return mapNoRows(res, err)
}

// ListOwnedTenants orders by tenant creation time with the membership rowid
// as a stable tiebreak. The seat allocator's oldest-first semantics depend
// on this ordering.
func (r *membershipsRepo) ListOwnedTenants(ctx context.Context, principalID string) ([]domain.OwnedTenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.created_at, m.rowid
		 FROM memberships m
		 JOIN tenants t ON t.id = m.tenant_id
		 WHERE m.principal_id = ? AND m.role = ?
		 ORDER BY t.created_at ASC, m.rowid ASC`,
		principalID, domain.RoleOwner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owned []domain.OwnedTenant
	for rows.Next() {
		var o domain.OwnedTenant
		if err := rows.Scan(&o.TenantID, &o.TenantCreatedAt, &o.Rank); err != nil {
			return nil, err
		}
		owned = append(owned, o)
	}
	return owned, rows.Err()
}

func (r *membershipsRepo) ListMemberships(ctx context.Context, principalID string) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT principal_id, tenant_id, role, access_expires_at, joined_at, updated_at
		 FROM memberships WHERE principal_id = ?
		 ORDER BY joined_at ASC`,
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		var (
			m             domain.Membership
			accessExpires sql.NullTime
		)
		if err := rows.Scan(&m.PrincipalID, &m.TenantID, &m.Role, &accessExpires, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.AccessExpiresAt = mapNullTimePtr(accessExpires)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (r *membershipsRepo) AnyTenantRequiresMFA(ctx context.Context, principalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM memberships m
			JOIN tenants t ON t.id = m.tenant_id
			WHERE m.principal_id = ? AND t.require_mfa = 1
		 )`, principalID,
	).Scan(&exists)
	return exists, err
}
