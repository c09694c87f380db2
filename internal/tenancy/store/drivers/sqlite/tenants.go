package sqlite

import (
	"context"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type tenantsRepo struct {
	db dbtx
}

func (r *tenantsRepo) GetTenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, plan, require_mfa, created_at, updated_at
		 FROM tenants WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Plan, &t.RequireMFA, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, plan, require_mfa)
		 VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.Plan, t.RequireMFA,
	)
	return mapAlreadyExists(err)
}

func (r *tenantsRepo) SetTenantPlan(ctx context.Context, tenantID string, plan domain.PlanTier) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET plan = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		plan, tenantID,
	)
	return mapNoRows(res, err)
}

func (r *tenantsRepo) SetTenantRequireMFA(ctx context.Context, tenantID string, require bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET require_mfa = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		require, tenantID,
	)
	return mapNoRows(res, err)
}
