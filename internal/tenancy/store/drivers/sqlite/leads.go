package sqlite

import (
	"context"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type leadsRepo struct {
	db dbtx
}

func (r *leadsRepo) GetLeadByID(ctx context.Context, id string) (domain.WaitlistLead, error) {
	var l domain.WaitlistLead
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, company_name, created_at
		 FROM waitlist_leads WHERE id = ?`, id,
	).Scan(&l.ID, &l.Email, &l.Company, &l.CreatedAt)
	if err != nil {
		return domain.WaitlistLead{}, mapNotFound(err)
	}
	return l, nil
}

func (r *leadsRepo) CreateLead(ctx context.Context, l domain.WaitlistLead) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO waitlist_leads (id, email, company_name)
		 VALUES (?, lower(?), ?)`,
		l.ID, l.Email, l.Company,
	)
	return mapAlreadyExists(err)
}
