package sqlite

import (
	"context"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type ledgerRepo struct {
	db dbtx
}

func (r *ledgerRepo) AppendEntry(ctx context.Context, e domain.RedemptionLedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO redemption_ledger (token_id, principal_id, redeemed_at)
		 VALUES (?, ?, ?)`,
		e.TokenID, e.PrincipalID, e.RedeemedAt,
	)
	return mapAlreadyExists(err)
}

func (r *ledgerRepo) HasEntry(ctx context.Context, tokenID, principalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM redemption_ledger
			WHERE token_id = ? AND principal_id = ?
		 )`, tokenID, principalID,
	).Scan(&exists)
	return exists, err
}

func (r *ledgerRepo) ListEntriesByToken(ctx context.Context, tokenID string) ([]domain.RedemptionLedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token_id, principal_id, redeemed_at
		 FROM redemption_ledger WHERE token_id = ?
		 ORDER BY redeemed_at ASC`,
		tokenID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RedemptionLedgerEntry
	for rows.Next() {
		var e domain.RedemptionLedgerEntry
		if err := rows.Scan(&e.TokenID, &e.PrincipalID, &e.RedeemedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
