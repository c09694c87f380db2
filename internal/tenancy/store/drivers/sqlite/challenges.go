package sqlite

import (
	"context"
	"time"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.StepUpChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO step_up_challenges (id, principal_id, attempts, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PrincipalID, c.Attempts, c.CreatedAt, c.ExpiresAt,
	)
	return mapAlreadyExists(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.StepUpChallenge, error) {
	var c domain.StepUpChallenge
	err := r.db.QueryRowContext(ctx,
		`SELECT id, principal_id, attempts, created_at, expires_at
		 FROM step_up_challenges WHERE id = ?`, id,
	).Scan(&c.ID, &c.PrincipalID, &c.Attempts, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return domain.StepUpChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (domain.StepUpChallenge, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE step_up_challenges SET attempts = attempts + 1 WHERE id = ?`, id,
	)
	if err := mapNoRows(res, err); err != nil {
		return domain.StepUpChallenge{}, err
	}
	return r.GetChallenge(ctx, id)
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM step_up_challenges WHERE id = ?`, id,
	)
	return mapNoRows(res, err)
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM step_up_challenges WHERE expires_at < ?`, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
