package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fanai-server/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL. It
// is the credit ledger: credits are deducted when a generation is accepted,
// never refunded by the pipeline.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetByID fetches a user by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, credits, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// RemainingCredits returns the user's current credit balance.
func (r *UserRepositoryPG) RemainingCredits(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID)
	var credits int
	if err := row.Scan(&credits); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return credits, nil
}

// DeductCredits atomically removes amount credits, failing with
// domain.ErrInsufficientCredits when the balance would go negative.
func (r *UserRepositoryPG) DeductCredits(ctx context.Context, userID string, amount int) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET credits = credits - $2,
    updated_at = NOW()
WHERE id = $1
  AND credits >= $2;
`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

// GrantCredits adds amount credits to the user's balance. Support uses this
// for manual goodwill grants; failed jobs are not refunded automatically.
func (r *UserRepositoryPG) GrantCredits(ctx context.Context, userID string, amount int) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET credits = credits + $2,
    updated_at = NOW()
WHERE id = $1;
`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Credits, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
