package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fanai-server/internal/domain"
)

// GenerationRepositoryPG implements domain.GenerationRepository. It is the
// status sink the UI polls; the pipeline writes exactly three statuses per
// job over its lifetime.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a new generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

// Create inserts a new generation record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, g *domain.Generation) error {
	query := `
INSERT INTO generations (id, user_id, celebrity_slug, template_slug, campaign_id, user_image_path, result_image_url, status, error_message)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		g.ID,
		g.UserID,
		g.CelebritySlug,
		g.TemplateSlug,
		g.CampaignID,
		g.UserImagePath,
		g.ResultImageURL,
		g.Status,
		g.ErrorMessage,
	)
	return err
}

// UpdateStatus updates a generation's status and optionally its error message
// or result location.
func (r *GenerationRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.GenerationStatus, errMsg *string, resultURL *string) error {
	query := `
UPDATE generations
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    result_image_url = COALESCE($4, result_image_url)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, id, status, errMsg, resultURL)
	return err
}

// GetByID fetches a generation by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
SELECT id, user_id, celebrity_slug, template_slug, COALESCE(campaign_id, ''), user_image_path, COALESCE(result_image_url, ''), status, COALESCE(error_message, ''), created_at, updated_at
FROM generations
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var g domain.Generation
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.CelebritySlug,
		&g.TemplateSlug,
		&g.CampaignID,
		&g.UserImagePath,
		&g.ResultImageURL,
		&g.Status,
		&g.ErrorMessage,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// ListByUser returns a user's generations, newest first.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Generation, error) {
	query := `
SELECT id, user_id, celebrity_slug, template_slug, COALESCE(campaign_id, ''), user_image_path, COALESCE(result_image_url, ''), status, COALESCE(error_message, ''), created_at, updated_at
FROM generations
WHERE user_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		var g domain.Generation
		if err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.CelebritySlug,
			&g.TemplateSlug,
			&g.CampaignID,
			&g.UserImagePath,
			&g.ResultImageURL,
			&g.Status,
			&g.ErrorMessage,
			&g.CreatedAt,
			&g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
