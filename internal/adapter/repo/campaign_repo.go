package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fanai-server/internal/domain"
)

// CampaignRepositoryPG bumps campaign generation counters. Callers treat the
// increment as best-effort; a miss is logged, never surfaced to the user.
type CampaignRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository creates a new CampaignRepositoryPG.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepositoryPG {
	return &CampaignRepositoryPG{pool: pool}
}

// IncrementGenerations adds one to the campaign's generation counter.
func (r *CampaignRepositoryPG) IncrementGenerations(ctx context.Context, campaignID string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE campaigns
SET generation_count = generation_count + 1,
    updated_at = NOW()
WHERE id = $1;
`, campaignID)
	return err
}

var _ domain.CampaignRepository = (*CampaignRepositoryPG)(nil)
