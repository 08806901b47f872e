package domain

import "context"

// UserRepository is the credit ledger. Credits are spent on attempt, not on
// success, so no rollback operation exists.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	RemainingCredits(ctx context.Context, userID string) (int, error)
	DeductCredits(ctx context.Context, userID string, amount int) error
	GrantCredits(ctx context.Context, userID string, amount int) error
}

// GenerationRepository is the job status sink the UI polls.
type GenerationRepository interface {
	Create(ctx context.Context, g *Generation) error
	UpdateStatus(ctx context.Context, id string, status GenerationStatus, errMsg *string, resultURL *string) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	ListByUser(ctx context.Context, userID string) ([]Generation, error)
}

// CampaignRepository increments per-campaign generation counters;
// best-effort, fire-and-forget from the pipeline's perspective.
type CampaignRepository interface {
	IncrementGenerations(ctx context.Context, campaignID string) error
}
