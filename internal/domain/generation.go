package domain

import "time"

// GenerationStatus enumerates the lifecycle states of a generation job.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// CanTransition reports whether moving from s to next respects the
// one-directional state machine pending -> processing -> completed|failed.
func (s GenerationStatus) CanTransition(next GenerationStatus) bool {
	switch s {
	case GenerationPending:
		return next == GenerationProcessing || next == GenerationFailed
	case GenerationProcessing:
		return next == GenerationCompleted || next == GenerationFailed
	default:
		return false
	}
}

// Generation is one user request to produce a composite image. The row is
// created synchronously at request acceptance and mutated exactly twice more
// by the background pipeline.
type Generation struct {
	ID             string
	UserID         string
	CelebritySlug  string
	TemplateSlug   string
	CampaignID     string
	UserImagePath  string
	ResultImageURL string
	Status         GenerationStatus
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
