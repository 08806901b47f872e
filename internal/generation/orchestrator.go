// Package generation runs the asynchronous composite pipeline. A submit call
// does the cheap synchronous gating (credits, slug resolution, upload
// analysis) and returns a pending job id; everything expensive happens in a
// background goroutine that reports progress only through the job row.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fanai-server/internal/artifacts"
	"fanai-server/internal/domain"
	"fanai-server/internal/infra"
	"fanai-server/internal/postprocess"
	"fanai-server/internal/synthesis"
)

// celebNamePlaceholder is the substitution token template prompts may carry.
const celebNamePlaceholder = "{{celeb_name}}"

// ReferenceData resolves slugs against the cached celebrity and template
// catalogs and serves celebrity portrait bytes.
type ReferenceData interface {
	CelebrityBySlug(ctx context.Context, slug string) (*domain.Celebrity, error)
	TemplateBySlug(ctx context.Context, slug string) (*domain.Template, error)
	CelebrityImage(ctx context.Context, slug string) ([]byte, error)
}

// Synthesizer produces the composite and vets uploads. Analysis is advisory
// and fails open; Synthesize is the hard step of the pipeline.
type Synthesizer interface {
	AnalyzeImage(ctx context.Context, image []byte) synthesis.Analysis
	Synthesize(ctx context.Context, userImage, celebImage []byte, prompt string) ([]byte, error)
}

// ArtifactStore is the durable home for finished composites.
type ArtifactStore interface {
	Upload(ctx context.Context, meta artifacts.Metadata, image []byte) (string, error)
}

// LocalStore is the disk fallback when the durable store is unreachable.
type LocalStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// SubmitRequest carries everything one generation attempt needs.
type SubmitRequest struct {
	UserID        string
	CelebritySlug string
	TemplateSlug  string
	CampaignID    string
	Photo         []byte
}

// Options configures an Orchestrator.
type Options struct {
	Users         domain.UserRepository
	Jobs          domain.GenerationRepository
	Campaigns     domain.CampaignRepository
	Refs          ReferenceData
	Engine        Synthesizer
	Artifacts     ArtifactStore
	Local         LocalStore
	WatermarkText string
	JobTimeout    time.Duration
	Logger        infra.Logger
}

// Orchestrator owns the generation lifecycle from accepted request to
// terminal job status.
type Orchestrator struct {
	users         domain.UserRepository
	jobs          domain.GenerationRepository
	campaigns     domain.CampaignRepository
	refs          ReferenceData
	engine        Synthesizer
	artifacts     ArtifactStore
	local         LocalStore
	watermarkText string
	jobTimeout    time.Duration
	logger        infra.Logger

	wg sync.WaitGroup
}

func NewOrchestrator(opts Options) *Orchestrator {
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Orchestrator{
		users:         opts.Users,
		jobs:          opts.Jobs,
		campaigns:     opts.Campaigns,
		refs:          opts.Refs,
		engine:        opts.Engine,
		artifacts:     opts.Artifacts,
		local:         opts.Local,
		watermarkText: opts.WatermarkText,
		jobTimeout:    timeout,
		logger:        opts.Logger,
	}
}

// Submit gates the request, charges one credit, records a pending job and
// kicks off background processing. The credit is spent on the attempt; a
// later pipeline failure does not refund it. The returned job already has
// status pending and can be polled immediately.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*domain.Generation, error) {
	credits, err := o.users.RemainingCredits(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("generation: check credits: %w", err)
	}
	if credits < 1 {
		return nil, domain.ErrInsufficientCredits
	}

	celeb, err := o.refs.CelebrityBySlug(ctx, req.CelebritySlug)
	if err != nil {
		return nil, fmt.Errorf("generation: celebrity %q: %w", req.CelebritySlug, err)
	}
	tmpl, err := o.refs.TemplateBySlug(ctx, req.TemplateSlug)
	if err != nil {
		return nil, fmt.Errorf("generation: template %q: %w", req.TemplateSlug, err)
	}

	analysis := o.engine.AnalyzeImage(ctx, req.Photo)
	if !analysis.IsValid {
		return nil, fmt.Errorf("generation: %s: %w", analysis.Reason, domain.ErrInvalidImage)
	}

	jobID := uuid.NewString()

	uploadPath, err := o.local.Write(ctx, fmt.Sprintf("sources/%s.png", jobID), req.Photo)
	if err != nil {
		return nil, fmt.Errorf("generation: save upload: %w", err)
	}

	job := &domain.Generation{
		ID:            jobID,
		UserID:        req.UserID,
		CelebritySlug: req.CelebritySlug,
		TemplateSlug:  req.TemplateSlug,
		CampaignID:    req.CampaignID,
		UserImagePath: uploadPath,
		Status:        domain.GenerationPending,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("generation: create job: %w", err)
	}

	if err := o.users.DeductCredits(ctx, req.UserID, 1); err != nil {
		msg := "credit deduction failed"
		o.finish(job.ID, domain.GenerationFailed, &msg, nil)
		return nil, fmt.Errorf("generation: deduct credit: %w", err)
	}

	if req.CampaignID != "" {
		if err := o.campaigns.IncrementGenerations(ctx, req.CampaignID); err != nil {
			o.logger.Warn().Err(err).
				Str("campaign_id", req.CampaignID).
				Msg("generation: campaign counter not incremented")
		}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// The job outlives the HTTP request that spawned it; its lifetime
		// is bounded only by the per-job deadline.
		jobCtx, cancel := context.WithTimeout(context.Background(), o.jobTimeout)
		defer cancel()
		o.process(jobCtx, job, celeb, tmpl, req.Photo)
	}()

	return job, nil
}

// Wait blocks until all in-flight jobs have reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) process(ctx context.Context, job *domain.Generation, celeb *domain.Celebrity, tmpl *domain.Template, photo []byte) {
	o.finish(job.ID, domain.GenerationProcessing, nil, nil)

	celebImage, err := o.refs.CelebrityImage(ctx, celeb.Slug)
	if err != nil {
		// A missing portrait degrades the composite but does not block it.
		o.logger.Warn().Err(err).
			Str("celebrity", celeb.Slug).
			Msg("generation: celebrity portrait unavailable, reusing upload")
		celebImage = photo
	}

	prompt := strings.ReplaceAll(tmpl.Prompt, celebNamePlaceholder, celeb.Name)

	composite, err := o.engine.Synthesize(ctx, photo, celebImage, prompt)
	if err != nil {
		o.fail(job.ID, err)
		return
	}

	finished := postprocess.Trim(composite)
	marked, err := postprocess.Watermark(finished, o.watermarkText)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("generation_id", job.ID).
			Msg("generation: watermark failed, delivering unmarked image")
	} else {
		finished = marked
	}

	resultURL, err := o.store(ctx, job, finished)
	if err != nil {
		o.fail(job.ID, err)
		return
	}

	o.finish(job.ID, domain.GenerationCompleted, nil, &resultURL)
}

// store uploads the finished image durably, falling back to local disk when
// the blob store is unreachable. The fallback still completes the job; only
// losing both sinks fails it.
func (o *Orchestrator) store(ctx context.Context, job *domain.Generation, image []byte) (string, error) {
	meta := artifacts.Metadata{
		UserID:        job.UserID,
		ArtifactID:    job.ID,
		TemplateSlug:  job.TemplateSlug,
		CelebritySlug: job.CelebritySlug,
	}
	url, err := o.artifacts.Upload(ctx, meta, image)
	if err == nil {
		return url, nil
	}
	o.logger.Warn().Err(err).
		Str("generation_id", job.ID).
		Msg("generation: durable upload failed, falling back to local storage")

	if _, err := o.local.Write(ctx, fmt.Sprintf("processed/%s.png", job.ID), image); err != nil {
		return "", fmt.Errorf("generation: local fallback: %w", err)
	}
	return fmt.Sprintf("/uploads/processed/%s.png", job.ID), nil
}

func (o *Orchestrator) fail(jobID string, err error) {
	msg := "generation failed"
	var synthErr *domain.SynthesisError
	if errors.As(err, &synthErr) {
		msg = synthErr.Error()
	} else if err != nil {
		msg = err.Error()
	}
	o.logger.Error().Err(err).Str("generation_id", jobID).Msg("generation: job failed")
	o.finish(jobID, domain.GenerationFailed, &msg, nil)
}

// finish writes a status transition. Status updates run on their own
// short deadline so a cancelled job context cannot strand the row.
func (o *Orchestrator) finish(jobID string, status domain.GenerationStatus, errMsg, resultURL *string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.jobs.UpdateStatus(ctx, jobID, status, errMsg, resultURL); err != nil {
		o.logger.Error().Err(err).
			Str("generation_id", jobID).
			Str("status", string(status)).
			Msg("generation: status update failed")
	}
}
