// Package refdata serves the admin-authored celebrity and template datasets.
// The datasets live as JSON files in the blob store and are read through a
// TTL cache; the system accepts a bounded staleness window against the
// upstream files.
package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fanai-server/internal/domain"
	"fanai-server/internal/infra"
)

const (
	CelebritiesPath = "celebrities/celebrities.json"
	TemplatesPath   = "templates/templates.json"

	celebritiesKey = "celebrities_json"
	templatesKey   = "templates_json"
)

// Blob is the slice of the blob store the service reads and writes.
// *blobstore.Store satisfies it.
type Blob interface {
	Get(ctx context.Context, path string) ([]byte, string, error)
	Put(ctx context.Context, path string, data []byte, message, expectedRev string) (string, error)
}

// Service exposes cached reference-dataset reads and the admin upsert flow.
type Service struct {
	blob        Blob
	cache       *Cache
	celebTTL    time.Duration
	templateTTL time.Duration
	logger      infra.Logger
}

// NewService builds a Service. Zero TTLs fall back to the product defaults
// of 24h for celebrities and 12h for templates.
func NewService(blob Blob, cache *Cache, celebTTL, templateTTL time.Duration, logger infra.Logger) *Service {
	if celebTTL <= 0 {
		celebTTL = 24 * time.Hour
	}
	if templateTTL <= 0 {
		templateTTL = 12 * time.Hour
	}
	return &Service{
		blob:        blob,
		cache:       cache,
		celebTTL:    celebTTL,
		templateTTL: templateTTL,
		logger:      logger,
	}
}

// Celebrities returns the celebrity dataset. An empty slice can mean the
// upstream is temporarily unavailable; admin-facing flows must not treat it
// as authoritative emptiness.
func (s *Service) Celebrities(ctx context.Context) []domain.Celebrity {
	return GetOrLoad(ctx, s.cache, celebritiesKey, s.celebTTL, func(ctx context.Context) ([]domain.Celebrity, error) {
		raw, _, err := s.blob.Get(ctx, CelebritiesPath)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", CelebritiesPath, err)
		}
		var celebrities []domain.Celebrity
		if err := json.Unmarshal(raw, &celebrities); err != nil {
			return nil, fmt.Errorf("parse %s: %w", CelebritiesPath, err)
		}
		return celebrities, nil
	})
}

// CelebrityBySlug resolves one celebrity, domain.ErrNotFound when absent.
func (s *Service) CelebrityBySlug(ctx context.Context, slug string) (*domain.Celebrity, error) {
	for _, c := range s.Celebrities(ctx) {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

// SearchCelebrities filters the dataset by name or profession substring.
func (s *Service) SearchCelebrities(ctx context.Context, query string) []domain.Celebrity {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.Celebrities(ctx)
	}
	var out []domain.Celebrity
	for _, c := range s.Celebrities(ctx) {
		if strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(strings.ToLower(c.Profession), query) {
			out = append(out, c)
		}
	}
	return out
}

// Templates returns the template dataset, with the same staleness caveat as
// Celebrities.
func (s *Service) Templates(ctx context.Context) []domain.Template {
	return GetOrLoad(ctx, s.cache, templatesKey, s.templateTTL, func(ctx context.Context) ([]domain.Template, error) {
		raw, _, err := s.blob.Get(ctx, TemplatesPath)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", TemplatesPath, err)
		}
		var templates []domain.Template
		if err := json.Unmarshal(raw, &templates); err != nil {
			return nil, fmt.Errorf("parse %s: %w", TemplatesPath, err)
		}
		return templates, nil
	})
}

// TemplateBySlug resolves one template, domain.ErrNotFound when absent.
func (s *Service) TemplateBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	for _, t := range s.Templates(ctx) {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CelebrityImage fetches the canonical celebrity portrait bytes.
func (s *Service) CelebrityImage(ctx context.Context, slug string) ([]byte, error) {
	data, _, err := s.blob.Get(ctx, celebrityImagePath(slug))
	return data, err
}

// UpsertCelebrityInput is the admin payload for adding or replacing a
// celebrity.
type UpsertCelebrityInput struct {
	Name        string
	Slug        string
	Profession  string
	Description string
	Category    string
	Image       []byte
}

// UpsertCelebrity uploads the portrait and rewrites celebrities.json under
// the read-revision-then-write discipline, so two admins editing
// concurrently cannot silently drop each other's entries. Returns the
// proxy URL recorded in the dataset.
func (s *Service) UpsertCelebrity(ctx context.Context, in UpsertCelebrityInput) (string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", errors.New("refdata: celebrity name is required")
	}
	if len(in.Image) == 0 {
		return "", errors.New("refdata: celebrity image is required")
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}

	imagePath := celebrityImagePath(slug)
	imageRev := ""
	if _, rev, err := s.blob.Get(ctx, imagePath); err == nil {
		imageRev = rev
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if _, err := s.blob.Put(ctx, imagePath, in.Image, fmt.Sprintf("Add celebrity image: %s", in.Name), imageRev); err != nil {
		return "", err
	}

	celebrities, rev, err := s.celebritiesWithRev(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	// Image URLs point at the local proxy so private repositories stay
	// private.
	entry := domain.Celebrity{
		Name:        in.Name,
		Slug:        slug,
		Profession:  in.Profession,
		Image:       "/api/github/celebrity-image/" + slug,
		Description: in.Description,
		Category:    in.Category,
	}
	replaced := false
	for i := range celebrities {
		if celebrities[i].Slug == slug {
			celebrities[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		celebrities = append(celebrities, entry)
	}

	payload, err := json.MarshalIndent(celebrities, "", "  ")
	if err != nil {
		return "", err
	}
	if _, err := s.blob.Put(ctx, CelebritiesPath, payload, fmt.Sprintf("Update celebrities.json: Add %s", in.Name), rev); err != nil {
		return "", err
	}

	s.cache.Invalidate(celebritiesKey)
	return entry.Image, nil
}

// Sync flushes every cached dataset and re-warms both collections.
func (s *Service) Sync(ctx context.Context) {
	s.cache.Flush()
	s.Celebrities(ctx)
	s.Templates(ctx)
	s.logger.Info().Msg("refdata: caches flushed and re-warmed")
}

// CacheKeys reports which datasets are currently cached.
func (s *Service) CacheKeys() []string {
	return s.cache.Keys()
}

func (s *Service) celebritiesWithRev(ctx context.Context) ([]domain.Celebrity, string, error) {
	raw, rev, err := s.blob.Get(ctx, CelebritiesPath)
	if err != nil {
		return nil, "", err
	}
	var celebrities []domain.Celebrity
	if err := json.Unmarshal(raw, &celebrities); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", CelebritiesPath, err)
	}
	return celebrities, rev, nil
}

func celebrityImagePath(slug string) string {
	return "celebs/" + slug + ".jpg"
}
