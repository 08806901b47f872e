// Package handlers holds the HTTP surface. Handlers stay thin: decode,
// delegate, encode. All business rules live in the services they call.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fanai-server/internal/domain"
	"fanai-server/internal/generation"
	"fanai-server/internal/infra"
	"fanai-server/internal/middleware"
	"fanai-server/internal/refdata"
)

// maxUploadBytes caps the multipart photo size at 10 MiB.
const maxUploadBytes = 10 << 20

// Pipeline accepts generation requests for background processing.
type Pipeline interface {
	Submit(ctx context.Context, req generation.SubmitRequest) (*domain.Generation, error)
}

// ArtifactReader serves finished composite bytes by owner and artifact id.
type ArtifactReader interface {
	Fetch(ctx context.Context, userID, artifactID string) ([]byte, error)
}

// LocalReader serves images that only exist on the fallback disk.
type LocalReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// ReferenceData is the slice of the catalog service the HTTP layer needs.
type ReferenceData interface {
	Celebrities(ctx context.Context) []domain.Celebrity
	SearchCelebrities(ctx context.Context, query string) []domain.Celebrity
	CelebrityBySlug(ctx context.Context, slug string) (*domain.Celebrity, error)
	Templates(ctx context.Context) []domain.Template
	TemplateBySlug(ctx context.Context, slug string) (*domain.Template, error)
	CelebrityImage(ctx context.Context, slug string) ([]byte, error)
	UpsertCelebrity(ctx context.Context, in refdata.UpsertCelebrityInput) (string, error)
	Sync(ctx context.Context)
	CacheKeys() []string
}

type App struct {
	Logger    infra.Logger
	Users     domain.UserRepository
	Jobs      domain.GenerationRepository
	Refs      ReferenceData
	Pipeline  Pipeline
	Artifacts ArtifactReader
	Local     LocalReader
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: code, Message: message})
}

// domainError maps service sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; details stay in the log.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusForbidden, "insufficient_credits", "no generation credits remaining")
	case errors.Is(err, domain.ErrInvalidImage):
		a.error(w, http.StatusBadRequest, "invalid_image", err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "a dependency is unavailable")
	default:
		a.Logger.Error().Err(err).Msg("handler: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
