package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fanai-server/internal/domain"
)

// artifactCacheControl lets proxied images sit in CDN and browser caches for
// a day; artifact content is immutable once written.
const artifactCacheControl = "public, max-age=86400"

// GenerationImage proxies a finished composite out of the blob store. The
// local fallback disk is probed when the durable store has no trace, which
// covers artifacts written during a storage outage.
func (a *App) GenerationImage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	artifactID := chi.URLParam(r, "artifactId")

	data, err := a.fetchResult(r, userID, artifactID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", artifactCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) fetchResult(r *http.Request, userID, artifactID string) ([]byte, error) {
	data, err := a.Artifacts.Fetch(r.Context(), userID, artifactID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return a.Local.Read(r.Context(), fmt.Sprintf("processed/%s.png", artifactID))
}

// CelebrityImage proxies a celebrity portrait out of the blob store.
func (a *App) CelebrityImage(w http.ResponseWriter, r *http.Request) {
	data, err := a.Refs.CelebrityImage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		a.domainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", artifactCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
