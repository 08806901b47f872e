package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fanai-server/internal/refdata"
)

func (a *App) ListCelebrities(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		a.json(w, http.StatusOK, a.Refs.SearchCelebrities(r.Context(), q))
		return
	}
	a.json(w, http.StatusOK, a.Refs.Celebrities(r.Context()))
}

func (a *App) GetCelebrity(w http.ResponseWriter, r *http.Request) {
	celeb, err := a.Refs.CelebrityBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, celeb)
}

func (a *App) ListTemplates(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Refs.Templates(r.Context()))
}

func (a *App) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := a.Refs.TemplateBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, tmpl)
}

type upsertCelebrityResponse struct {
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

// AdminUpsertCelebrity adds or replaces a catalog entry from a multipart
// payload carrying the portrait and the profile fields.
func (a *App) AdminUpsertCelebrity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || len(image) == 0 || len(image) > maxUploadBytes {
		a.error(w, http.StatusBadRequest, "bad_request", "image is empty or too large")
		return
	}

	in := refdata.UpsertCelebrityInput{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Slug:        strings.TrimSpace(r.FormValue("slug")),
		Profession:  strings.TrimSpace(r.FormValue("profession")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Image:       image,
	}
	if in.Name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	imageURL, err := a.Refs.UpsertCelebrity(r.Context(), in)
	if err != nil {
		a.domainError(w, err)
		return
	}

	slug := in.Slug
	if slug == "" {
		slug = refdata.Slugify(in.Name)
	}
	a.json(w, http.StatusOK, upsertCelebrityResponse{Slug: slug, Image: imageURL})
}

// AdminSync drops the catalog caches and rewarms them from the blob store.
func (a *App) AdminSync(w http.ResponseWriter, r *http.Request) {
	a.Refs.Sync(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) AdminCacheStats(w http.ResponseWriter, r *http.Request) {
	keys := a.Refs.CacheKeys()
	a.json(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}
