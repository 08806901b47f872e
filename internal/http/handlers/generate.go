package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fanai-server/internal/domain"
	"fanai-server/internal/generation"
	"fanai-server/pkg/zip"
)

type generateResponse struct {
	GenerationID string `json:"generationId"`
	Status       string `json:"status"`
}

type generationDTO struct {
	ID             string    `json:"id"`
	CelebritySlug  string    `json:"celebritySlug"`
	TemplateSlug   string    `json:"templateSlug"`
	CampaignID     string    `json:"campaignId,omitempty"`
	Status         string    `json:"status"`
	ResultImageURL string    `json:"resultImageUrl,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toGenerationDTO(g domain.Generation) generationDTO {
	return generationDTO{
		ID:             g.ID,
		CelebritySlug:  g.CelebritySlug,
		TemplateSlug:   g.TemplateSlug,
		CampaignID:     g.CampaignID,
		Status:         string(g.Status),
		ResultImageURL: g.ResultImageURL,
		ErrorMessage:   g.ErrorMessage,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

// Generate accepts a multipart photo plus slugs, gates it synchronously and
// answers 202 with the job id the client polls.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "photo file is required")
		return
	}
	defer file.Close()
	photo, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "could not read photo")
		return
	}
	if len(photo) == 0 || len(photo) > maxUploadBytes {
		a.error(w, http.StatusBadRequest, "bad_request", "photo is empty or too large")
		return
	}

	celebSlug := strings.TrimSpace(r.FormValue("celebritySlug"))
	templateSlug := strings.TrimSpace(r.FormValue("templateSlug"))
	if celebSlug == "" || templateSlug == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "celebritySlug and templateSlug are required")
		return
	}

	job, err := a.Pipeline.Submit(r.Context(), generation.SubmitRequest{
		UserID:        userID,
		CelebritySlug: celebSlug,
		TemplateSlug:  templateSlug,
		CampaignID:    strings.TrimSpace(r.FormValue("campaignId")),
		Photo:         photo,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusAccepted, generateResponse{GenerationID: job.ID, Status: string(job.Status)})
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	jobs, err := a.Jobs.ListByUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	out := make([]generationDTO, 0, len(jobs))
	for _, g := range jobs {
		out = append(out, toGenerationDTO(g))
	}
	a.json(w, http.StatusOK, out)
}

// GetGeneration serves one job's status. Other users' jobs read as absent,
// not forbidden, so ids stay unguessable.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	a.json(w, http.StatusOK, toGenerationDTO(*job))
}

// ExportGenerations bundles the caller's completed composites into one zip.
// Artifacts that cannot be fetched anymore are skipped, not fatal.
func (a *App) ExportGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	jobs, err := a.Jobs.ListByUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	var entries []zip.Entry
	for _, g := range jobs {
		if g.Status != domain.GenerationCompleted {
			continue
		}
		data, err := a.fetchResult(r, userID, g.ID)
		if err != nil {
			a.Logger.Warn().Err(err).
				Str("generation_id", g.ID).
				Msg("handler: export skipping unreadable artifact")
			continue
		}
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("%s-%s", g.CelebritySlug, g.TemplateSlug),
			Data: data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed generations to export")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.domainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="generations.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
