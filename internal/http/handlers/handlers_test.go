package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fanai-server/internal/domain"
	"fanai-server/internal/generation"
	"fanai-server/internal/middleware"
	"fanai-server/internal/refdata"
)

type fakePipeline struct {
	job *domain.Generation
	err error
	got generation.SubmitRequest
}

func (f *fakePipeline) Submit(ctx context.Context, req generation.SubmitRequest) (*domain.Generation, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeJobStore struct {
	jobs map[string]domain.Generation
	list []domain.Generation
}

func (f *fakeJobStore) Create(ctx context.Context, g *domain.Generation) error { return nil }

func (f *fakeJobStore) UpdateStatus(ctx context.Context, id string, status domain.GenerationStatus, errMsg *string, resultURL *string) error {
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	g, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

func (f *fakeJobStore) ListByUser(ctx context.Context, userID string) ([]domain.Generation, error) {
	return f.list, nil
}

type fakeUserStore struct {
	user *domain.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.user == nil {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUserStore) RemainingCredits(ctx context.Context, userID string) (int, error) {
	return f.user.Credits, nil
}

func (f *fakeUserStore) DeductCredits(ctx context.Context, userID string, amount int) error {
	return nil
}

func (f *fakeUserStore) GrantCredits(ctx context.Context, userID string, amount int) error {
	return nil
}

type fakeCatalog struct {
	celebs    []domain.Celebrity
	templates []domain.Template
	image     []byte
	imageErr  error
	synced    bool
	upserted  *refdata.UpsertCelebrityInput
}

func (f *fakeCatalog) Celebrities(ctx context.Context) []domain.Celebrity { return f.celebs }

func (f *fakeCatalog) SearchCelebrities(ctx context.Context, query string) []domain.Celebrity {
	return f.celebs
}

func (f *fakeCatalog) CelebrityBySlug(ctx context.Context, slug string) (*domain.Celebrity, error) {
	for _, c := range f.celebs {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) Templates(ctx context.Context) []domain.Template { return f.templates }

func (f *fakeCatalog) TemplateBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	for _, tm := range f.templates {
		if tm.Slug == slug {
			return &tm, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) CelebrityImage(ctx context.Context, slug string) ([]byte, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.image, nil
}

func (f *fakeCatalog) UpsertCelebrity(ctx context.Context, in refdata.UpsertCelebrityInput) (string, error) {
	f.upserted = &in
	return "/api/github/celebrity-image/" + refdata.Slugify(in.Name), nil
}

func (f *fakeCatalog) Sync(ctx context.Context) { f.synced = true }

func (f *fakeCatalog) CacheKeys() []string { return []string{"celebrities_json"} }

type fakeArtifactReader struct {
	data map[string][]byte
}

func (f *fakeArtifactReader) Fetch(ctx context.Context, userID, artifactID string) ([]byte, error) {
	d, ok := f.data[userID+"/"+artifactID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

type fakeLocalReader struct {
	data map[string][]byte
}

func (f *fakeLocalReader) Read(ctx context.Context, key string) ([]byte, error) {
	d, ok := f.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

type testEnv struct {
	app      *App
	pipeline *fakePipeline
	jobs     *fakeJobStore
	users    *fakeUserStore
	catalog  *fakeCatalog
	reader   *fakeArtifactReader
	local    *fakeLocalReader
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		pipeline: &fakePipeline{job: &domain.Generation{ID: "gen-1", UserID: "u1", Status: domain.GenerationPending}},
		jobs:     &fakeJobStore{jobs: map[string]domain.Generation{}},
		users:    &fakeUserStore{user: &domain.User{ID: "u1", Email: "u1@example.com", Name: "Uli", Credits: 3}},
		catalog: &fakeCatalog{
			celebs:    []domain.Celebrity{{Name: "Ariana Grande", Slug: "ariana-grande", Profession: "Singer"}},
			templates: []domain.Template{{Name: "Red Carpet", Slug: "red-carpet", Prompt: "x"}},
			image:     []byte("jpeg-bytes"),
		},
		reader: &fakeArtifactReader{data: map[string][]byte{}},
		local:  &fakeLocalReader{data: map[string][]byte{}},
	}
	env.app = &App{
		Logger:    zerolog.New(io.Discard),
		Users:     env.users,
		Jobs:      env.jobs,
		Refs:      env.catalog,
		Pipeline:  env.pipeline,
		Artifacts: env.reader,
		Local:     env.local,
	}

	r := chi.NewRouter()
	r.Use(middleware.Session)
	r.Get("/api/me", env.app.Me)
	r.Post("/api/generate", env.app.Generate)
	r.Get("/api/generations", env.app.ListGenerations)
	r.Get("/api/generations/export", env.app.ExportGenerations)
	r.Get("/api/generations/{id}", env.app.GetGeneration)
	r.Get("/api/celebrities", env.app.ListCelebrities)
	r.Get("/api/celebrities/{slug}", env.app.GetCelebrity)
	r.Get("/api/templates", env.app.ListTemplates)
	r.Get("/api/templates/{slug}", env.app.GetTemplate)
	r.Get("/api/github/generation-image/{userId}/{artifactId}", env.app.GenerationImage)
	r.Get("/api/github/celebrity-image/{slug}", env.app.CelebrityImage)
	r.Post("/api/admin/celebrities", env.app.AdminUpsertCelebrity)
	r.Post("/api/admin/sync", env.app.AdminSync)
	r.Get("/api/admin/cache", env.app.AdminCacheStats)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
