package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fanai-server/internal/domain"
)

type fakeBlob struct {
	mu    sync.Mutex
	files map[string][]byte
	revs  map[string]int
	gets  int

	// repo namespaces paths when set; rotateOnPut simulates the active
	// repository swapping out from under the writer during that path's Put.
	repo        string
	rotateOnPut string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{files: map[string][]byte{}, revs: map[string]int{}}
}

func (f *fakeBlob) key(path string) string {
	if f.repo == "" {
		return path
	}
	return f.repo + "/" + path
}

func (f *fakeBlob) Repository() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repo == "" {
		return "repo-main"
	}
	return f.repo
}

func (f *fakeBlob) Get(ctx context.Context, path string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.files[f.key(path)]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return data, fmt.Sprintf("rev-%d", f.revs[f.key(path)]), nil
}

func (f *fakeBlob) Put(ctx context.Context, path string, data []byte, message, expectedRev string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rotateOnPut != "" && strings.HasSuffix(path, f.rotateOnPut) {
		// The rejected write lands in the freshly created repository, the
		// way a full-repository rotation behaves.
		f.repo = "repo-rotated"
		f.rotateOnPut = ""
	}
	k := f.key(path)
	f.files[k] = append([]byte(nil), data...)
	f.revs[k]++
	return fmt.Sprintf("rev-%d", f.revs[k]), nil
}

func testStore(blob Blob, now time.Time) *Store {
	s := NewStore(blob, 7, zerolog.New(io.Discard))
	s.now = func() time.Time { return now }
	return s
}

func TestCandidateDateFolders(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	folders := CandidateDateFolders(now, 7)
	if len(folders) != 7 {
		t.Fatalf("got %d folders, want 7", len(folders))
	}
	if folders[0] != "2025-03-10" {
		t.Fatalf("newest folder = %q", folders[0])
	}
	if folders[6] != "2025-03-04" {
		t.Fatalf("oldest folder = %q", folders[6])
	}
	for i := 1; i < len(folders); i++ {
		if folders[i] >= folders[i-1] {
			t.Fatalf("folders not newest-first: %v", folders)
		}
	}
}

func TestUploadThenFetchRoundTrip(t *testing.T) {
	blob := newFakeBlob()
	uploadedAt := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	store := testStore(blob, uploadedAt)
	ctx := context.Background()
	image := []byte("final-composite-png")

	url, err := store.Upload(ctx, Metadata{
		UserID:        "user-1",
		ArtifactID:    "gen-1",
		TemplateSlug:  "red-carpet",
		CelebritySlug: "keanu-reeves",
	}, image)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "/api/github/generation-image/user-1/gen-1" {
		t.Fatalf("proxy url = %q", url)
	}

	// Image and sidecar must share the dateFolder of the upload moment.
	if _, ok := blob.files["users/user-1/2025-03-10/gen-1.png"]; !ok {
		t.Fatal("image missing from upload-date folder")
	}
	raw, ok := blob.files["users/user-1/2025-03-10/gen-1.json"]
	if !ok {
		t.Fatal("sidecar missing from upload-date folder")
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if meta.DateFolder != "2025-03-10" {
		t.Fatalf("sidecar dateFolder = %q", meta.DateFolder)
	}
	if meta.Status != MetadataCommitted {
		t.Fatalf("sidecar status = %q, want committed", meta.Status)
	}

	// Reader three days later does not know the dateFolder.
	reader := testStore(blob, uploadedAt.AddDate(0, 0, 3))
	got, err := reader.Fetch(ctx, "user-1", "gen-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatal("fetched bytes differ from uploaded bytes")
	}
}

func TestUploadReunitesPairAfterMidUploadRotation(t *testing.T) {
	blob := newFakeBlob()
	blob.rotateOnPut = "gen-6.png"
	uploadedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := testStore(blob, uploadedAt)
	image := []byte("rotated-mid-write")

	url, err := store.Upload(context.Background(), Metadata{
		UserID:     "user-1",
		ArtifactID: "gen-6",
	}, image)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "/api/github/generation-image/user-1/gen-6" {
		t.Fatalf("proxy url = %q", url)
	}

	// Sidecar and image must both live in the repository that is active
	// after the rotation, and the sidecar must have reached committed.
	raw, ok := blob.files["repo-rotated/users/user-1/2025-03-10/gen-6.json"]
	if !ok {
		t.Fatal("sidecar missing from the rotated repository")
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if meta.Status != MetadataCommitted {
		t.Fatalf("sidecar status = %q, want committed", meta.Status)
	}
	got, ok := blob.files["repo-rotated/users/user-1/2025-03-10/gen-6.png"]
	if !ok {
		t.Fatal("image missing from the rotated repository")
	}
	if !bytes.Equal(got, image) {
		t.Fatal("image bytes differ after the rewrite")
	}
}

func TestFetchTrustsSidecarDateFolderOverCandidate(t *testing.T) {
	blob := newFakeBlob()
	ctx := context.Background()
	image := []byte("drifted")

	// Clock drift scenario: the sidecar sits under one folder but records a
	// different dateFolder, and the image lives where the sidecar says.
	meta := Metadata{
		UserID:     "user-1",
		ArtifactID: "gen-2",
		DateFolder: "2025-03-08",
		Timestamp:  time.Date(2025, 3, 8, 0, 10, 0, 0, time.UTC),
		Status:     MetadataCommitted,
	}
	raw, _ := json.Marshal(meta)
	blob.files["users/user-1/2025-03-09/gen-2.json"] = raw
	blob.files["users/user-1/2025-03-08/gen-2.png"] = image

	store := testStore(blob, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	got, err := store.Fetch(ctx, "user-1", "gen-2")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatal("fetch did not follow the sidecar's dateFolder")
	}
}

func TestFetchFallsBackToImageProbeWithoutSidecar(t *testing.T) {
	blob := newFakeBlob()
	image := []byte("orphan")

	// Simulated partial write: image landed, sidecar never did.
	blob.files["users/user-1/2025-03-06/gen-3.png"] = image

	store := testStore(blob, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	got, err := store.Fetch(context.Background(), "user-1", "gen-3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatal("image probe fallback failed")
	}
}

func TestFetchIgnoresPendingSidecar(t *testing.T) {
	blob := newFakeBlob()
	image := []byte("pending-but-present")

	meta := Metadata{
		UserID:     "user-1",
		ArtifactID: "gen-4",
		DateFolder: "2025-03-09",
		Status:     MetadataPending,
	}
	raw, _ := json.Marshal(meta)
	blob.files["users/user-1/2025-03-09/gen-4.json"] = raw
	blob.files["users/user-1/2025-03-09/gen-4.png"] = image

	store := testStore(blob, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	got, err := store.Fetch(context.Background(), "user-1", "gen-4")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatal("pending sidecar should not block the image probe")
	}
}

func TestFetchOutsideLookbackWindowReturnsNotFound(t *testing.T) {
	blob := newFakeBlob()
	blob.files["users/user-1/2025-02-20/gen-5.png"] = []byte("too-old")

	store := testStore(blob, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	_, err := store.Fetch(context.Background(), "user-1", "gen-5")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Fetch outside window = %v, want domain.ErrNotFound", err)
	}
}

func TestFetchMissingArtifactReturnsNotFound(t *testing.T) {
	store := testStore(newFakeBlob(), time.Now())
	_, err := store.Fetch(context.Background(), "user-1", "never-existed")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Fetch = %v, want domain.ErrNotFound", err)
	}
}
