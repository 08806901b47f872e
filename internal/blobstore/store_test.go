package blobstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fanai-server/internal/domain"
)

type memoryTargets struct {
	mu   sync.Mutex
	repo string
}

func (m *memoryTargets) ActiveRepository(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo, nil
}

func (m *memoryTargets) SetActiveRepository(ctx context.Context, repo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repo = repo
	return nil
}

// fakeGitHub emulates the slice of the contents API the client touches.
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]string // "repo/path" -> content
	revs     map[string]int
	fullRepo string // repo that refuses writes with 403
	created  []string
	puts     int
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{files: map[string]string{}, revs: map[string]int{}}
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost && r.URL.Path == "/user/repos" {
			var body struct {
				Name string `json:"name"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.created = append(f.created, body.Name)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"name":%q}`, body.Name)
			return
		}

		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/repos/"), "/contents/", 2)
		if len(parts) != 2 {
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ownerRepo, path := parts[0], parts[1]
		repo := strings.SplitN(ownerRepo, "/", 2)[1]
		key := repo + "/" + path

		switch r.Method {
		case http.MethodGet:
			content, ok := f.files[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
				return
			}
			encoded := base64.StdEncoding.EncodeToString([]byte(content))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type":     "file",
				"encoding": "base64",
				"content":  encoded,
				"sha":      fmt.Sprintf("sha-%d", f.revs[key]),
				"path":     path,
			})
		case http.MethodPut:
			f.puts++
			if repo == f.fullRepo {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"repository size limit exceeded"}`)
				return
			}
			var body struct {
				Content string `json:"content"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			decoded, err := base64.StdEncoding.DecodeString(body.Content)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.files[key] = string(decoded)
			f.revs[key]++
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"content":{"sha":"sha-%d"}}`, f.revs[key])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestClient(t *testing.T, fake *fakeGitHub) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		Token:             "test-token",
		Owner:             "acme",
		Branch:            "main",
		BaseURL:           server.URL,
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClientPutThenGet(t *testing.T) {
	fake := newFakeGitHub()
	client := newTestClient(t, fake)
	ctx := context.Background()

	rev, err := client.Put(ctx, "store", "users/u1/file.txt", []byte("hello"), "add file", "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rev == "" {
		t.Fatal("Put returned empty revision")
	}

	data, gotRev, err := client.Get(ctx, "store", "users/u1/file.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("Get content = %q, want %q", data, "hello")
	}
	if gotRev != rev {
		t.Fatalf("revision mismatch: get %q, put %q", gotRev, rev)
	}
}

func TestClientGetNotFound(t *testing.T) {
	fake := newFakeGitHub()
	client := newTestClient(t, fake)

	_, _, err := client.Get(context.Background(), "store", "users/u1/missing.png")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing = %v, want domain.ErrNotFound", err)
	}
}

func TestStoreRotatesOnFullRepository(t *testing.T) {
	fake := newFakeGitHub()
	fake.fullRepo = "fanai-celebs"
	client := newTestClient(t, fake)
	targets := &memoryTargets{}

	store, err := NewStore(context.Background(), client, targets, "fanai-celebs", "fanai-celebs", testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rev, err := store.Put(context.Background(), "users/u1/img.png", []byte("png"), "add image", "")
	if err != nil {
		t.Fatalf("Put with rotation: %v", err)
	}
	if rev == "" {
		t.Fatal("rotated Put returned empty revision")
	}

	if len(fake.created) != 1 {
		t.Fatalf("created %d repositories, want 1", len(fake.created))
	}
	newRepo := fake.created[0]
	if !strings.HasPrefix(newRepo, "fanai-celebs-") {
		t.Fatalf("rotated repository %q missing prefix", newRepo)
	}
	if store.Repository() != newRepo {
		t.Fatalf("active repository = %q, want %q", store.Repository(), newRepo)
	}
	if persisted, _ := targets.ActiveRepository(context.Background()); persisted != newRepo {
		t.Fatalf("persisted repository = %q, want %q", persisted, newRepo)
	}

	if _, ok := fake.files[newRepo+"/users/u1/img.png"]; !ok {
		t.Fatal("image not written to rotated repository")
	}
}

func TestStorePrefersPersistedTarget(t *testing.T) {
	fake := newFakeGitHub()
	client := newTestClient(t, fake)
	targets := &memoryTargets{repo: "fanai-celebs-170000"}

	store, err := NewStore(context.Background(), client, targets, "fanai-celebs", "fanai-celebs", testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Repository() != "fanai-celebs-170000" {
		t.Fatalf("active repository = %q, want persisted target", store.Repository())
	}
}
