package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fanai-server/internal/domain"
	"fanai-server/internal/infra"
)

// Blob is the slice of the blob store the artifact layer needs. Repository
// reports the currently active storage target so writers can tell when a
// rotation happened underneath a multi-step write.
type Blob interface {
	Get(ctx context.Context, path string) ([]byte, string, error)
	Put(ctx context.Context, path string, data []byte, message, expectedRev string) (string, error)
	Repository() string
}

// errRepositoryMoved marks an upload whose sidecar and image landed in
// different repositories because a rotation fired between the two writes.
var errRepositoryMoved = errors.New("artifacts: repository rotated during upload")

// Store writes and retrieves artifact image/sidecar pairs.
type Store struct {
	blob         Blob
	lookbackDays int
	logger       infra.Logger

	// now is the clock used for partitioning; swapped in tests.
	now func() time.Time
}

// NewStore builds a Store with the given brute-force lookback window.
func NewStore(blob Blob, lookbackDays int, logger infra.Logger) *Store {
	if lookbackDays < 1 {
		lookbackDays = 7
	}
	return &Store{
		blob:         blob,
		lookbackDays: lookbackDays,
		logger:       logger,
		now:          time.Now,
	}
}

// Upload persists image plus sidecar under the dateFolder of the upload
// moment, not of the job's creation time. The write is a two-phase intent:
// sidecar with a pending marker first, then the image, then the sidecar
// flipped to committed. A crash between phases leaves a state readers can
// recognize and route around rather than a silent inconsistency.
//
// Returns the externally addressable proxy URL for the artifact.
func (s *Store) Upload(ctx context.Context, meta Metadata, image []byte) (string, error) {
	uploadedAt := s.now().UTC()
	meta.DateFolder = uploadedAt.Format(DateFolderLayout)
	meta.Timestamp = uploadedAt

	url, err := s.writePair(ctx, meta, image, false)
	if errors.Is(err, errRepositoryMoved) {
		// A rotation between the sidecar and image writes split the pair
		// across repositories. The whole sequence redoes itself in the
		// repository that is active now, so sidecar and image stay together;
		// the orphaned pending sidecar in the old repository is ignored by
		// readers.
		s.logger.Warn().
			Str("artifact_id", meta.ArtifactID).
			Str("repository", s.blob.Repository()).
			Msg("artifacts: repository rotated mid-upload, rewriting pair")
		url, err = s.writePair(ctx, meta, image, true)
	}
	return url, err
}

// writePair runs the pending -> image -> committed sequence once. With
// reclaim set it tolerates blobs a previous interrupted attempt already left
// at the target paths, reading their revisions before overwriting.
func (s *Store) writePair(ctx context.Context, meta Metadata, image []byte, reclaim bool) (string, error) {
	metaPath := MetadataPath(meta.UserID, meta.ArtifactID, meta.DateFolder)
	imagePath := ImagePath(meta.UserID, meta.ArtifactID, meta.DateFolder)

	metaRev, imageRev := "", ""
	if reclaim {
		metaRev = s.existingRev(ctx, metaPath)
		imageRev = s.existingRev(ctx, imagePath)
	}

	meta.Status = MetadataPending
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: marshal metadata: %w", err)
	}
	rev, err := s.blob.Put(ctx, metaPath, payload, fmt.Sprintf("Add generation metadata: %s", meta.ArtifactID), metaRev)
	if err != nil {
		return "", fmt.Errorf("artifacts: write metadata: %w", err)
	}
	sidecarRepo := s.blob.Repository()

	if _, err := s.blob.Put(ctx, imagePath, image, fmt.Sprintf("Add generation: %s", meta.ArtifactID), imageRev); err != nil {
		return "", fmt.Errorf("artifacts: write image: %w", err)
	}
	if s.blob.Repository() != sidecarRepo {
		return "", errRepositoryMoved
	}

	meta.Status = MetadataCommitted
	payload, err = json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: marshal metadata: %w", err)
	}
	if _, err := s.blob.Put(ctx, metaPath, payload, fmt.Sprintf("Commit generation metadata: %s", meta.ArtifactID), rev); err != nil {
		// The image is durable; readers will find it through the probe
		// fallback, so the job itself is not failed over this.
		s.logger.Warn().Err(err).
			Str("artifact_id", meta.ArtifactID).
			Msg("artifacts: failed to commit metadata, sidecar left pending")
	}

	return ProxyURL(meta.UserID, meta.ArtifactID), nil
}

func (s *Store) existingRev(ctx context.Context, path string) string {
	if _, rev, err := s.blob.Get(ctx, path); err == nil {
		return rev
	}
	return ""
}

// Fetch retrieves an artifact's image bytes given only the owner and the
// artifact id. The upload-time dateFolder is unknown here, so the read works
// in two passes over the candidate folders, newest first: committed sidecars
// are located and their inner dateFolder trusted, then raw image paths are
// probed directly for artifacts whose sidecar is missing or still pending.
// Exhaustion of both passes means the artifact is unrecoverable through this
// scheme: domain.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, userID, artifactID string) ([]byte, error) {
	folders := CandidateDateFolders(s.now().UTC(), s.lookbackDays)

	for _, folder := range folders {
		raw, _, err := s.blob.Get(ctx, MetadataPath(userID, artifactID, folder))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().Err(err).Str("artifact_id", artifactID).Msg("artifacts: metadata probe failed")
			}
			continue
		}

		var meta Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		if meta.Status == MetadataPending {
			continue
		}

		stored := meta.DateFolder
		if stored == "" && !meta.Timestamp.IsZero() {
			stored = meta.Timestamp.UTC().Format(DateFolderLayout)
		}
		if stored == "" {
			continue
		}

		data, _, err := s.blob.Get(ctx, ImagePath(userID, artifactID, stored))
		if err == nil {
			return data, nil
		}
		// Sidecar pointed at a missing image; keep probing.
		break
	}

	for _, folder := range folders {
		data, _, err := s.blob.Get(ctx, ImagePath(userID, artifactID, folder))
		if err == nil {
			return data, nil
		}
	}

	return nil, domain.ErrNotFound
}

// ProxyURL is the externally addressable reference recorded on completed
// generations.
func ProxyURL(userID, artifactID string) string {
	return fmt.Sprintf("/api/github/generation-image/%s/%s", userID, artifactID)
}
