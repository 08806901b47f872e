package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fanai-server/internal/infra"
)

// TargetStore persists the active repository name across restarts.
type TargetStore interface {
	ActiveRepository(ctx context.Context) (string, error)
	SetActiveRepository(ctx context.Context, repo string) error
}

// Store binds a Client to the currently active repository and owns the
// rotation policy: when a write comes back ErrRepositoryFull, it creates a
// fresh repository, records it durably, and retries the write once. The
// active target is explicit state here rather than a process-wide variable.
type Store struct {
	client     *Client
	targets    TargetStore
	repoPrefix string
	logger     infra.Logger

	mu   sync.RWMutex
	repo string
}

// NewStore builds a Store starting at the durably recorded repository, or at
// defaultRepo when none has been recorded yet.
func NewStore(ctx context.Context, client *Client, targets TargetStore, defaultRepo, repoPrefix string, logger infra.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("blobstore: client is required")
	}
	if defaultRepo == "" {
		return nil, errors.New("blobstore: default repository is required")
	}

	repo := defaultRepo
	if targets != nil {
		persisted, err := targets.ActiveRepository(ctx)
		if err != nil {
			return nil, fmt.Errorf("blobstore: load active repository: %w", err)
		}
		if persisted != "" {
			repo = persisted
		}
	}
	if repoPrefix == "" {
		repoPrefix = defaultRepo
	}

	return &Store{
		client:     client,
		targets:    targets,
		repoPrefix: repoPrefix,
		logger:     logger,
		repo:       repo,
	}, nil
}

// Repository returns the name of the repository writes currently target.
func (s *Store) Repository() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

// Get fetches path from the active repository.
func (s *Store) Get(ctx context.Context, path string) ([]byte, string, error) {
	return s.client.Get(ctx, s.Repository(), path)
}

// Put writes path to the active repository, rotating to a fresh repository
// and retrying once when the current one refuses the write.
func (s *Store) Put(ctx context.Context, path string, data []byte, message, expectedRev string) (string, error) {
	repo := s.Repository()
	rev, err := s.client.Put(ctx, repo, path, data, message, expectedRev)
	if err == nil {
		return rev, nil
	}
	if !errors.Is(err, ErrRepositoryFull) {
		return "", err
	}

	if rotateErr := s.rotate(ctx, repo); rotateErr != nil {
		return "", fmt.Errorf("blobstore: rotate after full repository: %w", rotateErr)
	}

	// The new repository has no prior revision of this path.
	return s.client.Put(ctx, s.Repository(), path, data, message, "")
}

// rotate swaps the active repository to a freshly created one. It is a no-op
// when another writer already rotated away from full.
func (s *Store) rotate(ctx context.Context, full string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != full {
		return nil
	}

	name := fmt.Sprintf("%s-%d", s.repoPrefix, time.Now().UnixMilli())
	if err := s.client.CreateRepository(ctx, name, "FanAI celebrity and generation storage"); err != nil {
		return err
	}

	if s.targets != nil {
		if err := s.targets.SetActiveRepository(ctx, name); err != nil {
			// The swap still happens in-process; a restart would revert to
			// the full repository, so make the gap loud.
			s.logger.Error().Err(err).Str("repository", name).Msg("blobstore: failed to persist active repository")
		}
	}

	s.logger.Warn().Str("previous", full).Str("repository", name).Msg("blobstore: rotated storage repository")
	s.repo = name
	return nil
}
