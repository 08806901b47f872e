// Package state persists small operational facts in Postgres so they survive
// process restarts. Its one real tenant is the active blob repository name:
// repository rotation must not silently revert to a full store after a
// redeploy.
package state

import (
	"context"
	"strings"

	"fanai-server/internal/infra"
)

const KeyActiveRepository = "active_repository"

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	row := s.sql.QueryRow(ctx, `SELECT value FROM app_state WHERE key = $1`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// Set upserts key to value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.sql.Exec(ctx, `
INSERT INTO app_state (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = NOW();
`, key, value)
	return err
}

// ActiveRepository returns the persisted blob repository name, "" when none
// has been recorded yet.
func (s *Store) ActiveRepository(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyActiveRepository)
}

// SetActiveRepository records repo as the current blob storage target.
func (s *Store) SetActiveRepository(ctx context.Context, repo string) error {
	return s.Set(ctx, KeyActiveRepository, repo)
}
