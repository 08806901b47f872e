package refdata

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testCache() *Cache {
	return NewCache(zerolog.New(io.Discard))
}

func TestGetOrLoadCachesWithinTTL(t *testing.T) {
	c := testCache()
	ctx := context.Background()
	loads := 0
	loader := func(context.Context) ([]string, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	first := GetOrLoad(ctx, c, "templates_json", time.Hour, loader)
	if loads != 1 {
		t.Fatalf("first call: %d loads, want 1", loads)
	}
	if len(first) != 2 {
		t.Fatalf("first call returned %d items, want 2", len(first))
	}

	GetOrLoad(ctx, c, "templates_json", time.Hour, loader)
	if loads != 1 {
		t.Fatalf("second call within TTL: %d loads, want 1", loads)
	}

	c.Invalidate("templates_json")
	GetOrLoad(ctx, c, "templates_json", time.Hour, loader)
	if loads != 2 {
		t.Fatalf("call after invalidation: %d loads, want 2", loads)
	}
}

func TestGetOrLoadServesStaleOnLoaderFailure(t *testing.T) {
	c := testCache()
	ctx := context.Background()

	GetOrLoad(ctx, c, "celebrities_json", time.Hour, func(context.Context) ([]string, error) {
		return []string{"keanu-reeves"}, nil
	})

	// Expire the fresh copy; the no-expiry stale copy must survive.
	c.c.Delete("celebrities_json")

	got := GetOrLoad(ctx, c, "celebrities_json", time.Hour, func(context.Context) ([]string, error) {
		return nil, errors.New("upstream down")
	})
	if len(got) != 1 || got[0] != "keanu-reeves" {
		t.Fatalf("stale fallback = %v, want previous value", got)
	}
}

func TestGetOrLoadReturnsZeroWhenNothingCached(t *testing.T) {
	c := testCache()

	got := GetOrLoad(context.Background(), c, "celebrities_json", time.Hour, func(context.Context) ([]string, error) {
		return nil, errors.New("upstream down")
	})
	if got != nil {
		t.Fatalf("first failing load = %v, want empty", got)
	}
}

func TestFlushDropsEverything(t *testing.T) {
	c := testCache()
	ctx := context.Background()
	loads := 0
	loader := func(context.Context) (int, error) {
		loads++
		return 42, nil
	}

	GetOrLoad(ctx, c, "k", time.Hour, loader)
	c.Flush()
	GetOrLoad(ctx, c, "k", time.Hour, loader)
	if loads != 2 {
		t.Fatalf("loads after flush = %d, want 2", loads)
	}
}

func TestKeysExcludeStaleCopies(t *testing.T) {
	c := testCache()
	GetOrLoad(context.Background(), c, "templates_json", time.Hour, func(context.Context) (int, error) {
		return 1, nil
	})

	keys := c.Keys()
	if len(keys) != 1 || keys[0] != "templates_json" {
		t.Fatalf("Keys() = %v, want [templates_json]", keys)
	}
}
