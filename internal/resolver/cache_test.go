package resolver_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/resolver"
	"github.com/andrewms2013/veebot-discord/internal/track"
	goredis "github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type countingResolver struct {
	resolves int
	track    track.Track
}

func (c *countingResolver) Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error) {
	c.resolves++
	cp := c.track
	cp.ID = "fresh"
	cp.RequestedBy = requestedBy
	return &cp, nil
}

func (c *countingResolver) Open(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func TestCachingResolver(t *testing.T) {
	ctx := t.Context()
	redisContainer, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate redis container: %v", err)
		}
	}()

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: endpoint})
	defer rdb.Close()

	inner := &countingResolver{
		track: track.Track{
			Title:     "Song",
			SourceURI: "https://cdn.example.com/audio",
			WebURL:    "https://example.com/song",
			Duration:  3 * time.Minute,
			Source:    "stub",
		},
	}
	caching := resolver.NewCachingResolver(inner, rdb, time.Hour)

	first, err := caching.Resolve(ctx, "some query", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.resolves != 1 {
		t.Fatalf("expected one inner resolve, got %d", inner.resolves)
	}

	second, err := caching.Resolve(ctx, "some query", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("cache hit skips the inner resolver", func(t *testing.T) {
		if inner.resolves != 1 {
			t.Errorf("expected inner resolver untouched on hit, got %d resolves", inner.resolves)
		}
	})

	t.Run("cached track keeps metadata", func(t *testing.T) {
		if second.Title != first.Title || second.SourceURI != first.SourceURI || second.Duration != first.Duration {
			t.Errorf("cached track metadata diverged: %+v vs %+v", second, first)
		}
	})

	t.Run("cached track gets fresh identity", func(t *testing.T) {
		if second.ID == first.ID {
			t.Error("expected a fresh track id per resolution")
		}
		if second.RequestedBy != "bob" {
			t.Errorf("expected requester bob, got %q", second.RequestedBy)
		}
	})

	t.Run("different query misses", func(t *testing.T) {
		if _, err := caching.Resolve(ctx, "other query", "carol"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inner.resolves != 2 {
			t.Errorf("expected a second inner resolve, got %d", inner.resolves)
		}
	})
}
