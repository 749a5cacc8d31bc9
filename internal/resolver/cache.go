package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/generator"
	"github.com/andrewms2013/veebot-discord/internal/track"
	"github.com/redis/go-redis/v9"
)

// TrackResolver is the resolution surface the player depends on.
// *Resolver implements it; CachingResolver decorates it.
type TrackResolver interface {
	Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error)
	Open(ctx context.Context, t *track.Track) (io.ReadCloser, error)
}

var _ TrackResolver = (*Resolver)(nil)

// cachedTrack is the subset of a track worth reusing between
// resolutions of the same query. ID and requester are per-request.
type cachedTrack struct {
	Title     string        `json:"title"`
	SourceURI string        `json:"source_uri"`
	WebURL    string        `json:"web_url"`
	Duration  time.Duration `json:"duration"`
	Source    string        `json:"source"`
}

// CachingResolver caches successful resolutions in Redis keyed by the
// raw query. Cache failures degrade to direct resolution; a broken
// Redis never fails a resolve.
type CachingResolver struct {
	inner TrackResolver
	rdb   *redis.Client
	ttl   time.Duration
	ids   generator.Generator[string]
}

func NewCachingResolver(inner TrackResolver, rdb *redis.Client, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		ids:   &generator.UUIDV4Generator{},
	}
}

func cacheKey(query string) string {
	return "resolve:" + query
}

func (c *CachingResolver) Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error) {
	if cached, ok := c.lookup(ctx, query); ok {
		id, err := c.ids.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate track id: %w", err)
		}
		return &track.Track{
			ID:          id,
			Title:       cached.Title,
			SourceURI:   cached.SourceURI,
			WebURL:      cached.WebURL,
			Duration:    cached.Duration,
			RequestedBy: requestedBy,
			Source:      cached.Source,
		}, nil
	}

	resolved, err := c.inner.Resolve(ctx, query, requestedBy)
	if err != nil {
		return nil, err
	}

	c.store(ctx, query, resolved)
	return resolved, nil
}

func (c *CachingResolver) Open(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	return c.inner.Open(ctx, t)
}

func (c *CachingResolver) lookup(ctx context.Context, query string) (*cachedTrack, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("resolution cache lookup failed", "query", query, "error", err)
		}
		return nil, false
	}

	var cached cachedTrack
	if err := json.Unmarshal(raw, &cached); err != nil {
		slog.Warn("resolution cache entry is corrupt", "query", query, "error", err)
		return nil, false
	}
	return &cached, true
}

func (c *CachingResolver) store(ctx context.Context, query string, t *track.Track) {
	raw, err := json.Marshal(cachedTrack{
		Title:     t.Title,
		SourceURI: t.SourceURI,
		WebURL:    t.WebURL,
		Duration:  t.Duration,
		Source:    t.Source,
	})
	if err != nil {
		slog.Warn("failed to marshal resolution cache entry", "query", query, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, cacheKey(query), raw, c.ttl).Err(); err != nil {
		slog.Warn("failed to store resolution cache entry", "query", query, "error", err)
	}
}

var _ TrackResolver = (*CachingResolver)(nil)
