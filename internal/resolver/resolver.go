// Package resolver turns user-supplied queries into resolved, playable
// track descriptors. Resolution is network-bound and may take seconds;
// callers run it off their own event-handling path.
package resolver

import (
	"context"
	"fmt"
	"io"

	"github.com/andrewms2013/veebot-discord/internal/generator"
	"github.com/andrewms2013/veebot-discord/internal/track"
)

// Kind classifies why a query could not be resolved.
type Kind int

const (
	// NotFound means the query looked valid but matched nothing.
	NotFound Kind = iota
	// ExtractionFailed means the extraction service errored.
	ExtractionFailed
	// Unsupported means no backend handles this kind of query.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case ExtractionFailed:
		return "extraction failed"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ResolutionError is a query that could not be turned into a track.
// It is reported to the user; the queue is unaffected.
type ResolutionError struct {
	Kind  Kind
	Query string
	cause error
}

func (e *ResolutionError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("failed to resolve %q: %s", e.Query, e.Kind)
	}
	return fmt.Sprintf("failed to resolve %q: %s: %v", e.Query, e.Kind, e.cause)
}

func (e *ResolutionError) Unwrap() error { return e.cause }

var _ error = (*ResolutionError)(nil)

// Backend is one extraction source. Backends are tried in order; the
// first whose Match accepts the query resolves it.
type Backend interface {
	// Name is the stable identifier recorded on resolved tracks.
	Name() string

	// Match reports whether this backend can handle the query.
	Match(query string) bool

	// Resolve turns the query into a track descriptor. The audio
	// stream itself is not opened here.
	Resolve(ctx context.Context, query string) (*track.Track, error)

	// Open lazily opens the track's audio stream for consumption by
	// the encoder pipeline.
	Open(ctx context.Context, t *track.Track) (io.ReadCloser, error)
}

// Resolver fans a query out to the first matching backend.
type Resolver struct {
	backends []Backend
	ids      generator.Generator[string]
}

// New creates a Resolver over the given backends, tried in order.
func New(backends ...Backend) *Resolver {
	return &Resolver{
		backends: backends,
		ids:      &generator.UUIDV4Generator{},
	}
}

// NewDefault creates a Resolver with the standard backend set:
// YouTube first, then direct audio URLs.
func NewDefault() *Resolver {
	return New(NewYouTubeBackend(), NewDirectBackend())
}

// Resolve produces a resolved track for the query, stamped with a
// fresh id and the requester.
func (r *Resolver) Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error) {
	for _, backend := range r.backends {
		if !backend.Match(query) {
			continue
		}

		resolved, err := backend.Resolve(ctx, query)
		if err != nil {
			return nil, err
		}

		id, err := r.ids.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate track id: %w", err)
		}
		resolved.ID = id
		resolved.RequestedBy = requestedBy
		resolved.Source = backend.Name()
		return resolved, nil
	}

	return nil, &ResolutionError{Kind: Unsupported, Query: query}
}

// Open opens the audio stream of a previously resolved track using the
// backend that resolved it.
func (r *Resolver) Open(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	for _, backend := range r.backends {
		if backend.Name() == t.Source {
			return backend.Open(ctx, t)
		}
	}
	return nil, &ResolutionError{Kind: Unsupported, Query: t.WebURL}
}
