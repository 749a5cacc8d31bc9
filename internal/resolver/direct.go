package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/track"
)

const directBackendName = "direct"

// DirectBackend resolves plain http(s) URLs pointing at audio, such as
// internet radio streams or hosted files. Duration is unknown for
// these, which the player treats as a live stream.
type DirectBackend struct {
	httpClient *http.Client
}

func NewDirectBackend() *DirectBackend {
	return &DirectBackend{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *DirectBackend) Name() string { return directBackendName }

func (b *DirectBackend) Match(query string) bool {
	u, err := url.Parse(strings.TrimSpace(query))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (b *DirectBackend) Resolve(ctx context.Context, query string) (*track.Track, error) {
	query = strings.TrimSpace(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, query, nil)
	if err != nil {
		return nil, &ResolutionError{Kind: Unsupported, Query: query, cause: err}
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &ResolutionError{Kind: ExtractionFailed, Query: query, cause: err}
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ResolutionError{Kind: NotFound, Query: query}
	}
	if resp.StatusCode >= 400 {
		return nil, &ResolutionError{
			Kind:  ExtractionFailed,
			Query: query,
			cause: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAudioContentType(contentType) {
		return nil, &ResolutionError{
			Kind:  Unsupported,
			Query: query,
			cause: fmt.Errorf("content type %q is not audio", contentType),
		}
	}

	return &track.Track{
		Title:     titleFromURL(query),
		SourceURI: query,
		WebURL:    query,
	}, nil
}

func (b *DirectBackend) Open(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	return httpOpen(ctx, t.SourceURI)
}

var _ Backend = (*DirectBackend)(nil)

func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	// A few stream servers report generic types.
	switch {
	case strings.HasPrefix(contentType, "application/ogg"),
		strings.HasPrefix(contentType, "application/octet-stream"),
		strings.HasPrefix(contentType, "video/mp4"):
		return true
	}
	return false
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return u.Hostname()
	}
	return base
}

// streamClient has no overall timeout: a track legitimately streams
// for longer than any sane request timeout. Dial and TLS handshake
// are still bounded by the default transport.
var streamClient = &http.Client{}

// httpOpen opens a streaming GET against a resolved audio URL. The
// body is returned unread; the encoder pipeline consumes it.
func httpOpen(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to open audio stream: %s", resp.Status)
	}
	return resp.Body, nil
}
