package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/track"
	youtube "github.com/kkdai/youtube/v2"
)

const youtubeBackendName = "youtube"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeBackend resolves YouTube watch URLs, youtu.be short links and
// bare 11-character video ids into playable tracks.
type YouTubeBackend struct {
	client *youtube.Client
}

func NewYouTubeBackend() *YouTubeBackend {
	return &YouTubeBackend{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
		},
	}
}

func (b *YouTubeBackend) Name() string { return youtubeBackendName }

func (b *YouTubeBackend) Match(query string) bool {
	query = strings.TrimSpace(query)
	if videoIDPattern.MatchString(query) {
		return true
	}

	u, err := url.Parse(query)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

func (b *YouTubeBackend) Resolve(ctx context.Context, query string) (*track.Track, error) {
	videoID, err := inferVideoID(query)
	if err != nil {
		return nil, &ResolutionError{Kind: NotFound, Query: query, cause: err}
	}

	video, err := b.client.GetVideoContext(ctx, videoID)
	if err != nil {
		var playErr *youtube.ErrPlayabiltyStatus
		if errors.As(err, &playErr) {
			return nil, &ResolutionError{Kind: NotFound, Query: query, cause: err}
		}
		return nil, &ResolutionError{Kind: ExtractionFailed, Query: query, cause: err}
	}

	format, err := pickAudioFormat(video)
	if err != nil {
		return nil, &ResolutionError{Kind: ExtractionFailed, Query: query, cause: err}
	}

	streamURL, err := b.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, &ResolutionError{Kind: ExtractionFailed, Query: query, cause: err}
	}

	return &track.Track{
		Title:     video.Title,
		SourceURI: streamURL,
		WebURL:    "https://www.youtube.com/watch?v=" + video.ID,
		Duration:  video.Duration,
	}, nil
}

// Open performs a plain GET against the resolved stream URL. The URL
// may have expired since resolution; that surfaces as a stream error
// at read time, not here.
func (b *YouTubeBackend) Open(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	return httpOpen(ctx, t.SourceURI)
}

var _ Backend = (*YouTubeBackend)(nil)

// inferVideoID extracts a video id from a watch URL, short link or
// bare id.
func inferVideoID(query string) (string, error) {
	query = strings.TrimSpace(query)
	if videoIDPattern.MatchString(query) {
		return query, nil
	}
	return youtube.ExtractVideoID(query)
}

// pickAudioFormat prefers audio-only formats, falling back to any
// format carrying audio channels.
func pickAudioFormat(video *youtube.Video) (*youtube.Format, error) {
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil, errors.New("no audio formats available")
	}
	formats.Sort()
	return &formats[0], nil
}
