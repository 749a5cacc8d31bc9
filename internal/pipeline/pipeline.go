// Package pipeline turns resolved tracks into playable frame
// sequences, caching the encoded frames in blob storage so repeated
// plays of the same track skip the transcode entirely.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/datalayer"
	"github.com/andrewms2013/veebot-discord/internal/opus"
	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/track"
)

var errEncodeAborted = errors.New("encode aborted before completion")

// Opener provides the raw audio of a resolved track.
type Opener interface {
	Open(ctx context.Context, t *track.Track) (io.ReadCloser, error)
}

// Options tune the encoder.
type Options struct {
	// Bitrate in bits per second. Zero means the opus default.
	Bitrate int
	// Lookahead is how many frames are buffered ahead of playback.
	// Zero means 64.
	Lookahead int
}

func (o Options) lookahead() int {
	if o.Lookahead <= 0 {
		return 64
	}
	return o.Lookahead
}

// Encoder opens track audio and encodes it to opus frames. Blobs may
// be nil, in which case every play transcodes from scratch.
type Encoder struct {
	opener Opener
	blobs  datalayer.BlobStorage
	opts   Options
}

var _ player.Pipeline = (*Encoder)(nil)

// NewEncoder builds the frame pipeline.
func NewEncoder(opener Opener, blobs datalayer.BlobStorage, opts Options) *Encoder {
	return &Encoder{opener: opener, blobs: blobs, opts: opts}
}

// Start returns the track's frame sequence, from the blob cache when
// the exact track and volume were encoded before.
func (e *Encoder) Start(ctx context.Context, t track.Track, volume int) (player.FrameSequence, error) {
	key := frameKey(t, volume)

	if e.blobs != nil {
		cached, err := e.blobs.Get(ctx, key)
		if err == nil {
			slog.Debug("serving encoded frames from blob cache",
				"track", t.Title, "key", key)
			return opus.NewFrameStream(cached, e.opts.lookahead()), nil
		}
		if !errors.Is(err, datalayer.ErrNoSuchKey) {
			slog.Warn("blob cache lookup failed, transcoding instead",
				"track", t.Title, "error", err)
		}
	}

	src, err := e.opener.Open(ctx, &t)
	if err != nil {
		return nil, fmt.Errorf("unable to open track audio: %w", err)
	}

	encoded, err := opus.Encode(src, opus.EncodeOptions{
		Bitrate: e.opts.Bitrate,
		Volume:  volume,
	})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("unable to start transcode: %w", err)
	}

	if e.blobs != nil {
		encoded = e.teeToCache(encoded, key)
	}
	return opus.NewFrameStream(encoded, e.opts.lookahead()), nil
}

// teeToCache mirrors the encoded byte stream into blob storage while
// it is consumed. If consumption stops before EOF the upload is
// aborted, so only complete encodes are ever cached.
func (e *Encoder) teeToCache(encoded io.ReadCloser, key string) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		err := e.blobs.Put(ctx, key, pr, datalayer.PutOptions{
			Size:        -1,
			ContentType: "application/octet-stream",
		})
		pr.CloseWithError(err)
		if err != nil && !errors.Is(err, errEncodeAborted) {
			slog.Warn("failed to cache encoded frames", "key", key, "error", err)
		}
	}()

	return &cachingReader{
		src: encoded,
		tee: io.TeeReader(encoded, pw),
		pw:  pw,
	}
}

type cachingReader struct {
	src io.ReadCloser
	tee io.Reader
	pw  *io.PipeWriter
	eof bool
}

func (c *cachingReader) Read(p []byte) (int, error) {
	n, err := c.tee.Read(p)
	if errors.Is(err, io.EOF) && !c.eof {
		c.eof = true
		c.pw.Close()
	}
	return n, err
}

func (c *cachingReader) Close() error {
	if !c.eof {
		c.pw.CloseWithError(errEncodeAborted)
	}
	return c.src.Close()
}

// frameKey derives the blob key for a track at a volume. The web URL
// is the stable identity; resolved stream URIs expire.
func frameKey(t track.Track, volume int) string {
	sum := sha256.Sum256([]byte(t.WebURL))
	return fmt.Sprintf("frames/%s/v%d", hex.EncodeToString(sum[:16]), volume)
}
