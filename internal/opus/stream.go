package opus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"
)

// Silence is the Opus frame decoders interpret as silence. It is sent
// when the encoder cannot keep up with the real-time cadence, so the
// sink never receives frames early.
var Silence = []byte{0xF8, 0xFF, 0xFE}

// ErrStreamTimeout is returned by FrameStream.Next when no frame
// arrived within the bounded wait. It is not a terminal condition;
// callers re-check for pending cancellation and pull again.
var ErrStreamTimeout = errors.New("timed out waiting for next frame")

// StreamErrorKind classifies why a frame sequence terminated early.
type StreamErrorKind int

const (
	// SourceClosed means the raw audio source dropped mid-track.
	SourceClosed StreamErrorKind = iota
	// DecodeFailed means the transcode produced unreadable output.
	DecodeFailed
)

func (k StreamErrorKind) String() string {
	switch k {
	case SourceClosed:
		return "source closed"
	case DecodeFailed:
		return "decode failed"
	default:
		return "unknown"
	}
}

// StreamError is a mid-track failure. It terminates the frame sequence
// early and must be treated as end-of-track-with-error, not a clean
// end-of-track.
type StreamError struct {
	Kind  StreamErrorKind
	cause error
}

func (e *StreamError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("stream error: %s", e.Kind)
	}
	return fmt.Sprintf("stream error: %s: %v", e.Kind, e.cause)
}

func (e *StreamError) Unwrap() error { return e.cause }

var _ error = (*StreamError)(nil)

// classifyStreamError maps a raw read/decode failure to a StreamError.
// Network-level failures mean the source dropped; everything else is a
// decode problem.
func classifyStreamError(err error) *StreamError {
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return &StreamError{Kind: SourceClosed, cause: err}
	}
	return &StreamError{Kind: DecodeFailed, cause: err}
}

// FrameStream is a lazy, finite, non-restartable sequence of encoded
// frames pulled ahead of real-time playback need. A background
// goroutine fills a bounded buffer from the source; Next hands frames
// out one at a time with a bounded wait.
type FrameStream struct {
	frames chan []byte
	src    io.ReadCloser

	mu       sync.Mutex
	terminal error // set before frames is closed

	closeOnce sync.Once
	done      chan struct{}
}

// NewFrameStream starts buffering length-prefixed Opus frames from src.
// lookahead bounds how many frames are decoded ahead of playback.
// Closing the stream closes src.
func NewFrameStream(src io.ReadCloser, lookahead int) *FrameStream {
	if lookahead <= 0 {
		lookahead = 64
	}
	fs := &FrameStream{
		frames: make(chan []byte, lookahead),
		src:    src,
		done:   make(chan struct{}),
	}
	go fs.fill()
	return fs
}

func (fs *FrameStream) fill() {
	defer close(fs.frames)

	reader := NewFrameReader(fs.src)
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return // clean end of track
			}
			// A frame cut short means the source died mid-body; a
			// healthy encode always ends on a frame boundary.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				fs.setTerminal(&StreamError{Kind: SourceClosed, cause: err})
				return
			}
			fs.setTerminal(classifyStreamError(err))
			return
		}

		select {
		case fs.frames <- frame:
		case <-fs.done:
			return
		}
	}
}

func (fs *FrameStream) setTerminal(err error) {
	fs.mu.Lock()
	fs.terminal = err
	fs.mu.Unlock()
}

// Next returns the next frame in source order. It waits at most
// timeout for a frame to become available, returning ErrStreamTimeout
// if the source stalled. When the sequence is exhausted it returns
// io.EOF on a clean end, or the terminal *StreamError otherwise.
func (fs *FrameStream) Next(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-fs.frames:
		if !ok {
			fs.mu.Lock()
			terminal := fs.terminal
			fs.mu.Unlock()
			if terminal != nil {
				return nil, terminal
			}
			return nil, io.EOF
		}
		return frame, nil
	case <-timer.C:
		return nil, ErrStreamTimeout
	}
}

// Close tears down the stream and the underlying source. Buffered
// frames are discarded; the sequence cannot be restarted.
func (fs *FrameStream) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.done)
		err = fs.src.Close()
	})
	return err
}
