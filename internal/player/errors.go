package player

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by enqueue when the queue is at its
	// configured maximum. The queue is left unchanged.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueEmpty is returned by skip and peek when nothing is queued.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrNotPlaying is returned by pause when no track is playing.
	ErrNotPlaying = errors.New("no track is currently playing")

	// ErrNotPaused is returned by resume when playback is not paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrCurrentTrack is returned by remove and reorder when the
	// operation targets the entry that is currently being streamed.
	ErrCurrentTrack = errors.New("cannot modify the currently playing entry, skip it instead")

	// ErrPlayerClosed is returned by all operations after the player
	// has been shut down.
	ErrPlayerClosed = errors.New("player is closed")
)

// PositionError is a user-supplied queue position that does not exist.
type PositionError struct {
	Position int
	Length   int
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position %d is out of bounds, queue has %d entries", e.Position, e.Length)
}

var _ error = (*PositionError)(nil)

// SinkOpenError is a failure to open the voice sink. It is
// session-level: the player returns to idle and playback requires the
// user to reinvoke it.
type SinkOpenError struct {
	cause error
}

func (e *SinkOpenError) Error() string {
	return fmt.Sprintf("failed to open voice sink: %v", e.cause)
}

func (e *SinkOpenError) Unwrap() error { return e.cause }

var _ error = (*SinkOpenError)(nil)
