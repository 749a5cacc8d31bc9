package handler

import (
	"errors"
	"fmt"

	"github.com/andrewms2013/veebot-discord/internal/player"
	"github.com/andrewms2013/veebot-discord/internal/resolver"
)

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

// userMessage maps an error to a message safe and useful to show the
// invoking user. It returns false for internal errors, which are shown
// only as an opaque reference ID.
func userMessage(err error) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Message, true
	}

	var resolveErr *resolver.ResolutionError
	if errors.As(err, &resolveErr) {
		switch resolveErr.Kind {
		case resolver.NotFound:
			return fmt.Sprintf("Nothing found for %q.", resolveErr.Query), true
		case resolver.Unsupported:
			return fmt.Sprintf("I don't know how to play %q. Give me a YouTube link or a direct audio URL.", resolveErr.Query), true
		case resolver.ExtractionFailed:
			return "That track could not be extracted. It may be private or region-locked.", true
		}
	}

	var posErr *player.PositionError
	if errors.As(err, &posErr) {
		return fmt.Sprintf("Position %d does not exist, the queue has %d entries.",
			posErr.Position, posErr.Length), true
	}

	switch {
	case errors.Is(err, player.ErrQueueFull):
		return "The queue is full.", true
	case errors.Is(err, player.ErrQueueEmpty):
		return "Nothing is queued.", true
	case errors.Is(err, player.ErrNotPlaying):
		return "Nothing is playing.", true
	case errors.Is(err, player.ErrNotPaused):
		return "Playback is not paused.", true
	case errors.Is(err, player.ErrCurrentTrack):
		return "That entry is currently playing. Skip it instead.", true
	}

	return "", false
}
