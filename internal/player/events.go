package player

import "github.com/andrewms2013/veebot-discord/internal/track"

// EventKind classifies asynchronous player notifications.
type EventKind int

const (
	// EventNowPlaying fires when a track starts streaming.
	EventNowPlaying EventKind = iota
	// EventTrackFailed fires when a track could not be loaded or died
	// mid-stream. The player auto-advances; Err carries the cause.
	EventTrackFailed
	// EventQueueFinished fires when the last queued track ended
	// cleanly and the player went idle.
	EventQueueFinished
	// EventSinkLost fires when the voice transport dropped. The player
	// resets to idle and is not retried automatically.
	EventSinkLost
)

// Event is an asynchronous notification from a guild player. Events
// drive the user-visible notices; every error kind surfaces as
// exactly one event or one command reply, never silently.
type Event struct {
	GuildID string
	Kind    EventKind
	Track   *track.Track
	Err     error
}
