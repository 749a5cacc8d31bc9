package presenters

import (
	"fmt"

	"github.com/andrewms2013/veebot-discord/internal/player"
)

// FormatEvent renders an asynchronous player notice as a plain
// message. It returns empty for events that need no announcement.
func FormatEvent(event player.Event) string {
	switch event.Kind {
	case player.EventNowPlaying:
		if event.Track == nil {
			return ""
		}
		return fmt.Sprintf("Now playing: %s", trackLink(*event.Track))
	case player.EventTrackFailed:
		if event.Track == nil || event.Track.Title == "" {
			return "A track failed to play."
		}
		return fmt.Sprintf("Could not play **%s**, moving on.", event.Track.Title)
	case player.EventQueueFinished:
		return "Queue finished."
	case player.EventSinkLost:
		return "Lost the voice connection. Use /play to start again."
	default:
		return ""
	}
}
