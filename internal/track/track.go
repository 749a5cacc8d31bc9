package track

import (
	"fmt"
	"time"
)

// Track is a fully resolved, playable track descriptor.
// It is immutable once created; queue entries copy it by value.
type Track struct {
	// ID uniquely identifies this resolution of the track.
	// Two resolutions of the same video get different IDs.
	ID string

	// Title is the human-readable track title.
	Title string

	// SourceURI is the resolved audio stream location.
	// It may be short-lived (extraction services rotate URLs).
	SourceURI string

	// WebURL is the stable, user-facing page for the track.
	WebURL string

	// Duration is a best-effort estimate. Zero means unknown
	// (e.g. live radio streams).
	Duration time.Duration

	// RequestedBy is the username of the requester.
	RequestedBy string

	// Source names the backend that resolved the track.
	Source string
}

// Summary returns a one-line description suitable for queue listings.
func (t Track) Summary() string {
	if t.Duration <= 0 {
		return t.Title
	}
	return fmt.Sprintf("%s (%s)", t.Title, FormatDuration(t.Duration))
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
