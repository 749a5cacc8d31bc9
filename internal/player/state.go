package player

// State is the playback state of one guild player. It is owned and
// mutated only by the player's own goroutine.
type State int32

const (
	// Idle means nothing is playing and nothing is loading.
	Idle State = iota
	// Loading means the head track is being resolved and its frame
	// pipeline is starting.
	Loading
	// Playing means frames are being written at real-time cadence.
	Playing
	// Paused means playback is suspended with the frame cursor retained.
	Paused
	// Skipping is the transient state while the current frame buffer
	// is being discarded.
	Skipping
	// Stopped is the transient state while the queue is cleared and
	// the sink released; it settles into Idle.
	Stopped
	// Errored is the transient state while a mid-track failure is
	// being reported; it settles into Loading or Idle.
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Skipping:
		return "skipping"
	case Stopped:
		return "stopped"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}
