package player

import (
	"slices"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/track"
)

// Entry wraps a track with its queue placement metadata.
type Entry struct {
	Track      track.Track
	EnqueuedAt time.Time
}

// Queue is the ordered playback queue of one guild. It is a passive
// data structure: it signals nothing and is accessed only from its
// owning player goroutine, so it needs no locking.
//
// The head entry is the current track while one is being streamed.
// Ordering is strict FIFO unless explicitly reordered.
//
// Backed by a plain slice: with the queue capped at a few hundred
// entries, linear removal stays in the microsecond range and never
// competes with the 20ms frame cadence of the loop that calls it.
type Queue struct {
	entries []Entry
	max     int
}

// NewQueue creates a queue bounded at max entries.
func NewQueue(max int) *Queue {
	return &Queue{max: max}
}

// Enqueue appends an entry and returns its position.
// Returns ErrQueueFull when the queue is at capacity, leaving the
// queue unchanged.
func (q *Queue) Enqueue(e Entry) (int, error) {
	if len(q.entries) >= q.max {
		return 0, ErrQueueFull
	}
	q.entries = append(q.entries, e)
	return len(q.entries) - 1, nil
}

// Remove deletes the entry at position and returns its track.
func (q *Queue) Remove(position int) (track.Track, error) {
	if position < 0 || position >= len(q.entries) {
		return track.Track{}, &PositionError{Position: position, Length: len(q.entries)}
	}
	removed := q.entries[position]
	q.entries = slices.Delete(q.entries, position, position+1)
	return removed.Track, nil
}

// PopCurrent drops the head entry. It returns the new head track if
// one exists. Returns ErrQueueEmpty if the queue was already empty.
func (q *Queue) PopCurrent() (*track.Track, error) {
	if len(q.entries) == 0 {
		return nil, ErrQueueEmpty
	}
	q.entries = q.entries[1:]
	if len(q.entries) == 0 {
		return nil, nil
	}
	next := q.entries[0].Track
	return &next, nil
}

// PeekCurrent returns the head track without removing it.
func (q *Queue) PeekCurrent() (track.Track, bool) {
	if len(q.entries) == 0 {
		return track.Track{}, false
	}
	return q.entries[0].Track, true
}

// Reorder moves the entry at from to position to, shifting the
// entries in between.
func (q *Queue) Reorder(from, to int) error {
	if from < 0 || from >= len(q.entries) {
		return &PositionError{Position: from, Length: len(q.entries)}
	}
	if to < 0 || to >= len(q.entries) {
		return &PositionError{Position: to, Length: len(q.entries)}
	}
	if from == to {
		return nil
	}

	entry := q.entries[from]
	q.entries = slices.Delete(q.entries, from, from+1)
	q.entries = slices.Insert(q.entries, to, entry)
	return nil
}

// Clear removes every entry.
func (q *Queue) Clear() {
	q.entries = nil
}

// ClearUpcoming removes every entry except the head.
func (q *Queue) ClearUpcoming() {
	if len(q.entries) > 1 {
		q.entries = q.entries[:1]
	}
}

// List returns a copy of the entries in queue order.
func (q *Queue) List() []Entry {
	return slices.Clone(q.entries)
}

// Len returns the number of entries, including the current one.
func (q *Queue) Len() int {
	return len(q.entries)
}
