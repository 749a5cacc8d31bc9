// Package player implements the per-guild playback engine: an ordered
// queue, a state machine driven by a single command channel, and a
// real-time-cadence playback loop feeding a voice sink.
package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/metrics"
	"github.com/andrewms2013/veebot-discord/internal/opus"
	"github.com/andrewms2013/veebot-discord/internal/resolver"
	"github.com/andrewms2013/veebot-discord/internal/track"
)

// Sink is the outbound real-time audio channel to a guild's voice
// gateway. Any write error means the transport is gone.
type Sink interface {
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// SinkProvider opens a sink into a specific voice channel.
type SinkProvider interface {
	Open(ctx context.Context, guildID, channelID string) (Sink, error)
}

// FrameSequence is a lazy, finite, non-restartable sequence of encoded
// audio frames. opus.FrameStream is the production implementation.
type FrameSequence interface {
	// Next waits at most timeout for the next frame, returning
	// opus.ErrStreamTimeout on a stall, io.EOF on a clean end, or a
	// terminal *opus.StreamError.
	Next(timeout time.Duration) ([]byte, error)
	Close() error
}

// Pipeline opens a track's raw audio and produces its frame sequence.
type Pipeline interface {
	Start(ctx context.Context, t track.Track, volume int) (FrameSequence, error)
}

// TrackResolver turns user queries into resolved tracks.
type TrackResolver interface {
	Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error)
}

// Recorder persists how tracks left the player. Implementations must
// tolerate being called from short-lived goroutines.
type Recorder interface {
	Record(ctx context.Context, guildID string, t track.Track, outcome Outcome) error
}

// Outcome is how a track left the player.
type Outcome string

const (
	OutcomePlayed  Outcome = "played"
	OutcomeSkipped Outcome = "skipped"
	OutcomeErrored Outcome = "errored"
	OutcomeStopped Outcome = "stopped"
)

// Config holds the playback engine knobs.
type Config struct {
	// FrameDuration is the nominal duration of one frame. Frame N is
	// never written earlier than start + N*FrameDuration.
	FrameDuration time.Duration
	// QueueMax bounds the queue length.
	QueueMax int
	// PullTimeout bounds each wait on the frame pipeline. Zero means
	// one frame duration, which keeps command latency at one frame
	// interval even when the source stalls.
	PullTimeout time.Duration
	// StallTolerance is how many consecutive pull timeouts are held
	// as silence before the track is declared dead.
	StallTolerance int
}

func (c Config) withDefaults() Config {
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	if c.QueueMax <= 0 {
		c.QueueMax = 256
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = c.FrameDuration
	}
	if c.StallTolerance <= 0 {
		c.StallTolerance = 250
	}
	return c
}

// Deps are the player's collaborators. Resolver, Pipeline and Sinks
// are required; History and Metrics may be nil.
type Deps struct {
	Resolver TrackResolver
	Pipeline Pipeline
	Sinks    SinkProvider
	History  Recorder
	Metrics  *metrics.Metrics
}

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdEnqueueResolved
	cmdSkip
	cmdPause
	cmdResume
	cmdStop
	cmdRemove
	cmdReorder
	cmdClear
	cmdList
	cmdNow
	cmdSetVolume
)

type command struct {
	kind cmdKind

	query       string
	requestedBy string
	channelID   string

	resolved   *track.Track
	resolveErr error

	pos, from, to int
	volume        int

	reply chan response
}

type response struct {
	pos     int
	removed track.Track
	next    *track.Track
	entries []Entry
	state   State
	current *track.Track
	volume  int
	err     error
}

type loadResult struct {
	gen  uint64
	seq  FrameSequence
	sink Sink
	err  error
}

// Player is the concurrency unit owning one guild's playback. All
// mutation flows through a single ordered command channel into one
// goroutine; commands take effect in arrival order.
type Player struct {
	guildID string
	cfg     Config
	deps    Deps

	cmds   chan command
	loads  chan loadResult
	events chan Event

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	// mirrors for the registry sweep, updated by the loop only
	stateMirror    atomic.Int32
	queueLenMirror atomic.Int32
	lastActive     atomic.Int64 // unix nanos
}

// New creates a guild player and starts its goroutine.
func New(guildID string, cfg Config, deps Deps) *Player {
	p := &Player{
		guildID: guildID,
		cfg:     cfg.withDefaults(),
		deps:    deps,
		cmds:    make(chan command),
		loads:   make(chan loadResult),
		events:  make(chan Event, 16),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.lastActive.Store(time.Now().UnixNano())
	go p.run()
	return p
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Events returns the player's notification channel. It is closed when
// the player shuts down.
func (p *Player) Events() <-chan Event { return p.events }

// State returns a snapshot of the player state.
func (p *Player) State() State { return State(p.stateMirror.Load()) }

// IdleFor returns how long the player has been idle with an empty
// queue, or zero if it is doing anything.
func (p *Player) IdleFor(now time.Time) time.Duration {
	if State(p.stateMirror.Load()) != Idle || p.queueLenMirror.Load() != 0 {
		return 0
	}
	return now.Sub(time.Unix(0, p.lastActive.Load()))
}

// Play resolves the query and enqueues the result, returning its
// queue position. It blocks the caller for the duration of the
// resolution, never the player loop; a user can skip a track that is
// still resolving.
func (p *Player) Play(ctx context.Context, query, requestedBy, voiceChannelID string) (int, error) {
	res, err := p.do(ctx, command{
		kind:        cmdPlay,
		query:       query,
		requestedBy: requestedBy,
		channelID:   voiceChannelID,
	})
	return res.pos, err
}

// Skip discards the current track and advances to the next queued one.
// It returns the next track, or nil if the queue is now empty.
func (p *Player) Skip(ctx context.Context) (*track.Track, error) {
	res, err := p.do(ctx, command{kind: cmdSkip})
	return res.next, err
}

// Pause suspends playback, retaining the frame cursor.
func (p *Player) Pause(ctx context.Context) error {
	_, err := p.do(ctx, command{kind: cmdPause})
	return err
}

// Resume continues playback from the retained frame cursor.
func (p *Player) Resume(ctx context.Context) error {
	_, err := p.do(ctx, command{kind: cmdResume})
	return err
}

// Stop clears the queue, releases the sink and returns to idle.
func (p *Player) Stop(ctx context.Context) error {
	_, err := p.do(ctx, command{kind: cmdStop})
	return err
}

// Remove deletes the queue entry at position (0 is the current track,
// which cannot be removed while active).
func (p *Player) Remove(ctx context.Context, position int) (track.Track, error) {
	res, err := p.do(ctx, command{kind: cmdRemove, pos: position})
	return res.removed, err
}

// Reorder moves the queue entry at from to position to.
func (p *Player) Reorder(ctx context.Context, from, to int) error {
	_, err := p.do(ctx, command{kind: cmdReorder, from: from, to: to})
	return err
}

// Clear removes every queued entry except the current one.
func (p *Player) Clear(ctx context.Context) error {
	_, err := p.do(ctx, command{kind: cmdClear})
	return err
}

// List returns the queue in order, current track first.
func (p *Player) List(ctx context.Context) ([]Entry, error) {
	res, err := p.do(ctx, command{kind: cmdList})
	return res.entries, err
}

// Now returns the current track and state.
func (p *Player) Now(ctx context.Context) (*track.Track, State, error) {
	res, err := p.do(ctx, command{kind: cmdNow})
	return res.current, res.state, err
}

// SetVolume sets the volume percentage (clamped to 0..200). It takes
// effect from the next track.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	_, err := p.do(ctx, command{kind: cmdSetVolume, volume: volume})
	return err
}

// Shutdown stops the player goroutine, releasing the sink and any
// in-flight pipeline. It waits for the loop to exit or ctx.
func (p *Player) Shutdown(ctx context.Context) error {
	p.quitOnce.Do(func() { close(p.quit) })

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) do(ctx context.Context, cmd command) (response, error) {
	cmd.reply = make(chan response, 1)

	select {
	case p.cmds <- cmd:
	case <-p.done:
		return response{}, ErrPlayerClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-p.done:
		return response{}, ErrPlayerClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// loop is the state owned exclusively by the run goroutine.
type loop struct {
	p *Player

	state State
	queue *Queue

	sink      Sink
	channelID string
	volume    int

	seq        FrameSequence
	startTime  time.Time
	frameIdx   int
	stalls     int
	frameTimer *time.Timer

	gen        uint64
	loadCancel context.CancelFunc

	resolveCtx    context.Context
	resolveCancel context.CancelFunc
}

func (p *Player) run() {
	defer close(p.done)

	resolveCtx, resolveCancel := context.WithCancel(context.Background())
	l := &loop{
		p:             p,
		state:         Idle,
		queue:         NewQueue(p.cfg.QueueMax),
		volume:        100,
		frameTimer:    time.NewTimer(time.Hour),
		resolveCtx:    resolveCtx,
		resolveCancel: resolveCancel,
	}
	l.frameTimer.Stop()

	defer func() {
		l.resolveCancel()
		if l.loadCancel != nil {
			l.loadCancel()
		}
		if l.seq != nil {
			l.seq.Close()
		}
		if l.sink != nil {
			l.sink.Close()
		}
		close(p.events)
	}()

	for {
		select {
		case cmd := <-p.cmds:
			l.handleCommand(cmd)
		case res := <-p.loads:
			l.handleLoad(res)
		case <-l.frameTimer.C:
			l.emitFrame()
		case <-p.quit:
			return
		}
	}
}

func (l *loop) setState(s State) {
	l.state = s
	l.p.stateMirror.Store(int32(s))
	l.p.queueLenMirror.Store(int32(l.queue.Len()))
	l.p.lastActive.Store(time.Now().UnixNano())
}

func (l *loop) emit(kind EventKind, t *track.Track, err error) {
	event := Event{GuildID: l.p.guildID, Kind: kind, Track: t, Err: err}
	select {
	case l.p.events <- event:
	default:
		slog.Warn("player event dropped, channel full",
			"guildID", l.p.guildID, "kind", int(kind))
	}
}

func (l *loop) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdPlay:
		l.handlePlay(cmd)
	case cmdEnqueueResolved:
		l.handleEnqueueResolved(cmd)
	case cmdSkip:
		l.handleSkip(cmd)
	case cmdPause:
		l.handlePause(cmd)
	case cmdResume:
		l.handleResume(cmd)
	case cmdStop:
		l.handleStop(cmd)
	case cmdRemove:
		l.handleRemove(cmd)
	case cmdReorder:
		l.handleReorder(cmd)
	case cmdClear:
		l.queue.ClearUpcoming()
		l.p.queueLenMirror.Store(int32(l.queue.Len()))
		cmd.reply <- response{}
	case cmdList:
		cmd.reply <- response{entries: l.queue.List(), state: l.state}
	case cmdNow:
		l.handleNow(cmd)
	case cmdSetVolume:
		l.volume = clampVolume(cmd.volume)
		cmd.reply <- response{volume: l.volume}
	}
}

// handlePlay launches the resolution off-loop. The result re-enters
// the command channel as cmdEnqueueResolved, so it is ordered with
// every other command.
func (l *loop) handlePlay(cmd command) {
	p := l.p
	rctx := l.resolveCtx
	go func() {
		resolved, err := p.deps.Resolver.Resolve(rctx, cmd.query, cmd.requestedBy)
		if p.deps.Metrics != nil {
			p.deps.Metrics.IncResolutions(resolutionOutcome(err))
		}

		next := command{
			kind:       cmdEnqueueResolved,
			resolved:   resolved,
			resolveErr: err,
			channelID:  cmd.channelID,
			reply:      cmd.reply,
		}
		select {
		case p.cmds <- next:
		case <-p.quit:
			cmd.reply <- response{err: ErrPlayerClosed}
		}
	}()
}

func (l *loop) handleEnqueueResolved(cmd command) {
	if cmd.resolveErr != nil {
		cmd.reply <- response{err: cmd.resolveErr}
		return
	}

	pos, err := l.queue.Enqueue(Entry{Track: *cmd.resolved, EnqueuedAt: time.Now()})
	if err != nil {
		cmd.reply <- response{err: err}
		return
	}
	l.p.queueLenMirror.Store(int32(l.queue.Len()))
	l.channelID = cmd.channelID

	if l.state == Idle {
		l.startLoading()
	}
	cmd.reply <- response{pos: pos}
}

func (l *loop) handleSkip(cmd command) {
	switch l.state {
	case Playing, Paused:
		l.setState(Skipping)
		l.stopPlayback()
		l.record(l.currentOrZero(), OutcomeSkipped)
		l.advance(cmd)
	case Loading:
		l.cancelLoad()
		l.advance(cmd)
	default:
		cmd.reply <- response{err: ErrQueueEmpty}
	}
}

// advance pops the head and either loads the next track or goes idle.
func (l *loop) advance(cmd command) {
	next, err := l.queue.PopCurrent()
	if err != nil {
		l.setState(Idle)
		cmd.reply <- response{err: ErrQueueEmpty}
		return
	}
	if next == nil {
		l.setState(Idle)
		cmd.reply <- response{}
		return
	}
	l.startLoading()
	cmd.reply <- response{next: next}
}

func (l *loop) handlePause(cmd command) {
	if l.state != Playing {
		cmd.reply <- response{err: ErrNotPlaying}
		return
	}
	l.frameTimer.Stop()
	l.setState(Paused)
	cmd.reply <- response{}
}

func (l *loop) handleResume(cmd command) {
	if l.state != Paused {
		cmd.reply <- response{err: ErrNotPaused}
		return
	}
	// Rebase the schedule so the next frame is due immediately; the
	// cursor itself is untouched, so no frame is dropped or repeated.
	l.startTime = time.Now().Add(-time.Duration(l.frameIdx) * l.p.cfg.FrameDuration)
	l.setState(Playing)
	l.armFrameTimer()
	cmd.reply <- response{}
}

func (l *loop) handleStop(cmd command) {
	// Cancel any in-flight resolution; late results are refused with
	// a closed context error.
	l.resolveCancel()
	l.resolveCtx, l.resolveCancel = context.WithCancel(context.Background())

	l.cancelLoad()
	if l.seq != nil {
		l.record(l.currentOrZero(), OutcomeStopped)
	}
	l.stopPlayback()
	l.queue.Clear()

	if l.sink != nil {
		if err := l.sink.Close(); err != nil {
			slog.Warn("failed to close voice sink", "guildID", l.p.guildID, "error", err)
		}
		l.sink = nil
	}

	l.setState(Stopped)
	l.setState(Idle)
	cmd.reply <- response{}
}

func (l *loop) handleRemove(cmd command) {
	if cmd.pos == 0 && l.state != Idle {
		cmd.reply <- response{err: ErrCurrentTrack}
		return
	}
	removed, err := l.queue.Remove(cmd.pos)
	if err != nil {
		cmd.reply <- response{err: err}
		return
	}
	l.p.queueLenMirror.Store(int32(l.queue.Len()))
	cmd.reply <- response{removed: removed}
}

func (l *loop) handleReorder(cmd command) {
	if (cmd.from == 0 || cmd.to == 0) && l.state != Idle {
		cmd.reply <- response{err: ErrCurrentTrack}
		return
	}
	cmd.reply <- response{err: l.queue.Reorder(cmd.from, cmd.to)}
}

func (l *loop) handleNow(cmd command) {
	current, ok := l.queue.PeekCurrent()
	if !ok || l.state == Idle {
		cmd.reply <- response{state: l.state, err: ErrQueueEmpty}
		return
	}
	cmd.reply <- response{current: &current, state: l.state}
}

// startLoading begins resolving the head track's stream and pipeline
// in its own goroutine. The loop keeps servicing commands meanwhile.
func (l *loop) startLoading() {
	head, ok := l.queue.PeekCurrent()
	if !ok {
		l.setState(Idle)
		return
	}

	l.setState(Loading)
	l.gen++
	gen := l.gen

	ctx, cancel := context.WithCancel(context.Background())
	l.loadCancel = cancel

	p := l.p
	sink := l.sink
	channelID := l.channelID
	volume := l.volume
	go func() {
		var err error
		if sink == nil {
			sink, err = p.deps.Sinks.Open(ctx, p.guildID, channelID)
			if err != nil {
				sendLoad(p, loadResult{gen: gen, err: &SinkOpenError{cause: err}})
				return
			}
		}

		seq, err := p.deps.Pipeline.Start(ctx, head, volume)
		sendLoad(p, loadResult{gen: gen, seq: seq, sink: sink, err: err})
	}()
}

func sendLoad(p *Player, res loadResult) {
	select {
	case p.loads <- res:
	case <-p.quit:
		if res.seq != nil {
			res.seq.Close()
		}
		if res.sink != nil {
			res.sink.Close()
		}
	}
}

func (l *loop) cancelLoad() {
	if l.loadCancel != nil {
		l.loadCancel()
		l.loadCancel = nil
	}
	// Bump the generation so a late result is discarded.
	l.gen++
}

func (l *loop) handleLoad(res loadResult) {
	if res.gen != l.gen {
		// A skip or stop raced this load; discard it.
		if res.seq != nil {
			res.seq.Close()
		}
		if res.sink != nil && res.sink != l.sink {
			res.sink.Close()
		}
		return
	}
	l.loadCancel = nil

	if res.sink != nil {
		l.sink = res.sink
	}

	head := l.currentOrZero()
	if res.err != nil {
		l.emit(EventTrackFailed, &head, res.err)
		l.record(head, OutcomeErrored)
		if l.p.deps.Metrics != nil {
			l.p.deps.Metrics.IncTracksPlayed(string(OutcomeErrored))
		}

		var sinkErr *SinkOpenError
		if errors.As(res.err, &sinkErr) {
			// No transport; keep the queue but go idle until the
			// user invokes playback again.
			l.setState(Idle)
			return
		}

		next, _ := l.queue.PopCurrent()
		if next == nil {
			l.setState(Idle)
			return
		}
		l.startLoading()
		return
	}

	l.seq = res.seq
	l.frameIdx = 0
	l.stalls = 0
	l.startTime = time.Now()
	l.setState(Playing)
	l.emit(EventNowPlaying, &head, nil)
	l.armFrameTimer()
}

// armFrameTimer schedules the next frame write at its nominal
// deadline: frame N is written no earlier than start + N*frameDuration.
func (l *loop) armFrameTimer() {
	deadline := l.startTime.Add(time.Duration(l.frameIdx) * l.p.cfg.FrameDuration)
	l.frameTimer.Reset(time.Until(deadline))
}

func (l *loop) emitFrame() {
	if l.state != Playing || l.seq == nil {
		return
	}

	frame, err := l.seq.Next(l.p.cfg.PullTimeout)
	switch {
	case err == nil:
		l.stalls = 0
		l.writeFrame(frame)
	case errors.Is(err, opus.ErrStreamTimeout):
		l.stalls++
		if l.stalls >= l.p.cfg.StallTolerance {
			l.trackFailed(&opus.StreamError{Kind: opus.SourceClosed})
			return
		}
		// Hold silence rather than writing early or not at all; the
		// sink is paced to real time.
		l.writeFrame(opus.Silence)
	case errors.Is(err, io.EOF):
		l.trackEnded()
	default:
		l.trackFailed(err)
	}
}

func (l *loop) writeFrame(frame []byte) {
	deadline := l.startTime.Add(time.Duration(l.frameIdx) * l.p.cfg.FrameDuration)

	writeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := l.sink.WriteFrame(writeCtx, frame)
	cancel()
	if err != nil {
		l.sinkLost(err)
		return
	}

	if m := l.p.deps.Metrics; m != nil {
		m.IncFramesSent()
		if lag := time.Since(deadline); lag > 0 {
			m.ObserveFrameLag(lag.Seconds())
		}
	}

	l.frameIdx++
	l.armFrameTimer()
}

// trackEnded handles a clean end of track: advance to the next entry
// or go idle.
func (l *loop) trackEnded() {
	current := l.currentOrZero()
	l.stopPlayback()
	l.record(current, OutcomePlayed)
	if l.p.deps.Metrics != nil {
		l.p.deps.Metrics.IncTracksPlayed(string(OutcomePlayed))
	}

	next, _ := l.queue.PopCurrent()
	if next == nil {
		l.setState(Idle)
		l.emit(EventQueueFinished, nil, nil)
		return
	}
	l.startLoading()
}

// trackFailed handles a mid-stream failure: report it and
// auto-advance, never silently.
func (l *loop) trackFailed(err error) {
	current := l.currentOrZero()
	l.setState(Errored)
	l.stopPlayback()
	l.record(current, OutcomeErrored)
	if l.p.deps.Metrics != nil {
		l.p.deps.Metrics.IncTracksPlayed(string(OutcomeErrored))
	}
	l.emit(EventTrackFailed, &current, err)

	next, _ := l.queue.PopCurrent()
	if next == nil {
		l.setState(Idle)
		return
	}
	l.startLoading()
}

// sinkLost handles a voice transport failure. Session-level: the
// current track dies, the player goes idle, and nothing is retried
// until the user acts.
func (l *loop) sinkLost(err error) {
	current := l.currentOrZero()
	l.stopPlayback()
	l.record(current, OutcomeErrored)
	if l.p.deps.Metrics != nil {
		l.p.deps.Metrics.IncTracksPlayed(string(OutcomeErrored))
	}
	l.emit(EventSinkLost, &current, err)

	if l.sink != nil {
		l.sink.Close()
		l.sink = nil
	}
	l.queue.PopCurrent()
	l.setState(Idle)
}

// stopPlayback tears down the current frame sequence and timer.
func (l *loop) stopPlayback() {
	l.frameTimer.Stop()
	if l.seq != nil {
		l.seq.Close()
		l.seq = nil
	}
	l.frameIdx = 0
	l.stalls = 0
}

func (l *loop) currentOrZero() track.Track {
	current, _ := l.queue.PeekCurrent()
	return current
}

func (l *loop) record(t track.Track, outcome Outcome) {
	if l.p.deps.History == nil || t.ID == "" {
		return
	}
	guildID := l.p.guildID
	recorder := l.p.deps.History
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Record(ctx, guildID, t, outcome); err != nil {
			slog.Warn("failed to record play history",
				"guildID", guildID, "track", t.Title, "error", err)
		}
	}()
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 200 {
		return 200
	}
	return v
}

func resolutionOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var rerr *resolver.ResolutionError
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case resolver.NotFound:
			return "not_found"
		case resolver.ExtractionFailed:
			return "extraction_failed"
		case resolver.Unsupported:
			return "unsupported"
		}
	}
	return "failed"
}
