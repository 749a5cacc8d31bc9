package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/andrewms2013/veebot-discord/internal/opus"
	"github.com/andrewms2013/veebot-discord/internal/track"
)

type fakeResolver struct {
	mu   sync.Mutex
	errs map[string]error
}

func (r *fakeResolver) Resolve(ctx context.Context, query, requestedBy string) (*track.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[query]; err != nil {
		return nil, err
	}
	return &track.Track{
		ID:          query,
		Title:       query,
		SourceURI:   "https://audio.example/" + query,
		WebURL:      "https://example.com/" + query,
		RequestedBy: requestedBy,
		Source:      "test",
	}, nil
}

type step struct {
	frame []byte
	err   error
}

type fakeSequence struct {
	mu     sync.Mutex
	steps  []step
	closed bool
}

func (s *fakeSequence) Next(timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return nil, io.EOF
	}
	head := s.steps[0]
	s.steps = s.steps[1:]
	if head.err != nil {
		return nil, head.err
	}
	return head.frame, nil
}

func (s *fakeSequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func frames(n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = step{frame: []byte{byte(i + 1)}}
	}
	return out
}

type fakePipeline struct {
	mu       sync.Mutex
	seqs     map[string]*fakeSequence
	startErr map[string]error
	volumes  map[string]int
}

func (p *fakePipeline) Start(ctx context.Context, t track.Track, volume int) (FrameSequence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.volumes == nil {
		p.volumes = make(map[string]int)
	}
	p.volumes[t.ID] = volume
	if err := p.startErr[t.ID]; err != nil {
		return nil, err
	}
	seq, ok := p.seqs[t.ID]
	if !ok {
		seq = &fakeSequence{steps: frames(2)}
	}
	return seq, nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames [][]byte
	failAt int
	closed bool
}

func (s *fakeSink) WriteFrame(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.frames) >= s.failAt {
		return errors.New("voice gateway dropped")
	}
	s.frames = append(s.frames, bytes.Clone(frame))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) frameAt(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[i]
}

type fakeSinkProvider struct {
	mu    sync.Mutex
	sink  *fakeSink
	err   error
	opens int
}

func (p *fakeSinkProvider) Open(ctx context.Context, guildID, channelID string) (Sink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.err != nil {
		return nil, p.err
	}
	return p.sink, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
}

func (r *fakeRecorder) Record(ctx context.Context, guildID string, t track.Track, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]Outcome)
	}
	r.outcomes[t.ID] = outcome
	return nil
}

func (r *fakeRecorder) outcomeOf(id string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.outcomes[id]
	return out, ok
}

func testConfig() Config {
	return Config{
		FrameDuration:  2 * time.Millisecond,
		QueueMax:       8,
		StallTolerance: 4,
	}
}

func newTestPlayer(t *testing.T, pipe *fakePipeline, sink *fakeSink) (*Player, *fakeRecorder) {
	t.Helper()
	recorder := &fakeRecorder{}
	p := New("guild-1", testConfig(), Deps{
		Resolver: &fakeResolver{},
		Pipeline: pipe,
		Sinks:    &fakeSinkProvider{sink: sink},
		History:  recorder,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Shutdown(ctx)
	})
	return p, recorder
}

func waitEvent(t *testing.T, p *Player, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-p.Events():
			if !ok {
				t.Fatal("event channel closed while waiting")
			}
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func waitOutcome(t *testing.T, r *fakeRecorder, id string) Outcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if out, ok := r.outcomeOf(id); ok {
			return out
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no recorded outcome for %s", id)
	return ""
}

func TestPlayerPlaysQueueToCompletion(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(3)},
		"t2": {steps: frames(2)},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	pos, err := p.Play(ctx, "t1", "user-1", "voice-1")
	if err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if pos != 0 {
		t.Errorf("expected position 0, got %d", pos)
	}

	pos, err = p.Play(ctx, "t2", "user-2", "voice-1")
	if err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}
	if pos != 1 {
		t.Errorf("expected position 1, got %d", pos)
	}

	first := waitEvent(t, p, EventNowPlaying)
	if first.Track.ID != "t1" {
		t.Errorf("expected t1 to play first, got %s", first.Track.ID)
	}
	second := waitEvent(t, p, EventNowPlaying)
	if second.Track.ID != "t2" {
		t.Errorf("expected t2 to play second, got %s", second.Track.ID)
	}
	waitEvent(t, p, EventQueueFinished)

	if got := sink.frameCount(); got != 5 {
		t.Errorf("expected 5 frames written, got %d", got)
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomePlayed {
		t.Errorf("expected t1 outcome played, got %s", out)
	}
	if out := waitOutcome(t, recorder, "t2"); out != OutcomePlayed {
		t.Errorf("expected t2 outcome played, got %s", out)
	}
	if p.State() != Idle {
		t.Errorf("expected idle state, got %s", p.State())
	}
}

func TestPlayerSkip(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10_000)},
		"t2": {steps: frames(1)},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if _, err := p.Play(ctx, "t2", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	next, err := p.Skip(ctx)
	if err != nil {
		t.Fatalf("failed to skip: %v", err)
	}
	if next == nil || next.ID != "t2" {
		t.Errorf("expected skip to surface t2, got %+v", next)
	}

	event := waitEvent(t, p, EventNowPlaying)
	if event.Track.ID != "t2" {
		t.Errorf("expected t2 now playing after skip, got %s", event.Track.ID)
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomeSkipped {
		t.Errorf("expected t1 outcome skipped, got %s", out)
	}
	seq := pipe.seqs["t1"]
	seq.mu.Lock()
	closed := seq.closed
	seq.mu.Unlock()
	if !closed {
		t.Error("expected the skipped sequence to be closed")
	}
}

func TestPlayerSkipEmptiesQueue(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10_000)},
	}}
	p, _ := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	next, err := p.Skip(ctx)
	if err != nil {
		t.Fatalf("failed to skip: %v", err)
	}
	if next != nil {
		t.Errorf("expected no next track, got %+v", next)
	}
	if p.State() != Idle {
		t.Errorf("expected idle after skipping the last track, got %s", p.State())
	}

	if _, err := p.Skip(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("expected ErrQueueEmpty on idle skip, got %v", err)
	}
}

// stallingSequence honors the bounded wait but never yields a frame.
type stallingSequence struct {
	closed chan struct{}
	once   sync.Once
}

func (s *stallingSequence) Next(timeout time.Duration) ([]byte, error) {
	select {
	case <-time.After(timeout):
	case <-s.closed:
	}
	return nil, opus.ErrStreamTimeout
}

func (s *stallingSequence) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type stallingPipeline struct {
	seq *stallingSequence
}

func (p *stallingPipeline) Start(ctx context.Context, t track.Track, volume int) (FrameSequence, error) {
	return p.seq, nil
}

func TestPlayerSkipLatencyOnStalledSequence(t *testing.T) {
	// A pull blocked on a stalled source must not delay skip beyond
	// one pull timeout plus one frame slot.
	cfg := Config{
		FrameDuration:  50 * time.Millisecond,
		QueueMax:       8,
		StallTolerance: 10_000,
	}
	recorder := &fakeRecorder{}
	p := New("guild-1", cfg, Deps{
		Resolver: &fakeResolver{},
		Pipeline: &stallingPipeline{seq: &stallingSequence{closed: make(chan struct{})}},
		Sinks:    &fakeSinkProvider{sink: &fakeSink{}},
		History:  recorder,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Shutdown(ctx)
	})

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	start := time.Now()
	if _, err := p.Skip(ctx); err != nil {
		t.Fatalf("failed to skip: %v", err)
	}
	elapsed := time.Since(start)

	if limit := 2 * cfg.FrameDuration; elapsed > limit {
		t.Errorf("skip took %v, want within %v", elapsed, limit)
	}
	if p.State() != Idle {
		t.Errorf("expected idle after skipping the only track, got %s", p.State())
	}
}

func TestPlayerPauseResume(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10_000)},
	}}
	p, _ := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	if err := p.Pause(ctx); err != nil {
		t.Fatalf("failed to pause: %v", err)
	}
	if p.State() != Paused {
		t.Errorf("expected paused state, got %s", p.State())
	}

	// A frame enqueued by the timer may still land right after the
	// pause; the count must be stable once it settles.
	time.Sleep(10 * time.Millisecond)
	settled := sink.frameCount()
	time.Sleep(20 * time.Millisecond)
	if got := sink.frameCount(); got != settled {
		t.Errorf("frames written while paused: %d then %d", settled, got)
	}

	if err := p.Pause(ctx); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("expected ErrNotPlaying on double pause, got %v", err)
	}

	if err := p.Resume(ctx); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for sink.frameCount() == settled {
		if time.Now().After(deadline) {
			t.Fatal("no frames written after resume")
		}
		time.Sleep(time.Millisecond)
	}

	// The cursor is retained: the first frame after resume continues
	// the sequence instead of restarting it.
	if got := sink.frameAt(settled); got[0] != byte(settled+1) {
		t.Errorf("expected frame %d after resume, got %d", settled+1, got[0])
	}

	if err := p.Resume(ctx); !errors.Is(err, ErrNotPaused) {
		t.Errorf("expected ErrNotPaused on double resume, got %v", err)
	}
}

func TestPlayerStallHoldsSilence(t *testing.T) {
	sink := &fakeSink{}
	steps := []step{
		{frame: []byte{1}},
		{err: opus.ErrStreamTimeout},
		{err: opus.ErrStreamTimeout},
		{frame: []byte{2}},
	}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: steps},
	}}
	p, _ := newTestPlayer(t, pipe, sink)

	if _, err := p.Play(context.Background(), "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	waitEvent(t, p, EventQueueFinished)

	if got := sink.frameCount(); got != 4 {
		t.Fatalf("expected 4 frames including silence, got %d", got)
	}
	if !bytes.Equal(sink.frameAt(1), opus.Silence) || !bytes.Equal(sink.frameAt(2), opus.Silence) {
		t.Error("expected silence frames during the stall")
	}
	if !bytes.Equal(sink.frameAt(3), []byte{2}) {
		t.Error("expected the stream to continue after the stall")
	}
}

func TestPlayerStallToleranceExceeded(t *testing.T) {
	sink := &fakeSink{}
	steps := make([]step, 10)
	for i := range steps {
		steps[i] = step{err: opus.ErrStreamTimeout}
	}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: steps},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	if _, err := p.Play(context.Background(), "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}

	event := waitEvent(t, p, EventTrackFailed)
	var streamErr *opus.StreamError
	if !errors.As(event.Err, &streamErr) {
		t.Fatalf("expected a stream error, got %v", event.Err)
	}
	if streamErr.Kind != opus.SourceClosed {
		t.Errorf("expected source closed kind, got %s", streamErr.Kind)
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomeErrored {
		t.Errorf("expected errored outcome, got %s", out)
	}
}

func TestPlayerStreamFailureAdvances(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: []step{
			{frame: []byte{1}},
			{err: &opus.StreamError{Kind: opus.DecodeFailed}},
		}},
		"t2": {steps: frames(1)},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if _, err := p.Play(ctx, "t2", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}

	failed := waitEvent(t, p, EventTrackFailed)
	if failed.Track.ID != "t1" {
		t.Errorf("expected t1 to fail, got %s", failed.Track.ID)
	}
	next := waitEvent(t, p, EventNowPlaying)
	if next.Track.ID != "t2" {
		t.Errorf("expected auto-advance to t2, got %s", next.Track.ID)
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomeErrored {
		t.Errorf("expected errored outcome for t1, got %s", out)
	}
}

func TestPlayerLoadFailureAdvances(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{
		seqs:     map[string]*fakeSequence{"t2": {steps: frames(1)}},
		startErr: map[string]error{"t1": errors.New("encoder refused to start")},
	}
	p, _ := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if _, err := p.Play(ctx, "t2", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}

	failed := waitEvent(t, p, EventTrackFailed)
	if failed.Track.ID != "t1" {
		t.Errorf("expected t1 load failure, got %s", failed.Track.ID)
	}
	playing := waitEvent(t, p, EventNowPlaying)
	if playing.Track.ID != "t2" {
		t.Errorf("expected t2 to play after failed load, got %s", playing.Track.ID)
	}
}

func TestPlayerSinkOpenFailureGoesIdle(t *testing.T) {
	recorder := &fakeRecorder{}
	p := New("guild-1", testConfig(), Deps{
		Resolver: &fakeResolver{},
		Pipeline: &fakePipeline{},
		Sinks:    &fakeSinkProvider{err: errors.New("no voice connection")},
		History:  recorder,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Shutdown(ctx)
	})

	if _, err := p.Play(context.Background(), "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	event := waitEvent(t, p, EventTrackFailed)
	var sinkErr *SinkOpenError
	if !errors.As(event.Err, &sinkErr) {
		t.Fatalf("expected a sink open error, got %v", event.Err)
	}
	if p.State() != Idle {
		t.Errorf("expected idle after sink failure, got %s", p.State())
	}

	// The queue is retained so the user can retry without re-adding.
	entries, err := p.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the track to stay queued, got %d entries", len(entries))
	}
}

func TestPlayerSinkLostMidStream(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10)},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	if _, err := p.Play(context.Background(), "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}

	event := waitEvent(t, p, EventSinkLost)
	if event.Track.ID != "t1" {
		t.Errorf("expected t1 in sink lost event, got %s", event.Track.ID)
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomeErrored {
		t.Errorf("expected errored outcome, got %s", out)
	}
	if p.State() != Idle {
		t.Errorf("expected idle after sink loss, got %s", p.State())
	}
}

func TestPlayerStop(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10_000)},
		"t2": {steps: frames(10)},
	}}
	p, recorder := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if _, err := p.Play(ctx, "t2", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	if err := p.Stop(ctx); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	if p.State() != Idle {
		t.Errorf("expected idle after stop, got %s", p.State())
	}

	entries, err := p.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty queue after stop, got %d entries", len(entries))
	}
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Error("expected the sink to be released on stop")
	}
	if out := waitOutcome(t, recorder, "t1"); out != OutcomeStopped {
		t.Errorf("expected stopped outcome for t1, got %s", out)
	}
}

func TestPlayerRemoveAndReorderGuards(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(10_000)},
	}}
	p, _ := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t1: %v", err)
	}
	if _, err := p.Play(ctx, "t2", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t2: %v", err)
	}
	if _, err := p.Play(ctx, "t3", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play t3: %v", err)
	}
	waitEvent(t, p, EventNowPlaying)

	if _, err := p.Remove(ctx, 0); !errors.Is(err, ErrCurrentTrack) {
		t.Errorf("expected ErrCurrentTrack removing the active entry, got %v", err)
	}
	if err := p.Reorder(ctx, 0, 2); !errors.Is(err, ErrCurrentTrack) {
		t.Errorf("expected ErrCurrentTrack reordering the active entry, got %v", err)
	}

	removed, err := p.Remove(ctx, 2)
	if err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if removed.ID != "t3" {
		t.Errorf("expected to remove t3, got %s", removed.ID)
	}

	entries, err := p.List(ctx)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestPlayerVolumeAppliesToNextTrack(t *testing.T) {
	sink := &fakeSink{}
	pipe := &fakePipeline{seqs: map[string]*fakeSequence{
		"t1": {steps: frames(1)},
	}}
	p, _ := newTestPlayer(t, pipe, sink)

	ctx := context.Background()
	if err := p.SetVolume(ctx, 150); err != nil {
		t.Fatalf("failed to set volume: %v", err)
	}
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	waitEvent(t, p, EventQueueFinished)

	pipe.mu.Lock()
	volume := pipe.volumes["t1"]
	pipe.mu.Unlock()
	if volume != 150 {
		t.Errorf("expected pipeline volume 150, got %d", volume)
	}

	if err := p.SetVolume(ctx, 900); err != nil {
		t.Fatalf("failed to set out-of-range volume: %v", err)
	}
	current, _, err := p.Now(ctx)
	if !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("expected ErrQueueEmpty from now on idle, got %v (track %+v)", err, current)
	}
}

func TestPlayerClosedAfterShutdown(t *testing.T) {
	p, _ := newTestPlayer(t, &fakePipeline{}, &fakeSink{})

	ctx := context.Background()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("failed to shut down: %v", err)
	}
	if _, err := p.Play(ctx, "t1", "user-1", "voice-1"); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("expected ErrPlayerClosed, got %v", err)
	}
}
