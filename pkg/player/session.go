package player

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// endToleranceSec treats positions within this distance of the duration as
// having reached the end, since players rarely report the exact last frame.
const endToleranceSec = 1.25

// Events are the session-level callbacks the embedding UI consumes. All are
// optional and are invoked outside the session's internal lock.
type Events struct {
	// OnNotice carries short user-facing explanations for guard actions,
	// like a rejected skip or a clamped seek.
	OnNotice    func(msg string)
	OnLock      func(cp Checkpoint)
	OnUnlock    func()
	OnPrompt    func(cp Checkpoint)
	OnEnded     func()
	OnError     func(kind ErrorKind, err error)
	OnFinalized func(attempt Attempt, report Report)
}

func (e Events) notice(msg string) {
	if e.OnNotice != nil {
		e.OnNotice(msg)
	}
}

// Options configure a session. Exactly one of Media or Embed must be set,
// matching the package's source kind. Clock and the tickers default to real
// time; tests inject fakes.
type Options struct {
	Media MediaElement
	Embed EmbedLoader

	Clock           Clock
	PollTicker      Ticker
	HeartbeatTicker Ticker
	Logger          *zap.Logger
	Events          Events
}

// Session is the top-level controller for one guarded review sitting. It owns
// the adapter, the watermark tracker, the checkpoint gate, the progress sync
// channel and the completion step, and it is the only component that crosses
// between them.
type Session struct {
	st      *sessionState
	backend Backend
	adapter Adapter
	tracker *Tracker
	gate    *Gate
	syncer  *SyncChannel
	done    *Completion
	clock   Clock
	events  Events
	log     *zap.Logger

	// ctx scopes background reports issued from playback callbacks.
	ctx    context.Context
	cancel context.CancelFunc
}

// Open fetches the session payload and assembles a controller for it. The
// resumed playhead is min(last position, watermark) so a stale server record
// can never place the user past what they legitimately reached.
func Open(ctx context.Context, backend Backend, packageID string, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	pkg, attempt, err := backend.FetchSession(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", packageID, err)
	}

	st := newSessionState(pkg, attempt)
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		st:      st,
		backend: backend,
		tracker: NewTracker(attempt.MaxReachedSec),
		clock:   clock,
		events:  opts.Events,
		log:     log.Named("session"),
		ctx:     sctx,
		cancel:  cancel,
	}

	adapterEvents := AdapterEvents{
		OnTimeUpdate:  s.handleTime,
		OnStateChange: s.handleStateChange,
		OnEnded:       s.handleEnded,
		OnError:       s.handleError,
		OnSeekRequest: s.handleSeekRequest,
	}
	switch pkg.Source.Kind {
	case SourceDirect:
		if opts.Media == nil {
			cancel()
			return nil, fmt.Errorf("package %s: %w", packageID, ErrSourceUnsupported)
		}
		s.adapter = NewDirectBackend(opts.Media, clock, adapterEvents)
	case SourceEmbedded:
		if opts.Embed == nil {
			cancel()
			return nil, fmt.Errorf("package %s: %w", packageID, ErrSourceUnsupported)
		}
		s.adapter = NewEmbeddedBackend(opts.Embed, pkg.Source.Locator, opts.PollTicker, clock, adapterEvents)
	default:
		cancel()
		return nil, fmt.Errorf("source kind %q: %w", pkg.Source.Kind, ErrSourceUnsupported)
	}

	s.gate = newGate(st, s.adapter, backend, log)
	s.syncer = newSyncChannel(st, backend, clock, opts.HeartbeatTicker, log)
	s.done = newCompletion(st, backend, log)

	// Seed the tracker's sample history at the starting position so the very
	// first playback sample is compared against it, not accepted blindly.
	resume := resumePosition(attempt)
	s.tracker.NoteForcedSeek(resume, clock())
	if resume > 0 {
		if err := s.adapter.SeekTo(resume); err != nil {
			s.log.Warn("resume seek failed", zap.Error(err))
		}
		st.mu.Lock()
		st.currentSec = resume
		st.mu.Unlock()
	}
	s.syncer.start(sctx)

	s.log.Info("session opened",
		zap.String("package", pkg.ID),
		zap.String("attempt", attempt.ID),
		zap.String("source", string(pkg.Source.Kind)))
	return s, nil
}

func resumePosition(a Attempt) float64 {
	pos := a.LastPositionSec
	if pos > a.MaxReachedSec {
		pos = a.MaxReachedSec
	}
	return pos
}

// handleTime is the hot path: every position sample flows through jump
// detection, end detection and the checkpoint gate.
func (s *Session) handleTime(sec float64, at time.Time) {
	st := s.st
	st.mu.Lock()
	if st.closed || st.failed {
		st.mu.Unlock()
		return
	}

	obs := s.tracker.Observe(sec, at)
	if obs.Illegitimate {
		st.currentSec = obs.EffectiveSec
		st.attempt.LastPositionSec = obs.EffectiveSec
		st.mu.Unlock()
		// Correct after the fact; the tracker's guard keeps the corrective
		// seek from being re-flagged.
		if err := s.adapter.SeekTo(obs.EffectiveSec); err != nil {
			s.log.Warn("corrective seek failed", zap.Error(err))
		}
		s.events.notice("Skipping ahead is disabled for this review.")
		s.log.Debug("rejected forward jump",
			zap.Float64("sample", sec),
			zap.Float64("rewound_to", obs.EffectiveSec))
		return
	}

	st.currentSec = obs.EffectiveSec
	st.attempt.LastPositionSec = obs.EffectiveSec
	if wm := s.tracker.Watermark(); wm > st.attempt.MaxReachedSec {
		st.attempt.MaxReachedSec = wm
	}
	if dur := s.adapter.Duration(); dur > 0 {
		st.durationSec = dur
	}

	endedNow := false
	if !st.attempt.WatchedToEnd && st.durationSec > 0 &&
		obs.EffectiveSec >= st.durationSec-endToleranceSec {
		st.attempt.WatchedToEnd = true
		endedNow = true
	}

	lock, prompt := s.gate.evaluate(obs.EffectiveSec)
	st.mu.Unlock()

	if lock != nil {
		if err := s.adapter.Pause(); err != nil {
			s.log.Warn("pause at checkpoint failed", zap.Error(err))
		}
		if s.events.OnLock != nil {
			s.events.OnLock(*lock)
		}
	}
	if prompt != nil && s.events.OnPrompt != nil {
		s.events.OnPrompt(*prompt)
	}
	go s.syncer.Report(s.ctx, endedNow)
}

// handleStateChange re-asserts the lock against play state the session did
// not initiate, such as an embedded player's own controls.
func (s *Session) handleStateChange(playing bool) {
	st := s.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	if playing && st.locked {
		st.mu.Unlock()
		_ = s.adapter.Pause()
		s.events.notice("Answer the question to continue.")
		return
	}
	st.playing = playing
	st.mu.Unlock()
}

func (s *Session) handleEnded() {
	st := s.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.attempt.WatchedToEnd = true
	st.playing = false
	st.mu.Unlock()

	go s.syncer.Report(s.ctx, true)
	if s.events.OnEnded != nil {
		s.events.OnEnded()
	}
}

func (s *Session) handleError(kind ErrorKind, err error) {
	if kind.Fatal() {
		st := s.st
		st.mu.Lock()
		st.failed = true
		st.playing = false
		st.mu.Unlock()
	}
	s.log.Error("playback error", zap.String("kind", string(kind)), zap.Error(err))
	if s.events.OnError != nil {
		s.events.OnError(kind, err)
	}
}

// handleSeekRequest clamps element-level seeks before they take effect. Only
// the direct backend routes through here.
func (s *Session) handleSeekRequest(target float64) float64 {
	st := s.st
	st.mu.Lock()
	if st.locked {
		cur := st.currentSec
		st.mu.Unlock()
		s.events.notice("Answer the question to continue.")
		return cur
	}
	allowed, clamped := s.tracker.ClampSeek(target)
	s.tracker.NoteForcedSeek(allowed, s.clock())
	st.currentSec = allowed
	st.mu.Unlock()
	if clamped {
		s.events.notice("You can only seek within what you have already watched.")
	}
	return allowed
}

// Play starts or resumes playback. While a checkpoint holds the session the
// intent is refused, never queued.
func (s *Session) Play() error {
	st := s.st
	st.mu.Lock()
	switch {
	case st.closed:
		st.mu.Unlock()
		return ErrSessionClosed
	case st.failed:
		st.mu.Unlock()
		return ErrSourceUnsupported
	case st.locked:
		st.mu.Unlock()
		s.events.notice("Answer the question to continue.")
		return ErrLocked
	}
	st.playing = true
	st.mu.Unlock()
	return s.adapter.Play()
}

func (s *Session) Pause() error {
	st := s.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrSessionClosed
	}
	st.playing = false
	st.mu.Unlock()
	return s.adapter.Pause()
}

// Seek moves the playhead, clamping forward targets to the watermark.
func (s *Session) Seek(target float64) error {
	st := s.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrSessionClosed
	}
	if st.locked {
		st.mu.Unlock()
		s.events.notice("Answer the question to continue.")
		return ErrLocked
	}
	if target < 0 {
		target = 0
	}
	allowed, clamped := s.tracker.ClampSeek(target)
	s.tracker.NoteForcedSeek(allowed, s.clock())
	st.currentSec = allowed
	st.attempt.LastPositionSec = allowed
	st.mu.Unlock()

	if clamped {
		s.events.notice("You can only seek within what you have already watched.")
	}
	return s.adapter.SeekTo(allowed)
}

// SubmitAnswer answers the checkpoint currently holding or editing the
// session.
func (s *Session) SubmitAnswer(ctx context.Context, selected int) error {
	if err := s.gate.Submit(ctx, selected); err != nil {
		return err
	}
	if s.events.OnUnlock != nil {
		s.events.OnUnlock()
	}
	go s.syncer.Report(s.ctx, false)
	return nil
}

// OpenEdit re-opens an answered checkpoint for revision before finalization.
func (s *Session) OpenEdit(checkpointID string) (Checkpoint, int, error) {
	return s.gate.OpenEdit(checkpointID)
}

// CloseEdit abandons an in-progress edit.
func (s *Session) CloseEdit() { s.gate.CloseEdit() }

// Eligible reports whether Finalize would be accepted locally.
func (s *Session) Eligible() bool { return s.done.Eligible() }

// Finalize flushes progress, submits the attempt for scoring and surfaces the
// report.
func (s *Session) Finalize(ctx context.Context) (Attempt, Report, error) {
	if err := s.syncer.Flush(ctx); err != nil {
		s.log.Warn("pre-finalize flush failed", zap.Error(err))
	}
	attempt, report, err := s.done.Finalize(ctx)
	if err != nil {
		return Attempt{}, Report{}, err
	}
	if s.events.OnFinalized != nil {
		s.events.OnFinalized(attempt, report)
	}
	return attempt, report, nil
}

// Attempt returns a snapshot of the current attempt state.
func (s *Session) Attempt() Attempt {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	a := st.attempt
	answers := make(map[string]int, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}

// Package returns the session's package definition.
func (s *Session) Package() Package {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pkg
}

// Close tears the session down: playback callbacks stop, a final flush gets a
// bounded grace period, and the adapter is released. Always returns nil so
// callers can defer it; flush failures are logged only.
func (s *Session) Close(ctx context.Context) error {
	st := s.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	st.playing = false
	st.mu.Unlock()

	s.syncer.stop()
	if err := s.syncer.Flush(ctx); err != nil {
		s.log.Warn("teardown flush failed", zap.Error(err))
	}
	s.cancel()
	if err := s.adapter.Close(); err != nil {
		s.log.Warn("adapter close failed", zap.Error(err))
	}
	s.log.Info("session closed")
	return nil
}
