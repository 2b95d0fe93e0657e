package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func seedSession(t *testing.T) (*Session, *fakeMedia, *fakeBackend, *fakeClock, *sessionEvents) {
	t.Helper()
	be := &fakeBackend{
		pkg:     seedPackage(),
		attempt: seedAttempt(),
		finalizeRept: Report{
			EarnedPoints: 20, TotalPoints: 20, ScorePct: 100,
			Items: []ReportItem{
				{CheckpointID: "cp-1", SelectedIndex: 0, CorrectIndex: 0, IsCorrect: true, PointsEarned: 10},
				{CheckpointID: "cp-3", SelectedIndex: 0, CorrectIndex: 0, IsCorrect: true, PointsEarned: 10},
			},
		},
	}
	media := &fakeMedia{dur: 300}
	clock := newFakeClock()
	ev := &sessionEvents{}

	s, err := Open(context.Background(), be, "pkg-1", Options{
		Media:           media,
		Clock:           clock.Now,
		HeartbeatTicker: &manualTicker{},
		Logger:          zap.NewNop(),
		Events:          ev.hooks(),
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return s, media, be, clock, ev
}

// sessionEvents records every session-level callback.
type sessionEvents struct {
	notices   []string
	locks     []string
	unlocks   int
	prompts   []string
	ended     bool
	finalized bool
}

func (e *sessionEvents) hooks() Events {
	return Events{
		OnNotice:    func(msg string) { e.notices = append(e.notices, msg) },
		OnLock:      func(cp Checkpoint) { e.locks = append(e.locks, cp.ID) },
		OnUnlock:    func() { e.unlocks++ },
		OnPrompt:    func(cp Checkpoint) { e.prompts = append(e.prompts, cp.ID) },
		OnEnded:     func() { e.ended = true },
		OnFinalized: func(Attempt, Report) { e.finalized = true },
	}
}

// watchTo advances playback in quarter-second steps up to target.
func watchTo(media *fakeMedia, clock *fakeClock, from, to float64) float64 {
	for sec := from; sec <= to; sec += 0.25 {
		clock.Advance(250 * time.Millisecond)
		media.emitTime(sec)
	}
	return to
}

func TestSessionFullViewing(t *testing.T) {
	s, media, be, clock, ev := seedSession(t)
	ctx := context.Background()

	if err := s.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	// First required checkpoint freezes playback.
	watchTo(media, clock, 0, 60.25)
	if len(ev.locks) != 1 || ev.locks[0] != "cp-1" {
		t.Fatalf("locks = %v, want [cp-1]", ev.locks)
	}
	if media.pauses == 0 {
		t.Fatalf("media not paused at checkpoint")
	}

	// Play intents are refused, not queued.
	if err := s.Play(); !errors.Is(err, ErrLocked) {
		t.Fatalf("Play while locked = %v, want ErrLocked", err)
	}

	if err := s.SubmitAnswer(ctx, 0); err != nil {
		t.Fatalf("submit cp-1: %v", err)
	}
	if ev.unlocks != 1 {
		t.Fatalf("unlock event not fired")
	}
	if !media.playing {
		t.Fatalf("playback not resumed after answer")
	}

	// The optional checkpoint prompts without locking.
	watchTo(media, clock, 60.5, 125)
	if len(ev.prompts) != 1 || ev.prompts[0] != "cp-2" {
		t.Fatalf("prompts = %v, want [cp-2]", ev.prompts)
	}
	if len(ev.locks) != 1 {
		t.Fatalf("optional checkpoint locked the session")
	}

	// Second required checkpoint, then through to the end.
	watchTo(media, clock, 125.25, 240.25)
	if len(ev.locks) != 2 || ev.locks[1] != "cp-3" {
		t.Fatalf("locks = %v, want [cp-1 cp-3]", ev.locks)
	}
	if err := s.SubmitAnswer(ctx, 0); err != nil {
		t.Fatalf("submit cp-3: %v", err)
	}

	if s.Eligible() {
		t.Fatalf("eligible before reaching the end")
	}
	watchTo(media, clock, 240.5, 299.5)
	if !s.Attempt().WatchedToEnd {
		t.Fatalf("end not latched near duration")
	}
	if !s.Eligible() {
		t.Fatalf("not eligible after full viewing with all answers")
	}

	attempt, report, err := s.Finalize(ctx)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !attempt.Finalized() {
		t.Fatalf("attempt not marked finalized")
	}
	if report.ScorePct != 100 {
		t.Fatalf("score = %.1f, want 100", report.ScorePct)
	}
	if !ev.finalized || !be.finalized {
		t.Fatalf("finalize not observed: event=%v backend=%v", ev.finalized, be.finalized)
	}

	// Finalizing twice is refused locally.
	if _, _, err := s.Finalize(ctx); !errors.Is(err, ErrFinalized) {
		t.Fatalf("second finalize = %v, want ErrFinalized", err)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSessionRejectsScrubPastWatermark(t *testing.T) {
	s, media, _, clock, ev := seedSession(t)

	s.Play()
	watchTo(media, clock, 0, 30)

	// Scrub on the element's own controls: clamped at the source.
	if got := media.userSeek(200); got != 30 {
		t.Fatalf("userSeek(200) permitted %.2f, want clamp to 30", got)
	}
	if len(ev.notices) == 0 {
		t.Fatalf("no notice for clamped scrub")
	}
	if got := s.Attempt().MaxReachedSec; got != 30 {
		t.Fatalf("watermark = %.2f after clamped scrub, want 30", got)
	}

	// Backward replay is free; the watermark holds.
	if got := media.userSeek(5); got != 5 {
		t.Fatalf("backward seek clamped to %.2f", got)
	}
	clock.Advance(250 * time.Millisecond)
	media.emitTime(5.25)
	if got := s.Attempt().MaxReachedSec; got != 30 {
		t.Fatalf("watermark = %.2f after replay, want 30", got)
	}
}

func TestSessionCorrectsJumpDetectedByPoll(t *testing.T) {
	s, media, _, clock, ev := seedSession(t)

	s.Play()
	watchTo(media, clock, 0, 30)

	// A position leap that bypassed the seek hook, as an embedded-style
	// backend would deliver it: detected from the sample pair and corrected.
	clock.Advance(250 * time.Millisecond)
	media.emitTime(220)

	if len(media.seeks) == 0 || media.seeks[len(media.seeks)-1] != 30 {
		t.Fatalf("corrective seek = %v, want rewind to 30", media.seeks)
	}
	if len(ev.notices) == 0 {
		t.Fatalf("no notice for rejected jump")
	}
	if got := s.Attempt().MaxReachedSec; got != 30 {
		t.Fatalf("watermark = %.2f after rejected jump, want 30", got)
	}

	// The corrective seek reset the element to 30, but a slow backend could
	// still report the scrubbed position on the next sample. It must be
	// clamped silently, never legitimized into the watermark.
	clock.Advance(250 * time.Millisecond)
	media.emitTime(220)
	if got := s.Attempt().MaxReachedSec; got != 30 {
		t.Fatalf("watermark = %.2f after echoed jump sample, want 30", got)
	}
}

func TestSessionSeekAPIClampsAndResumes(t *testing.T) {
	s, media, _, clock, _ := seedSession(t)

	s.Play()
	watchTo(media, clock, 0, 45)

	if err := s.Seek(120); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if media.seeks[len(media.seeks)-1] != 45 {
		t.Fatalf("seek target = %.2f, want clamp to 45", media.seeks[len(media.seeks)-1])
	}

	// Within watched ground the target passes through untouched.
	if err := s.Seek(10); err != nil {
		t.Fatalf("seek back: %v", err)
	}
	if media.seeks[len(media.seeks)-1] != 10 {
		t.Fatalf("backward seek altered to %.2f", media.seeks[len(media.seeks)-1])
	}
}

func TestSessionResumePositionClampedToWatermark(t *testing.T) {
	be := &fakeBackend{pkg: seedPackage(), attempt: Attempt{
		ID: "att-1", PackageID: "pkg-1", UserID: "u-1",
		Answers:       map[string]int{"cp-1": 0},
		MaxReachedSec: 90, LastPositionSec: 150,
	}}
	media := &fakeMedia{dur: 300}
	s, err := Open(context.Background(), be, "pkg-1", Options{
		Media:           media,
		Clock:           newFakeClock().Now,
		HeartbeatTicker: &manualTicker{},
		Logger:          zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close(context.Background())

	// Stored position exceeds the stored watermark; resume trusts the
	// watermark.
	if len(media.seeks) != 1 || media.seeks[0] != 90 {
		t.Fatalf("resume seeks = %v, want [90]", media.seeks)
	}
}

func TestSessionFatalPlaybackError(t *testing.T) {
	be := &fakeBackend{pkg: seedPackage(), attempt: seedAttempt()}
	media := &fakeMedia{dur: 300}
	var gotKind ErrorKind
	s, err := Open(context.Background(), be, "pkg-1", Options{
		Media:           media,
		Clock:           newFakeClock().Now,
		HeartbeatTicker: &manualTicker{},
		Logger:          zap.NewNop(),
		Events:          Events{OnError: func(kind ErrorKind, _ error) { gotKind = kind }},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close(context.Background())

	media.handlers.Error(MediaErrUnsupported)
	if gotKind != KindPlaybackUnsupported {
		t.Fatalf("error kind = %q", gotKind)
	}
	if err := s.Play(); err == nil {
		t.Fatalf("play accepted after fatal playback error")
	}
}

func TestSessionFinalizeRequiresEligibility(t *testing.T) {
	s, media, _, clock, _ := seedSession(t)
	ctx := context.Background()

	s.Play()
	watchTo(media, clock, 0, 30)
	if _, _, err := s.Finalize(ctx); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("finalize mid-video = %v, want ErrNotEligible", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _, _, _, _ := seedSession(t)
	ctx := context.Background()

	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.Play(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Play after close = %v, want ErrSessionClosed", err)
	}
}
