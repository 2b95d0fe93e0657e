package player

import (
	"errors"
	"testing"
	"time"
)

func TestEmbeddedBuffersCommandsUntilReady(t *testing.T) {
	loader := &fakeEmbedLoader{}
	ticker := &manualTicker{}
	clock := newFakeClock()
	b := NewEmbeddedBackend(loader, "vid-123", ticker, clock.Now, AdapterEvents{})

	if b.Ready() {
		t.Fatalf("ready before loader callback")
	}
	// Commands before ready are held, not dropped and not delivered.
	if err := b.SeekTo(42); err != nil {
		t.Fatalf("seek pre-ready: %v", err)
	}
	if err := b.Play(); err != nil {
		t.Fatalf("play pre-ready: %v", err)
	}
	if b.Duration() != 0 {
		t.Fatalf("duration before ready = %.2f, want 0", b.Duration())
	}

	pl := &fakeEmbedPlayer{dur: 600}
	loader.onReady(pl)

	if !b.Ready() {
		t.Fatalf("not ready after loader callback")
	}
	if len(pl.seeks) != 1 || pl.seeks[0] != 42 {
		t.Fatalf("pending seek not replayed: %v", pl.seeks)
	}
	if pl.plays != 1 {
		t.Fatalf("pending play not replayed: %d", pl.plays)
	}
	if b.Duration() != 600 {
		t.Fatalf("duration after ready = %.2f", b.Duration())
	}
}

func TestEmbeddedPinsPlaybackRate(t *testing.T) {
	loader := &fakeEmbedLoader{}
	b := NewEmbeddedBackend(loader, "vid-123", &manualTicker{}, newFakeClock().Now, AdapterEvents{})

	pl := &fakeEmbedPlayer{}
	loader.onReady(pl)
	if len(pl.rates) != 1 || pl.rates[0] != 1 {
		t.Fatalf("rate not pinned on ready: %v", pl.rates)
	}

	// User bumps the speed; the backend forces it back.
	pl.handlers.RateChange(2)
	if len(pl.rates) != 2 || pl.rates[1] != 1 {
		t.Fatalf("rate change not reverted: %v", pl.rates)
	}
	pl.handlers.RateChange(1)
	if len(pl.rates) != 2 {
		t.Fatalf("redundant SetRate issued for 1x")
	}
	_ = b
}

func TestEmbeddedPollEmitsClockedSamples(t *testing.T) {
	loader := &fakeEmbedLoader{}
	ticker := &manualTicker{}
	clock := newFakeClock()

	var gotSec []float64
	var gotAt []time.Time
	events := AdapterEvents{OnTimeUpdate: func(sec float64, at time.Time) {
		gotSec = append(gotSec, sec)
		gotAt = append(gotAt, at)
	}}
	b := NewEmbeddedBackend(loader, "vid-123", ticker, clock.Now, events)

	// No samples before the player exists.
	ticker.Tick()
	if len(gotSec) != 0 {
		t.Fatalf("sample emitted before ready")
	}

	pl := &fakeEmbedPlayer{}
	loader.onReady(pl)
	pl.setTime(10)
	ticker.Tick()
	clock.Advance(300 * time.Millisecond)
	pl.setTime(10.3)
	ticker.Tick()

	if len(gotSec) != 2 {
		t.Fatalf("samples = %d, want 2", len(gotSec))
	}
	if gotSec[0] != 10 || gotSec[1] != 10.3 {
		t.Fatalf("sample positions = %v", gotSec)
	}
	if !gotAt[1].Equal(gotAt[0].Add(300 * time.Millisecond)) {
		t.Fatalf("samples not paired with the injected clock")
	}
	_ = b
}

func TestEmbeddedJumpDetectionThroughPoll(t *testing.T) {
	// A seek on the provider's own UI is invisible until the next poll; the
	// tracker must still catch it from the sample pair.
	loader := &fakeEmbedLoader{}
	ticker := &manualTicker{}
	clock := newFakeClock()
	tr := NewTracker(20)
	tr.NoteForcedSeek(20, clock.Now())
	clock.Advance(2 * time.Second)

	var verdicts []Observation
	events := AdapterEvents{OnTimeUpdate: func(sec float64, at time.Time) {
		verdicts = append(verdicts, tr.Observe(sec, at))
	}}
	NewEmbeddedBackend(loader, "vid-123", ticker, clock.Now, events)

	pl := &fakeEmbedPlayer{}
	loader.onReady(pl)

	pl.setTime(20)
	ticker.Tick()
	clock.Advance(300 * time.Millisecond)
	pl.setTime(140) // scrubbed ahead between polls
	ticker.Tick()

	last := verdicts[len(verdicts)-1]
	if !last.Illegitimate {
		t.Fatalf("poll-detected jump not flagged")
	}
	if last.EffectiveSec != 20 {
		t.Fatalf("correction target = %.2f, want 20", last.EffectiveSec)
	}
}

func TestEmbeddedEndedEvent(t *testing.T) {
	loader := &fakeEmbedLoader{}
	var ended bool
	var states []bool
	events := AdapterEvents{
		OnEnded:       func() { ended = true },
		OnStateChange: func(p bool) { states = append(states, p) },
	}
	NewEmbeddedBackend(loader, "vid-123", &manualTicker{}, newFakeClock().Now, events)

	pl := &fakeEmbedPlayer{}
	loader.onReady(pl)
	pl.handlers.StateChange(EmbedPlaying)
	pl.handlers.StateChange(EmbedEnded)

	if !ended {
		t.Fatalf("ended event not propagated")
	}
	if len(states) != 2 || states[0] != true || states[1] != false {
		t.Fatalf("state changes = %v", states)
	}
}

func TestEmbeddedLoadFailure(t *testing.T) {
	loader := &fakeEmbedLoader{}
	var gotKind ErrorKind
	events := AdapterEvents{OnError: func(kind ErrorKind, _ error) { gotKind = kind }}
	NewEmbeddedBackend(loader, "vid-123", &manualTicker{}, newFakeClock().Now, events)

	loader.onError(errors.New("provider blocked embedding"))
	if gotKind != KindEmbedLoadFailure {
		t.Fatalf("error kind = %q, want embed_load_failure", gotKind)
	}
	if !gotKind.Fatal() {
		t.Fatalf("embed load failure should be fatal")
	}
}

func TestEmbeddedCloseDestroysPlayer(t *testing.T) {
	loader := &fakeEmbedLoader{}
	ticker := &manualTicker{}
	b := NewEmbeddedBackend(loader, "vid-123", ticker, newFakeClock().Now, AdapterEvents{})

	pl := &fakeEmbedPlayer{}
	loader.onReady(pl)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if pl.destroys != 1 {
		t.Fatalf("player not destroyed on close")
	}
	if !ticker.stopped {
		t.Fatalf("poll ticker not stopped on close")
	}

	// A late ready callback after close is destroyed immediately.
	late := &fakeEmbedPlayer{}
	loader.onReady(late)
	if late.destroys != 1 {
		t.Fatalf("late player leaked after close")
	}
}
