package player

import (
	"sync"
	"time"
)

// EmbedState is the coarse state the third-party player reports.
type EmbedState int

const (
	EmbedPlaying EmbedState = iota
	EmbedPaused
	EmbedEnded
)

type EmbedHandlers struct {
	StateChange func(s EmbedState)
	RateChange  func(rate float64)
}

// EmbedPlayer is the command surface the provider's player exposes once its
// ready callback fired: commands, coarse events, and a time poll. There is
// no seek-interception hook.
type EmbedPlayer interface {
	Play()
	Pause()
	Seek(sec float64)
	CurrentTime() float64
	Duration() float64
	SetRate(rate float64)
	Bind(EmbedHandlers)
	Destroy()
}

// EmbedLoader injects the provider script and reports back asynchronously.
type EmbedLoader interface {
	Load(locator string, onReady func(EmbedPlayer), onError func(error))
}

const defaultPollInterval = 300 * time.Millisecond

// EmbeddedBackend adapts an async-loaded third-party player. Because the
// player only exposes a time poll, the backend samples on a fixed interval
// and pairs each sample with the wall clock; that pair is the only signal
// jump detection gets. Commands issued before the ready callback are held
// and replayed once the player is up. Playback rate is pinned to 1x.
type EmbeddedBackend struct {
	clock  Clock
	ticker Ticker
	events AdapterEvents

	mu      sync.Mutex
	pl      EmbedPlayer
	ready   bool
	closed  bool
	pending struct {
		seek *float64
		play bool
	}
}

func NewEmbeddedBackend(loader EmbedLoader, locator string, ticker Ticker, clock Clock, events AdapterEvents) *EmbeddedBackend {
	if clock == nil {
		clock = time.Now
	}
	if ticker == nil {
		ticker = NewTicker()
	}
	b := &EmbeddedBackend{clock: clock, ticker: ticker, events: events}
	loader.Load(locator, b.onReady, b.onLoadError)
	return b
}

func (b *EmbeddedBackend) onReady(pl EmbedPlayer) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		pl.Destroy()
		return
	}
	b.pl = pl
	b.ready = true
	seek := b.pending.seek
	play := b.pending.play
	b.pending.seek = nil
	b.pending.play = false
	b.mu.Unlock()

	pl.SetRate(1)
	pl.Bind(EmbedHandlers{
		StateChange: b.onStateChange,
		RateChange:  b.onRateChange,
	})
	if seek != nil {
		pl.Seek(*seek)
	}
	if play {
		pl.Play()
	}
	b.ticker.Start(defaultPollInterval, b.sample)
}

func (b *EmbeddedBackend) onLoadError(err error) {
	b.events.error(KindEmbedLoadFailure, err)
}

func (b *EmbeddedBackend) onStateChange(s EmbedState) {
	switch s {
	case EmbedPlaying:
		b.events.stateChange(true)
	case EmbedPaused:
		b.events.stateChange(false)
	case EmbedEnded:
		b.events.stateChange(false)
		b.events.ended()
	}
}

// onRateChange pins playback speed: watching at 2x would let the playhead
// legitimately outrun the wall clock.
func (b *EmbeddedBackend) onRateChange(rate float64) {
	if rate == 1 {
		return
	}
	b.mu.Lock()
	pl := b.pl
	b.mu.Unlock()
	if pl != nil {
		pl.SetRate(1)
	}
}

func (b *EmbeddedBackend) sample() {
	b.mu.Lock()
	pl, ok := b.pl, b.ready && !b.closed
	b.mu.Unlock()
	if !ok {
		return
	}
	b.events.timeUpdate(pl.CurrentTime(), b.clock())
}

func (b *EmbeddedBackend) Play() error {
	b.mu.Lock()
	if !b.ready {
		b.pending.play = true
		b.mu.Unlock()
		return nil
	}
	pl := b.pl
	b.mu.Unlock()
	pl.Play()
	return nil
}

func (b *EmbeddedBackend) Pause() error {
	b.mu.Lock()
	if !b.ready {
		b.pending.play = false
		b.mu.Unlock()
		return nil
	}
	pl := b.pl
	b.mu.Unlock()
	pl.Pause()
	return nil
}

func (b *EmbeddedBackend) SeekTo(sec float64) error {
	b.mu.Lock()
	if !b.ready {
		b.pending.seek = &sec
		b.mu.Unlock()
		return nil
	}
	pl := b.pl
	b.mu.Unlock()
	pl.Seek(sec)
	return nil
}

func (b *EmbeddedBackend) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return 0
	}
	return b.pl.CurrentTime()
}

// Duration is gated behind readiness: the embedded player reports stale or
// zero duration until fully initialized.
func (b *EmbeddedBackend) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return 0
	}
	return b.pl.Duration()
}

func (b *EmbeddedBackend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *EmbeddedBackend) Close() error {
	b.ticker.Stop()
	b.mu.Lock()
	b.closed = true
	b.ready = false
	pl := b.pl
	b.pl = nil
	b.mu.Unlock()
	if pl != nil {
		pl.Destroy()
	}
	return nil
}
