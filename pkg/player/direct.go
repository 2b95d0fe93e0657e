package player

import (
	"sync"
	"time"
)

// MediaError codes reported by a MediaElement.
const (
	MediaErrUnsupported = "unsupported"
	MediaErrBlocked     = "blocked"
)

// MediaHandlers are the hooks a native media element exposes. SeekRequest is
// consulted before a user seek takes visual effect and returns the permitted
// target.
type MediaHandlers struct {
	TimeUpdate  func(sec float64)
	SeekRequest func(target float64) float64
	StateChange func(playing bool)
	Ended       func()
	Error       func(code string)
}

// MediaElement is a natively addressable media resource: rich events,
// synchronous queries, and interceptable seeks.
type MediaElement interface {
	Play() error
	Pause()
	Seek(sec float64)
	CurrentTime() float64
	Duration() float64
	Bind(MediaHandlers)
}

// DirectBackend adapts a MediaElement to the Adapter contract.
type DirectBackend struct {
	el     MediaElement
	clock  Clock
	events AdapterEvents

	mu       sync.Mutex
	selfSeek bool
	closed   bool
}

func NewDirectBackend(el MediaElement, clock Clock, events AdapterEvents) *DirectBackend {
	if clock == nil {
		clock = time.Now
	}
	b := &DirectBackend{el: el, clock: clock, events: events}
	el.Bind(MediaHandlers{
		TimeUpdate:  b.onTimeUpdate,
		SeekRequest: b.onSeekRequest,
		StateChange: b.events.stateChange,
		Ended:       b.events.ended,
		Error:       b.onError,
	})
	return b
}

func (b *DirectBackend) onTimeUpdate(sec float64) {
	if b.isClosed() {
		return
	}
	b.events.timeUpdate(sec, b.clock())
}

// onSeekRequest filters user/element seeks. Seeks the backend issued itself
// pass through untouched so a correction never triggers another correction.
func (b *DirectBackend) onSeekRequest(target float64) float64 {
	b.mu.Lock()
	self := b.selfSeek
	b.mu.Unlock()
	if self || b.events.OnSeekRequest == nil {
		return target
	}
	return b.events.OnSeekRequest(target)
}

func (b *DirectBackend) onError(code string) {
	switch code {
	case MediaErrUnsupported:
		b.events.error(KindPlaybackUnsupported, ErrSourceUnsupported)
	case MediaErrBlocked:
		b.events.error(KindPlaybackBlocked, ErrAutoplayBlocked)
	}
}

func (b *DirectBackend) Play() error  { return b.el.Play() }
func (b *DirectBackend) Pause() error { b.el.Pause(); return nil }

func (b *DirectBackend) SeekTo(sec float64) error {
	b.mu.Lock()
	b.selfSeek = true
	b.mu.Unlock()
	b.el.Seek(sec)
	b.mu.Lock()
	b.selfSeek = false
	b.mu.Unlock()
	return nil
}

func (b *DirectBackend) CurrentTime() float64 { return b.el.CurrentTime() }
func (b *DirectBackend) Duration() float64    { return b.el.Duration() }
func (b *DirectBackend) Ready() bool          { return true }

func (b *DirectBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.el.Pause()
	return nil
}

func (b *DirectBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
