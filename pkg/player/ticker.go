package player

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock reads so tests can feed deterministic time.
type Clock func() time.Time

// Ticker abstracts the periodic callbacks behind the embedded poll loop and
// the progress heartbeat. Only the component that owns a Ticker knows
// polling is happening.
type Ticker interface {
	Start(interval time.Duration, fn func())
	Stop()
}

// NewTicker returns a time.Ticker-backed Ticker.
func NewTicker() Ticker { return &intervalTicker{} }

type intervalTicker struct {
	mu   sync.Mutex
	stop chan struct{}
}

func (t *intervalTicker) Start(interval time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	go func() {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				fn()
			case <-stop:
				return
			}
		}
	}()
}

func (t *intervalTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
