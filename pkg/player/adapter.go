package player

import "time"

// AdapterEvents are the normalized playback events both backends emit. The
// session controller owns the callbacks; backends never interpret positions
// themselves.
type AdapterEvents struct {
	// OnTimeUpdate delivers a position sample paired with the wall-clock
	// instant it was taken. The pair is what jump detection runs on.
	OnTimeUpdate func(sec float64, at time.Time)
	OnStateChange func(playing bool)
	OnEnded       func()
	OnError       func(kind ErrorKind, err error)
	// OnSeekRequest lets the owner veto or clamp a seek before it takes
	// effect. Only the direct backend can honor it; the embedded backend has
	// no interception hook and relies on after-the-fact correction.
	OnSeekRequest func(target float64) float64
}

func (e AdapterEvents) timeUpdate(sec float64, at time.Time) {
	if e.OnTimeUpdate != nil {
		e.OnTimeUpdate(sec, at)
	}
}

func (e AdapterEvents) stateChange(playing bool) {
	if e.OnStateChange != nil {
		e.OnStateChange(playing)
	}
}

func (e AdapterEvents) ended() {
	if e.OnEnded != nil {
		e.OnEnded()
	}
}

func (e AdapterEvents) error(kind ErrorKind, err error) {
	if e.OnError != nil {
		e.OnError(kind, err)
	}
}

// Adapter is the uniform play/pause/seek/query surface over both playback
// backends.
type Adapter interface {
	Play() error
	Pause() error
	// SeekTo moves the playhead. Seeks issued through this method are the
	// adapter's own (resume, corrective) and are exempt from seek filtering.
	SeekTo(sec float64) error
	CurrentTime() float64
	// Duration returns 0 until the backend knows the authoritative duration.
	Duration() float64
	Ready() bool
	Close() error
}
