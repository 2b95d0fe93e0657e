package player

import "sync"

// sessionState is the single mutable record every component reads and writes
// through; there is no ambient/global state. The mutex serializes the
// interleaving asynchronous sources: poll ticks, user input, network
// callbacks and embedded-player callbacks.
type sessionState struct {
	mu sync.Mutex

	pkg     Package
	attempt Attempt

	currentSec  float64
	durationSec float64
	playing     bool

	// locked is the sole mutual-exclusion device for play intents: while
	// set, every play entry point refuses instead of queueing.
	locked  bool
	editing bool
	// activeCheckpoint is the checkpoint holding the lock or being edited.
	activeCheckpoint string
	// resumeAfterEdit remembers whether playback ran before an edit pause.
	resumeAfterEdit bool

	promptedOptional map[string]bool

	failed bool
	closed bool
}

func newSessionState(pkg Package, attempt Attempt) *sessionState {
	if attempt.Answers == nil {
		attempt.Answers = map[string]int{}
	}
	return &sessionState{
		pkg:              pkg,
		attempt:          attempt,
		currentSec:       attempt.LastPositionSec,
		durationSec:      pkg.DurationSec,
		promptedOptional: map[string]bool{},
	}
}

func (st *sessionState) finalized() bool { return st.attempt.Finalized() }

// mergeAttempt folds an authoritative server response into local state
// without losing what was observed locally in the meantime: the watermark
// never regresses, the end latch never drops, and an answer the client
// already knows about survives a response computed before it was submitted.
// Answers may be overwritten by the response, never removed.
func (st *sessionState) mergeAttempt(a Attempt) {
	if a.MaxReachedSec < st.attempt.MaxReachedSec {
		a.MaxReachedSec = st.attempt.MaxReachedSec
	}
	if st.attempt.WatchedToEnd {
		a.WatchedToEnd = true
	}
	if a.Answers == nil {
		a.Answers = make(map[string]int, len(st.attempt.Answers))
	}
	for id, sel := range st.attempt.Answers {
		if _, ok := a.Answers[id]; !ok {
			a.Answers[id] = sel
		}
	}
	st.attempt = a
}

func (st *sessionState) checkpoint(id string) (Checkpoint, bool) {
	for _, cp := range st.pkg.Checkpoints {
		if cp.ID == id {
			return cp, true
		}
	}
	return Checkpoint{}, false
}
