package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Completion evaluates submit-eligibility and performs the one-shot final
// submission.
type Completion struct {
	st      *sessionState
	backend Backend
	log     *zap.Logger
}

func newCompletion(st *sessionState, backend Backend, log *zap.Logger) *Completion {
	return &Completion{st: st, backend: backend, log: log.Named("completion")}
}

// Eligible reports whether the attempt may be finalized: watched to the end
// and every required checkpoint answered.
func (c *Completion) Eligible() bool {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return eligibleLocked(st)
}

func eligibleLocked(st *sessionState) bool {
	if !st.attempt.WatchedToEnd {
		return false
	}
	for _, cp := range st.pkg.Checkpoints {
		if !cp.Required {
			continue
		}
		if _, ok := st.attempt.Answers[cp.ID]; !ok {
			return false
		}
	}
	return true
}

// Finalize checks eligibility locally, then asks the backend to score and
// close the attempt. After success the editing affordance is dead: the
// finalized attempt makes the gate refuse edits.
func (c *Completion) Finalize(ctx context.Context) (Attempt, Report, error) {
	st := c.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return Attempt{}, Report{}, ErrSessionClosed
	}
	if st.finalized() {
		st.mu.Unlock()
		return Attempt{}, Report{}, ErrFinalized
	}
	if !eligibleLocked(st) {
		st.mu.Unlock()
		return Attempt{}, Report{}, ErrNotEligible
	}
	attemptID := st.attempt.ID
	st.mu.Unlock()

	attempt, report, err := c.backend.Finalize(ctx, attemptID)
	if err != nil {
		return Attempt{}, Report{}, fmt.Errorf("finalize attempt: %w", err)
	}

	st.mu.Lock()
	st.mergeAttempt(attempt)
	st.mu.Unlock()

	c.log.Info("attempt finalized",
		zap.String("attempt", attemptID),
		zap.Float64("score_pct", report.ScorePct))
	return attempt, report, nil
}
