package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// gateEpsilon catches a checkpoint whose timestamp falls between two poll
// samples.
const gateEpsilon = 0.05

// Gate freezes playback at required checkpoints until an answer is accepted
// by the backend, and drives post-hoc answer editing before finalization.
// While locked, the Gate is the only owner allowed to resume playback.
type Gate struct {
	st      *sessionState
	adapter Adapter
	backend Backend
	log     *zap.Logger
}

func newGate(st *sessionState, adapter Adapter, backend Backend, log *zap.Logger) *Gate {
	return &Gate{st: st, adapter: adapter, backend: backend, log: log.Named("gate")}
}

// evaluate inspects an accepted position. Caller holds st.mu. It returns the
// checkpoint that just locked the session and any optional checkpoint to
// surface as a non-blocking prompt; the caller emits events and pauses after
// releasing the lock.
func (g *Gate) evaluate(sec float64) (lock *Checkpoint, prompt *Checkpoint) {
	st := g.st
	if st.locked || st.editing || st.finalized() {
		return nil, nil
	}
	for i := range st.pkg.Checkpoints {
		cp := &st.pkg.Checkpoints[i]
		if sec+gateEpsilon < cp.TimestampSec {
			break // ordered by timestamp; nothing further is reached yet
		}
		if _, answered := st.attempt.Answers[cp.ID]; answered {
			continue
		}
		if !cp.Required {
			if prompt == nil && !st.promptedOptional[cp.ID] {
				st.promptedOptional[cp.ID] = true
				prompt = cp
			}
			continue
		}
		// Earliest unanswered required checkpoint reached: lock.
		st.locked = true
		st.playing = false
		st.activeCheckpoint = cp.ID
		return cp, prompt
	}
	return nil, prompt
}

// Submit answers the active checkpoint (locked or editing). On success the
// authoritative attempt replaces local answers, the lock clears, and the
// gate explicitly resumes playback; on failure the state is untouched so the
// user can retry indefinitely.
func (g *Gate) Submit(ctx context.Context, selected int) error {
	st := g.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return ErrSessionClosed
	}
	if !st.locked && !st.editing {
		st.mu.Unlock()
		return ErrNoActiveCheckpoint
	}
	cp, ok := st.checkpoint(st.activeCheckpoint)
	if !ok {
		st.mu.Unlock()
		return ErrNoActiveCheckpoint
	}
	if selected < 0 || selected >= len(cp.Options) {
		st.mu.Unlock()
		return ErrBadSelection
	}
	attemptID := st.attempt.ID
	st.mu.Unlock()

	updated, err := g.backend.SubmitAnswer(ctx, attemptID, cp.ID, selected)
	if err != nil {
		// Stay locked/editing; playback remains paused.
		g.log.Warn("answer submit failed", zap.String("checkpoint", cp.ID), zap.Error(err))
		return fmt.Errorf("submit answer %s: %w", cp.ID, err)
	}

	st.mu.Lock()
	st.mergeAttempt(updated)
	wasLocked := st.locked
	resume := wasLocked || (st.editing && st.resumeAfterEdit)
	st.locked = false
	st.editing = false
	st.resumeAfterEdit = false
	st.activeCheckpoint = ""
	if resume {
		st.playing = true
	}
	st.mu.Unlock()

	g.log.Debug("answer accepted", zap.String("checkpoint", cp.ID), zap.Int("selected", selected))
	if resume {
		// Resumption is explicit: the gate owns the pause it caused.
		return g.adapter.Play()
	}
	return nil
}

// OpenEdit re-opens an already-answered, reachable checkpoint before
// finalization. The pause it causes is optional, not a lock.
func (g *Gate) OpenEdit(checkpointID string) (Checkpoint, int, error) {
	st := g.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return Checkpoint{}, 0, ErrSessionClosed
	}
	if st.finalized() {
		st.mu.Unlock()
		return Checkpoint{}, 0, ErrFinalized
	}
	if st.locked || st.editing {
		st.mu.Unlock()
		return Checkpoint{}, 0, ErrLocked
	}
	cp, ok := st.checkpoint(checkpointID)
	if !ok {
		st.mu.Unlock()
		return Checkpoint{}, 0, fmt.Errorf("checkpoint %s: %w", checkpointID, ErrNoActiveCheckpoint)
	}
	current, answered := st.attempt.Answers[checkpointID]
	if !answered {
		st.mu.Unlock()
		return Checkpoint{}, 0, ErrNotAnswered
	}
	st.editing = true
	st.resumeAfterEdit = st.playing
	st.playing = false
	st.activeCheckpoint = checkpointID
	st.mu.Unlock()
	_ = g.adapter.Pause()
	return cp, current, nil
}

// CloseEdit abandons an edit; the stored answer is untouched.
func (g *Gate) CloseEdit() {
	st := g.st
	st.mu.Lock()
	if !st.editing {
		st.mu.Unlock()
		return
	}
	resume := st.resumeAfterEdit
	st.editing = false
	st.resumeAfterEdit = false
	st.activeCheckpoint = ""
	if resume {
		st.playing = true
	}
	st.mu.Unlock()
	if resume {
		_ = g.adapter.Play()
	}
}
