package player

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	heartbeatInterval = 5 * time.Second
	// Debounce thresholds: an unforced report is skipped when both deltas
	// are under debounceDeltaSec and the last report is fresher than
	// debounceInterval.
	debounceDeltaSec = 1.0
	debounceInterval = 8 * time.Second
	flushGrace       = 2 * time.Second
)

// SyncChannel keeps the backend's view of the watermark and position
// reasonably fresh without flooding it: a forced heartbeat on a fixed
// period, plus debounced opportunistic reports on significant events.
// Network failures are swallowed; the next tick retries.
type SyncChannel struct {
	st      *sessionState
	backend Backend
	clock   Clock
	ticker  Ticker
	log     *zap.Logger

	lastSentMax float64
	lastSentPos float64
	lastSentAt  time.Time
}

func newSyncChannel(st *sessionState, backend Backend, clock Clock, ticker Ticker, log *zap.Logger) *SyncChannel {
	if ticker == nil {
		ticker = NewTicker()
	}
	return &SyncChannel{st: st, backend: backend, clock: clock, ticker: ticker, log: log.Named("sync")}
}

func (s *SyncChannel) start(ctx context.Context) {
	s.ticker.Start(heartbeatInterval, func() {
		// Heartbeats are unconditional; debounce only guards opportunistic
		// reports.
		_ = s.Report(ctx, true)
	})
}

func (s *SyncChannel) stop() { s.ticker.Stop() }

// Report sends a snapshot unless debounce suppresses it. The snapshot is
// taken and the merge applied under the state lock; the network call runs
// outside it.
func (s *SyncChannel) Report(ctx context.Context, forced bool) error {
	st := s.st
	st.mu.Lock()
	if st.finalized() {
		st.mu.Unlock()
		return nil
	}
	snap := ProgressSnapshot{
		MaxReachedSec:   st.attempt.MaxReachedSec,
		LastPositionSec: st.currentSec,
		Ended:           st.attempt.WatchedToEnd,
	}
	attemptID := st.attempt.ID
	now := s.clock()
	if !forced && s.withinDebounce(snap, now) {
		st.mu.Unlock()
		return nil
	}
	s.lastSentMax = snap.MaxReachedSec
	s.lastSentPos = snap.LastPositionSec
	s.lastSentAt = now
	st.mu.Unlock()

	updated, err := s.backend.ReportProgress(ctx, attemptID, snap)
	if err != nil {
		// Deliberate: telemetry freshness loses to uninterrupted viewing.
		s.log.Debug("progress report failed", zap.Error(err))
		return err
	}
	st.mu.Lock()
	st.mergeAttempt(updated)
	st.mu.Unlock()
	return nil
}

func (s *SyncChannel) withinDebounce(snap ProgressSnapshot, now time.Time) bool {
	if s.lastSentAt.IsZero() {
		return false
	}
	dMax := snap.MaxReachedSec - s.lastSentMax
	dPos := snap.LastPositionSec - s.lastSentPos
	if dMax < 0 {
		dMax = -dMax
	}
	if dPos < 0 {
		dPos = -dPos
	}
	return dMax < debounceDeltaSec && dPos < debounceDeltaSec &&
		now.Sub(s.lastSentAt) < debounceInterval
}

// Flush issues a forced report with a short bounded grace period, for
// session teardown. The outcome is observable but never blocks teardown
// beyond the grace window.
func (s *SyncChannel) Flush(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, flushGrace)
	defer cancel()
	return s.Report(fctx, true)
}
