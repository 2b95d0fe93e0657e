package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func seedSync(t *testing.T) (*sessionState, *fakeBackend, *fakeClock, *manualTicker, *SyncChannel) {
	t.Helper()
	st := newSessionState(seedPackage(), seedAttempt())
	be := &fakeBackend{pkg: seedPackage(), attempt: seedAttempt()}
	clock := newFakeClock()
	ticker := &manualTicker{}
	s := newSyncChannel(st, be, clock.Now, ticker, zap.NewNop())
	return st, be, clock, ticker, s
}

func TestSyncDebounceSuppressesNearDuplicates(t *testing.T) {
	st, be, clock, _, s := seedSync(t)
	ctx := context.Background()

	st.attempt.MaxReachedSec = 30
	st.currentSec = 30
	if err := s.Report(ctx, false); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if be.reportCount() != 1 {
		t.Fatalf("first report not sent")
	}

	// Barely-moved snapshot shortly after: suppressed.
	st.attempt.MaxReachedSec = 30.4
	st.currentSec = 30.4
	clock.Advance(2 * time.Second)
	if err := s.Report(ctx, false); err != nil {
		t.Fatalf("debounced report: %v", err)
	}
	if be.reportCount() != 1 {
		t.Fatalf("near-duplicate report not suppressed, count=%d", be.reportCount())
	}

	// A significant position delta goes through.
	st.attempt.MaxReachedSec = 35
	st.currentSec = 35
	if err := s.Report(ctx, false); err != nil {
		t.Fatalf("moved report: %v", err)
	}
	if be.reportCount() != 2 {
		t.Fatalf("significant delta suppressed")
	}
}

func TestSyncDebounceExpiresByTime(t *testing.T) {
	st, be, clock, _, s := seedSync(t)
	ctx := context.Background()

	st.attempt.MaxReachedSec = 30
	st.currentSec = 30
	s.Report(ctx, false)

	// Same snapshot but the debounce interval has lapsed.
	clock.Advance(9 * time.Second)
	s.Report(ctx, false)
	if be.reportCount() != 2 {
		t.Fatalf("stale report suppressed after interval, count=%d", be.reportCount())
	}
}

func TestSyncForcedReportBypassesDebounce(t *testing.T) {
	st, be, _, _, s := seedSync(t)
	ctx := context.Background()

	st.attempt.MaxReachedSec = 30
	st.currentSec = 30
	s.Report(ctx, false)
	s.Report(ctx, true)
	if be.reportCount() != 2 {
		t.Fatalf("forced report debounced, count=%d", be.reportCount())
	}
}

func TestSyncHeartbeatForces(t *testing.T) {
	st, be, _, ticker, s := seedSync(t)
	s.start(context.Background())

	st.mu.Lock()
	st.attempt.MaxReachedSec = 12
	st.currentSec = 12
	st.mu.Unlock()

	ticker.Tick()
	ticker.Tick()
	if be.reportCount() != 2 {
		t.Fatalf("heartbeat reports = %d, want 2", be.reportCount())
	}
	if got := be.lastReport(); got.MaxReachedSec != 12 {
		t.Fatalf("heartbeat snapshot max = %.2f, want 12", got.MaxReachedSec)
	}

	s.stop()
	if !ticker.stopped {
		t.Fatalf("heartbeat ticker not stopped")
	}
}

func TestSyncFailureIsReturnedButHarmless(t *testing.T) {
	st, be, clock, _, s := seedSync(t)
	ctx := context.Background()
	be.reportErr = errors.New("gateway timeout")

	st.attempt.MaxReachedSec = 30
	st.currentSec = 30
	if err := s.Report(ctx, true); err == nil {
		t.Fatalf("expected report error")
	}
	if st.attempt.MaxReachedSec != 30 {
		t.Fatalf("local watermark disturbed by failed report")
	}

	// Next report retries the same snapshot even within the debounce window
	// if forced, and succeeds.
	be.reportErr = nil
	clock.Advance(time.Second)
	if err := s.Report(ctx, true); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if be.reportCount() != 1 {
		t.Fatalf("retry not delivered")
	}
}

func TestSyncMergeNeverRegressesWatermark(t *testing.T) {
	st, _, _, _, _ := seedSync(t)

	// A response produced before newer local samples carries a stale
	// watermark; folding it in must not pull the local one back.
	st.attempt.MaxReachedSec = 50
	st.attempt.WatchedToEnd = true
	stale := seedAttempt()
	stale.MaxReachedSec = 10
	st.mergeAttempt(stale)
	if st.attempt.MaxReachedSec != 50 {
		t.Fatalf("merge regressed watermark to %.2f", st.attempt.MaxReachedSec)
	}
	if !st.attempt.WatchedToEnd {
		t.Fatalf("merge dropped watched-to-end latch")
	}
}

func TestSyncMergeKeepsLocallyKnownAnswers(t *testing.T) {
	st, _, _, _, _ := seedSync(t)

	// A heartbeat response computed before a newer answer submit arrives
	// last; the locally known answer must survive the merge.
	st.attempt.Answers["cp-1"] = 1
	stale := seedAttempt()
	st.mergeAttempt(stale)
	if got, ok := st.attempt.Answers["cp-1"]; !ok || got != 1 {
		t.Fatalf("stale response removed answer: %v", st.attempt.Answers)
	}

	// Responses still overwrite: the server's value for a checkpoint it
	// knows about wins.
	newer := seedAttempt()
	newer.Answers["cp-1"] = 2
	st.mergeAttempt(newer)
	if st.attempt.Answers["cp-1"] != 2 {
		t.Fatalf("server answer not applied: %v", st.attempt.Answers)
	}
}

func TestSyncSkipsAfterFinalize(t *testing.T) {
	st, be, _, _, s := seedSync(t)
	completed := int64(1700000000)
	st.attempt.CompletedAt = &completed

	if err := s.Report(context.Background(), true); err != nil {
		t.Fatalf("report after finalize: %v", err)
	}
	if be.reportCount() != 0 {
		t.Fatalf("report sent for finalized attempt")
	}
}

func TestSyncFlushBounded(t *testing.T) {
	st, be, _, _, s := seedSync(t)
	st.attempt.MaxReachedSec = 77
	st.currentSec = 77

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := be.lastReport(); got.MaxReachedSec != 77 {
		t.Fatalf("flush snapshot max = %.2f, want 77", got.MaxReachedSec)
	}
}
