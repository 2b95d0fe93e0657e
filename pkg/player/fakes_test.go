package player

import (
	"context"
	"sync"
	"time"
)

/* ---------------- Shared fakes for the engine tests ---------------- */

// fakeClock hands out a controllable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualTicker fires only when the test says so.
type manualTicker struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
}

func (t *manualTicker) Start(_ time.Duration, fn func()) {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
}

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) Tick() {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fakeBackend is an in-memory review service.
type fakeBackend struct {
	mu      sync.Mutex
	pkg     Package
	attempt Attempt

	reports      []ProgressSnapshot
	submits      []string
	submitErr    error
	reportErr    error
	finalizeErr  error
	finalized    bool
	finalizeRept Report
}

func (b *fakeBackend) FetchSession(_ context.Context, _ string) (Package, Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pkg, b.attempt, nil
}

func (b *fakeBackend) ReportProgress(_ context.Context, _ string, snap ProgressSnapshot) (Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reportErr != nil {
		return Attempt{}, b.reportErr
	}
	b.reports = append(b.reports, snap)
	if snap.MaxReachedSec > b.attempt.MaxReachedSec {
		b.attempt.MaxReachedSec = snap.MaxReachedSec
	}
	b.attempt.LastPositionSec = snap.LastPositionSec
	if snap.Ended {
		b.attempt.WatchedToEnd = true
	}
	return b.attempt, nil
}

func (b *fakeBackend) SubmitAnswer(_ context.Context, _ string, checkpointID string, selected int) (Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return Attempt{}, b.submitErr
	}
	b.submits = append(b.submits, checkpointID)
	if b.attempt.Answers == nil {
		b.attempt.Answers = map[string]int{}
	}
	b.attempt.Answers[checkpointID] = selected
	return b.attempt, nil
}

func (b *fakeBackend) Finalize(_ context.Context, _ string) (Attempt, Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalizeErr != nil {
		return Attempt{}, Report{}, b.finalizeErr
	}
	b.finalized = true
	completed := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC).Unix()
	b.attempt.CompletedAt = &completed
	return b.attempt, b.finalizeRept, nil
}

func (b *fakeBackend) reportCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reports)
}

func (b *fakeBackend) lastReport() ProgressSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reports[len(b.reports)-1]
}

// fakeAdapter records commands for gate-level tests.
type fakeAdapter struct {
	mu     sync.Mutex
	plays  int
	pauses int
	seeks  []float64
	dur    float64
}

func (a *fakeAdapter) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays++
	return nil
}

func (a *fakeAdapter) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauses++
	return nil
}

func (a *fakeAdapter) SeekTo(sec float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeks = append(a.seeks, sec)
	return nil
}

func (a *fakeAdapter) CurrentTime() float64 { return 0 }
func (a *fakeAdapter) Duration() float64    { return a.dur }
func (a *fakeAdapter) Ready() bool          { return true }
func (a *fakeAdapter) Close() error         { return nil }

// fakeMedia simulates a native media element. User actions go through the
// bound handlers the way a real element would route them.
type fakeMedia struct {
	mu       sync.Mutex
	handlers MediaHandlers
	cur      float64
	dur      float64
	playing  bool
	playErr  error
	seeks    []float64
	pauses   int
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	m.playing = false
	m.pauses++
	m.mu.Unlock()
}

func (m *fakeMedia) Seek(sec float64) {
	m.mu.Lock()
	m.cur = sec
	m.seeks = append(m.seeks, sec)
	m.mu.Unlock()
}

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *fakeMedia) Duration() float64 { return m.dur }

func (m *fakeMedia) Bind(h MediaHandlers) { m.handlers = h }

// emitTime simulates the element's periodic timeupdate.
func (m *fakeMedia) emitTime(sec float64) {
	m.mu.Lock()
	m.cur = sec
	m.mu.Unlock()
	m.handlers.TimeUpdate(sec)
}

// userSeek simulates a scrub on the element's own controls: the permitted
// target comes back from the seek-request hook.
func (m *fakeMedia) userSeek(target float64) float64 {
	permitted := target
	if m.handlers.SeekRequest != nil {
		permitted = m.handlers.SeekRequest(target)
	}
	m.mu.Lock()
	m.cur = permitted
	m.mu.Unlock()
	return permitted
}

// fakeEmbedPlayer simulates a provider player after its ready callback.
type fakeEmbedPlayer struct {
	mu       sync.Mutex
	handlers EmbedHandlers
	cur      float64
	dur      float64
	rates    []float64
	seeks    []float64
	plays    int
	pauses   int
	destroys int
}

func (p *fakeEmbedPlayer) Play() {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
}

func (p *fakeEmbedPlayer) Pause() {
	p.mu.Lock()
	p.pauses++
	p.mu.Unlock()
}

func (p *fakeEmbedPlayer) Seek(sec float64) {
	p.mu.Lock()
	p.cur = sec
	p.seeks = append(p.seeks, sec)
	p.mu.Unlock()
}

func (p *fakeEmbedPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *fakeEmbedPlayer) Duration() float64 { return p.dur }

func (p *fakeEmbedPlayer) SetRate(rate float64) {
	p.mu.Lock()
	p.rates = append(p.rates, rate)
	p.mu.Unlock()
}

func (p *fakeEmbedPlayer) Bind(h EmbedHandlers) { p.handlers = h }

func (p *fakeEmbedPlayer) Destroy() {
	p.mu.Lock()
	p.destroys++
	p.mu.Unlock()
}

func (p *fakeEmbedPlayer) setTime(sec float64) {
	p.mu.Lock()
	p.cur = sec
	p.mu.Unlock()
}

// fakeEmbedLoader lets the test decide when (and whether) the player comes
// up.
type fakeEmbedLoader struct {
	onReady func(EmbedPlayer)
	onError func(error)
}

func (l *fakeEmbedLoader) Load(_ string, onReady func(EmbedPlayer), onError func(error)) {
	l.onReady = onReady
	l.onError = onError
}

/* ---------------- Seed data ---------------- */

func seedPackage() Package {
	return Package{
		ID:          "pkg-1",
		Title:       "Fractions Review",
		Source:      Source{Kind: SourceDirect, Locator: "media/fractions.mp4"},
		DurationSec: 300,
		Checkpoints: []Checkpoint{
			{ID: "cp-1", TimestampSec: 60, Required: true, Points: 10,
				Question: "1/2 + 1/4 = ?", Options: []string{"3/4", "2/6", "1/8"}},
			{ID: "cp-2", TimestampSec: 120, Required: false, Points: 5,
				Question: "Optional bonus", Options: []string{"a", "b"}},
			{ID: "cp-3", TimestampSec: 240, Required: true, Points: 10,
				Question: "3/4 - 1/4 = ?", Options: []string{"1/2", "2/4", "1"}},
		},
	}
}

func seedAttempt() Attempt {
	return Attempt{
		ID:        "att-1",
		PackageID: "pkg-1",
		UserID:    "u-1",
		Answers:   map[string]int{},
	}
}
