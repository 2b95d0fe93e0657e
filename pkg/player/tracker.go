package player

import "time"

const (
	// jumpFloorSec is the fixed tolerance floor; generous on purpose so
	// buffering and poll jitter never read as cheating.
	jumpFloorSec = 1.25
	// jumpMarginSec is added on top of the wall-clock allowance.
	jumpMarginSec = 0.75
	// seekGuard suppresses jump analysis briefly after a forced seek so the
	// correction itself is never re-flagged.
	seekGuard = 1 * time.Second
)

// Tracker owns the watermark: the furthest position legitimately reached.
// It is backend-agnostic, consuming only (position, wall-clock) pairs.
// Not safe for concurrent use; the session serializes access.
type Tracker struct {
	watermark  float64
	lastSec    float64
	lastAt     time.Time
	guardUntil time.Time
}

// NewTracker starts from a resumed attempt's watermark.
func NewTracker(watermark float64) *Tracker {
	return &Tracker{watermark: watermark}
}

func (t *Tracker) Watermark() float64 { return t.watermark }

// Observation is the verdict on one position sample.
type Observation struct {
	// EffectiveSec is the position the rest of the pipeline should use.
	EffectiveSec float64
	// Illegitimate means the sample was a forward jump past the watermark
	// that elapsed wall time cannot explain; the caller must issue a
	// corrective seek to EffectiveSec. The watermark did not advance.
	Illegitimate bool
}

// Observe validates one sample. Legitimate samples advance the watermark via
// max-merge, which keeps it monotonic no matter how samples interleave.
func (t *Tracker) Observe(sec float64, now time.Time) Observation {
	defer func() {
		t.lastAt = now
	}()

	wall := 0.0
	if !t.lastAt.IsZero() {
		wall = now.Sub(t.lastAt).Seconds()
	}
	allowance := jumpFloorSec
	if wall > allowance {
		allowance = wall
	}
	allowance += jumpMarginSec

	if t.lastAt.IsZero() || now.Before(t.guardUntil) {
		// Guarded (or very first) samples are never re-flagged, but one
		// still past the allowance is the rejected jump echoing back before
		// the corrective seek landed; clamp it and hold the watermark.
		if sec > t.watermark+allowance {
			t.lastSec = t.watermark
			return Observation{EffectiveSec: t.watermark}
		}
		return t.accept(sec)
	}

	reported := sec - t.lastSec
	if sec > t.watermark+allowance && reported > wall+allowance {
		// Forward jump faster than time itself. Rewind to the watermark and
		// arm the guard so the corrective seek is not re-analyzed.
		t.lastSec = t.watermark
		t.guardUntil = now.Add(seekGuard)
		return Observation{EffectiveSec: t.watermark, Illegitimate: true}
	}
	return t.accept(sec)
}

func (t *Tracker) accept(sec float64) Observation {
	t.lastSec = sec
	if sec > t.watermark {
		t.watermark = sec
	}
	return Observation{EffectiveSec: sec}
}

// ClampSeek pre-empts an explicit seek request: targets beyond the watermark
// are clamped to it rather than allowed and corrected after the fact.
func (t *Tracker) ClampSeek(target float64) (allowed float64, clamped bool) {
	if target > t.watermark {
		return t.watermark, true
	}
	return target, false
}

// NoteForcedSeek rebases the sample history after a seek the engine issued
// itself (resume, clamped scrub), so the next sample is not compared against
// a stale position.
func (t *Tracker) NoteForcedSeek(sec float64, now time.Time) {
	t.lastSec = sec
	t.lastAt = now
	t.guardUntil = now.Add(seekGuard)
}
