package review

// SourceKind selects which playback backend a package's video needs.
type SourceKind string

const (
	SourceDirect   SourceKind = "direct"   // media file served through the authenticated proxy
	SourceEmbedded SourceKind = "embedded" // third-party player loaded by the client
)

type Source struct {
	Kind    SourceKind `json:"kind"`
	Locator string     `json:"locator"` // blob key (direct) or provider video id (embedded)
}

// Checkpoint is a timestamped multiple-choice question embedded in the video.
// CorrectIndex is -1 in student-facing payloads.
type Checkpoint struct {
	ID           string   `json:"id"`
	TimestampSec float64  `json:"timestamp_sec"`
	Required     bool     `json:"required"`
	Points       float64  `json:"points"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// Package is the immutable definition of one review video: source, duration
// and the ordered checkpoint list. Authored by instructors, read-only to
// viewers.
type Package struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Source      Source       `json:"source"`
	DurationSec float64      `json:"duration_sec"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	CreatedAt   int64        `json:"created_at,omitempty"`
}

// Sanitized returns a copy safe to serve to students: correct answers hidden.
func (p Package) Sanitized() Package {
	cps := make([]Checkpoint, len(p.Checkpoints))
	copy(cps, p.Checkpoints)
	for i := range cps {
		cps[i].CorrectIndex = -1
	}
	p.Checkpoints = cps
	return p
}

// RequiredIDs returns the ids of required checkpoints in timestamp order.
func (p Package) RequiredIDs() []string {
	var ids []string
	for _, cp := range p.Checkpoints {
		if cp.Required {
			ids = append(ids, cp.ID)
		}
	}
	return ids
}

// Attempt is the durable per-student record of progress, answers and
// completion for one package. MaxReachedSec never decreases; once
// CompletedAt is set the record is immutable.
type Attempt struct {
	ID              string         `json:"id"`
	PackageID       string         `json:"package_id"`
	UserID          string         `json:"user_id"`
	Answers         map[string]int `json:"answers"`                // checkpoint id -> selected option index
	MaxReachedSec   float64        `json:"max_reached_sec"`
	LastPositionSec float64        `json:"last_position_sec"`
	WatchedToEnd    bool           `json:"watched_to_end"`
	CompletedAt     *int64         `json:"completed_at,omitempty"` // unix seconds
	Score           *float64       `json:"score,omitempty"`        // fraction earned/total, set on finalize
	StartedAt       int64          `json:"started_at"`
}

// Finalized reports whether the attempt has been submitted for good.
func (a Attempt) Finalized() bool { return a.CompletedAt != nil }

// ProgressReport is the client's snapshot of viewing progress. The store
// merges MaxReachedSec monotonically and applies LastPositionSec last-write-wins.
type ProgressReport struct {
	MaxReachedSec   float64 `json:"max_reached_sec"`
	LastPositionSec float64 `json:"last_position_sec"`
	Ended           bool    `json:"ended,omitempty"`
}

// ReportItem is one row of the scored breakdown returned by Finalize.
type ReportItem struct {
	CheckpointID  string  `json:"checkpoint_id"`
	SelectedIndex int     `json:"selected_index"`
	CorrectIndex  int     `json:"correct_index"`
	IsCorrect     bool    `json:"is_correct"`
	PointsEarned  float64 `json:"points_earned"`
}

type Report struct {
	EarnedPoints float64      `json:"earned_points"`
	TotalPoints  float64      `json:"total_points"`
	ScorePct     float64      `json:"score_pct"`
	Items        []ReportItem `json:"items"`
}

// endTolerance absorbs embedded players that stop a beat short of the
// reported duration without emitting a clean end event.
const endTolerance = 1.25

func reachedEnd(maxReached, duration float64) bool {
	return duration > 0 && maxReached >= duration-endTolerance
}
