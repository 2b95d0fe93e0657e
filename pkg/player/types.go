package player

// Client-side views of the review backend's wire shapes.

type SourceKind string

const (
	SourceDirect   SourceKind = "direct"
	SourceEmbedded SourceKind = "embedded"
)

type Source struct {
	Kind    SourceKind `json:"kind"`
	Locator string     `json:"locator"`
}

type Checkpoint struct {
	ID           string   `json:"id"`
	TimestampSec float64  `json:"timestamp_sec"`
	Required     bool     `json:"required"`
	Points       float64  `json:"points"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
}

// Package is the immutable session definition. Checkpoints arrive ordered by
// timestamp; the server hides correct answers until finalization.
type Package struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Source      Source       `json:"source"`
	DurationSec float64      `json:"duration_sec"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

type Attempt struct {
	ID              string         `json:"id"`
	PackageID       string         `json:"package_id"`
	UserID          string         `json:"user_id"`
	Answers         map[string]int `json:"answers"`
	MaxReachedSec   float64        `json:"max_reached_sec"`
	LastPositionSec float64        `json:"last_position_sec"`
	WatchedToEnd    bool           `json:"watched_to_end"`
	CompletedAt     *int64         `json:"completed_at,omitempty"`
	Score           *float64       `json:"score,omitempty"`
}

func (a Attempt) Finalized() bool { return a.CompletedAt != nil }

type ProgressSnapshot struct {
	MaxReachedSec   float64 `json:"max_reached_sec"`
	LastPositionSec float64 `json:"last_position_sec"`
	Ended           bool    `json:"ended,omitempty"`
}

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
