package player

import "context"

// Backend is the review service of record. The session engine works against
// this interface; playerhttp implements it over REST.
type Backend interface {
	// FetchSession loads the package and the viewer's attempt, creating the
	// attempt on first open.
	FetchSession(ctx context.Context, packageID string) (Package, Attempt, error)

	// ReportProgress sends a progress snapshot. The server merges the
	// watermark monotonically, so out-of-order arrival cannot regress it.
	ReportProgress(ctx context.Context, attemptID string, snap ProgressSnapshot) (Attempt, error)

	// SubmitAnswer records (or overwrites) the answer for one checkpoint and
	// returns the authoritative attempt.
	SubmitAnswer(ctx context.Context, attemptID, checkpointID string, selected int) (Attempt, error)

	// Finalize submits the attempt for scoring, exactly once.
	Finalize(ctx context.Context, attemptID string) (Attempt, Report, error)
}
