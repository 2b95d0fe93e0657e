package review

import "fmt"

// mergeProgress applies the monotonic-merge semantics: the watermark never
// regresses, the resume position is last-write-wins, and end-of-video
// latches once observed or implied by the watermark.
func mergeProgress(a *Attempt, rep ProgressReport, durationSec float64) {
	if rep.MaxReachedSec > a.MaxReachedSec {
		a.MaxReachedSec = rep.MaxReachedSec
	}
	a.LastPositionSec = rep.LastPositionSec
	if rep.Ended || reachedEnd(a.MaxReachedSec, durationSec) {
		a.WatchedToEnd = true
	}
}

func validateAnswer(p Package, checkpointID string, selected int) error {
	for _, cp := range p.Checkpoints {
		if cp.ID != checkpointID {
			continue
		}
		if selected < 0 || selected >= len(cp.Options) {
			return ErrBadAnswer
		}
		return nil
	}
	return fmt.Errorf("checkpoint %s: %w", checkpointID, ErrNotFound)
}

// Eligible reports whether the attempt may be finalized: the video was
// watched to the end and every required checkpoint has an answer.
func Eligible(p Package, a Attempt) bool {
	if !a.WatchedToEnd {
		return false
	}
	for _, id := range p.RequiredIDs() {
		if _, ok := a.Answers[id]; !ok {
			return false
		}
	}
	return true
}

// scoreAttempt builds the per-checkpoint breakdown. The denominator counts
// every required checkpoint plus any optional one the student answered;
// optional checkpoints left unanswered cost nothing.
func scoreAttempt(p Package, a Attempt) Report {
	var rep Report
	for _, cp := range p.Checkpoints {
		selected, answered := a.Answers[cp.ID]
		if !cp.Required && !answered {
			continue
		}
		rep.TotalPoints += cp.Points
		if !answered {
			continue
		}
		item := ReportItem{
			CheckpointID:  cp.ID,
			SelectedIndex: selected,
			CorrectIndex:  cp.CorrectIndex,
			IsCorrect:     selected == cp.CorrectIndex,
		}
		if item.IsCorrect {
			item.PointsEarned = cp.Points
			rep.EarnedPoints += cp.Points
		}
		rep.Items = append(rep.Items, item)
	}
	if rep.TotalPoints > 0 {
		rep.ScorePct = rep.EarnedPoints / rep.TotalPoints * 100
	}
	return rep
}
