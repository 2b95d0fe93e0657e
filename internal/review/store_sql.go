package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncx "github.com/lpedia/review-player/internal/sync"
)

// SQLStore persists packages and attempts over database/sql. Checkpoints and
// answers live in JSON columns; the merge semantics run in Go inside a
// transaction so sqlite and postgres behave identically.
type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	log    *zap.Logger
}

func NewSQLStore(db *sql.DB, log *zap.Logger) *SQLStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLStore{db: db, events: syncx.NewEventRepo(db), log: log.Named("store")}
}

func (s *SQLStore) PutPackage(ctx context.Context, p Package) error {
	cj, err := json.Marshal(p.Checkpoints)
	if err != nil {
		return err
	}
	sj, err := json.Marshal(p.Source)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO packages (id,title,source_json,duration_sec,checkpoints_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, source_json=EXCLUDED.source_json,
			duration_sec=EXCLUDED.duration_sec, checkpoints_json=EXCLUDED.checkpoints_json`,
		p.ID, p.Title, string(sj), p.DurationSec, string(cj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetPackage(ctx context.Context, id string) (Package, error) {
	p, err := s.GetPackageFull(ctx, id)
	if err != nil {
		return Package{}, err
	}
	return p.Sanitized(), nil
}

func (s *SQLStore) GetPackageFull(ctx context.Context, id string) (Package, error) {
	return getPackage(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPackage(ctx context.Context, q querier, id string) (Package, error) {
	row := q.QueryRowContext(ctx, `SELECT id,title,source_json,duration_sec,checkpoints_json,created_at FROM packages WHERE id=$1`, id)
	var p Package
	var sj, cj string
	if err := row.Scan(&p.ID, &p.Title, &sj, &p.DurationSec, &cj, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Package{}, fmt.Errorf("package %s: %w", id, ErrNotFound)
		}
		return Package{}, err
	}
	if err := json.Unmarshal([]byte(sj), &p.Source); err != nil {
		return Package{}, err
	}
	if err := json.Unmarshal([]byte(cj), &p.Checkpoints); err != nil {
		return Package{}, err
	}
	return p, nil
}

func (s *SQLStore) GetOrCreateAttempt(ctx context.Context, packageID, userID string) (Attempt, error) {
	if _, err := getPackage(ctx, s.db, packageID); err != nil {
		return Attempt{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE package_id=$1 AND user_id=$2`, packageID, userID)
	a, err := scanAttempt(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Attempt{}, err
	}
	a = Attempt{
		ID:        uuid.NewString(),
		PackageID: packageID,
		UserID:    userID,
		Answers:   map[string]int{},
		StartedAt: time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,package_id,user_id,answers_json,max_reached_sec,last_position_sec,watched_to_end,started_at)
		VALUES ($1,$2,$3,'{}',0,0,FALSE,$4)`,
		a.ID, a.PackageID, a.UserID, a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

const attemptCols = `id,package_id,user_id,answers_json,max_reached_sec,last_position_sec,watched_to_end,completed_at,score,started_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var aj string
	var completed sql.NullInt64
	var score sql.NullFloat64
	err := row.Scan(&a.ID, &a.PackageID, &a.UserID, &aj, &a.MaxReachedSec, &a.LastPositionSec,
		&a.WatchedToEnd, &completed, &score, &a.StartedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil || a.Answers == nil {
		a.Answers = map[string]int{}
	}
	if completed.Valid {
		v := completed.Int64
		a.CompletedAt = &v
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE 1=1`
	var args []any
	n := 0
	add := func(cond string, v any) {
		n++
		q += fmt.Sprintf(" AND %s$%d", cond, n)
		args = append(args, v)
	}
	if opts.PackageID != "" {
		add("package_id=", opts.PackageID)
	}
	if opts.UserID != "" {
		add("user_id=", opts.UserID)
	}
	if opts.Completed != nil {
		if *opts.Completed {
			q += " AND completed_at IS NOT NULL"
		} else {
			q += " AND completed_at IS NULL"
		}
	}
	q += " ORDER BY started_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReportProgress(ctx context.Context, attemptID string, rep ProgressReport) (Attempt, error) {
	var out Attempt
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := getAttemptTx(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if a.Finalized() {
			out = a
			return nil
		}
		p, err := getPackage(ctx, tx, a.PackageID)
		if err != nil {
			return err
		}
		mergeProgress(&a, rep, p.DurationSec)
		_, err = tx.ExecContext(ctx, `UPDATE attempts SET max_reached_sec=$1,last_position_sec=$2,watched_to_end=$3 WHERE id=$4`,
			a.MaxReachedSec, a.LastPositionSec, a.WatchedToEnd, a.ID)
		out = a
		return err
	})
	return out, err
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, checkpointID string, selected int) (Attempt, error) {
	var out Attempt
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := getAttemptTx(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if a.Finalized() {
			return ErrFinalized
		}
		p, err := getPackage(ctx, tx, a.PackageID)
		if err != nil {
			return err
		}
		if err := validateAnswer(p, checkpointID, selected); err != nil {
			return err
		}
		a.Answers[checkpointID] = selected
		buf, _ := json.Marshal(a.Answers)
		if _, err := tx.ExecContext(ctx, `UPDATE attempts SET answers_json=$1 WHERE id=$2`, string(buf), a.ID); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	s.appendEvent(ctx, syncx.EventAnswerSaved, attemptID, map[string]any{
		"checkpoint_id": checkpointID, "selected_index": selected,
	})
	return out, nil
}

func (s *SQLStore) Finalize(ctx context.Context, attemptID string) (Attempt, Report, error) {
	var outA Attempt
	var outR Report
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		a, err := getAttemptTx(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		p, err := getPackage(ctx, tx, a.PackageID)
		if err != nil {
			return err
		}
		if a.Finalized() {
			outA, outR = a, scoreAttempt(p, a)
			return nil
		}
		if !Eligible(p, a) {
			return ErrNotEligible
		}
		rep := scoreAttempt(p, a)
		now := time.Now().Unix()
		score := rep.ScorePct / 100
		if _, err := tx.ExecContext(ctx, `UPDATE attempts SET completed_at=$1, score=$2 WHERE id=$3`, now, score, a.ID); err != nil {
			return err
		}
		a.CompletedAt = &now
		a.Score = &score
		outA, outR = a, rep
		return nil
	})
	if err != nil {
		return Attempt{}, Report{}, err
	}
	s.appendEvent(ctx, syncx.EventAttemptFinalized, attemptID, map[string]any{
		"score_pct": outR.ScorePct,
	})
	return outA, outR, nil
}

func getAttemptTx(ctx context.Context, tx *sql.Tx, id string) (Attempt, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// appendEvent is best-effort: the event log feeds downstream sync, losing an
// entry must not fail the student-facing write.
func (s *SQLStore) appendEvent(ctx context.Context, typ, key string, data map[string]any) {
	buf, _ := json.Marshal(data)
	if err := s.events.Append(ctx, syncx.Event{Type: typ, Key: key, DataJSON: string(buf)}); err != nil {
		s.log.Warn("event log append failed", zap.String("type", typ), zap.Error(err))
	}
}
