package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrFinalized   = errors.New("attempt already finalized")
	ErrNotEligible = errors.New("attempt not eligible for finalization")
	ErrBadAnswer   = errors.New("selected option out of range")
)

type AttemptListOpts struct {
	PackageID string
	UserID    string
	Completed *bool
	Limit     int
	Offset    int
}

type Store interface {
	PutPackage(ctx context.Context, p Package) error
	// GetPackage is student-safe: correct indexes are stripped.
	GetPackage(ctx context.Context, id string) (Package, error)
	// GetPackageFull returns the package with answer keys, for instructors.
	GetPackageFull(ctx context.Context, id string) (Package, error)

	// GetOrCreateAttempt returns the viewer's attempt for the package,
	// creating a fresh one on first open.
	GetOrCreateAttempt(ctx context.Context, packageID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// ReportProgress merges a progress snapshot: MaxReachedSec never
	// regresses, LastPositionSec is last-write-wins. A report against a
	// finalized attempt is a no-op (late flushes are expected).
	ReportProgress(ctx context.Context, attemptID string, rep ProgressReport) (Attempt, error)

	// SaveAnswer records or overwrites the answer for one checkpoint.
	SaveAnswer(ctx context.Context, attemptID, checkpointID string, selected int) (Attempt, error)

	// Finalize scores the attempt and marks it completed, exactly once.
	Finalize(ctx context.Context, attemptID string) (Attempt, Report, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	packages map[string]Package
	attempts map[string]Attempt
}

func NewInMemoryStore() Store {
	return &memoryStore{
		packages: map[string]Package{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutPackage(_ context.Context, p Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	m.packages[p.ID] = p
	return nil
}

func (m *memoryStore) GetPackage(ctx context.Context, id string) (Package, error) {
	p, err := m.GetPackageFull(ctx, id)
	if err != nil {
		return Package{}, err
	}
	return p.Sanitized(), nil
}

func (m *memoryStore) GetPackageFull(_ context.Context, id string) (Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.packages[id]
	if !ok {
		return Package{}, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *memoryStore) GetOrCreateAttempt(_ context.Context, packageID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packages[packageID]; !ok {
		return Attempt{}, fmt.Errorf("package %s: %w", packageID, ErrNotFound)
	}
	for _, a := range m.attempts {
		if a.PackageID == packageID && a.UserID == userID {
			return a, nil
		}
	}
	a := Attempt{
		ID:        uuid.NewString(),
		PackageID: packageID,
		UserID:    userID,
		Answers:   map[string]int{},
		StartedAt: time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.PackageID != "" && a.PackageID != opts.PackageID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Completed != nil && a.Finalized() != *opts.Completed {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) ReportProgress(_ context.Context, attemptID string, rep ProgressReport) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.Finalized() {
		return a, nil
	}
	p := m.packages[a.PackageID]
	mergeProgress(&a, rep, p.DurationSec)
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) SaveAnswer(_ context.Context, attemptID, checkpointID string, selected int) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.Finalized() {
		return Attempt{}, ErrFinalized
	}
	p, ok := m.packages[a.PackageID]
	if !ok {
		return Attempt{}, fmt.Errorf("package %s: %w", a.PackageID, ErrNotFound)
	}
	if err := validateAnswer(p, checkpointID, selected); err != nil {
		return Attempt{}, err
	}
	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	a.Answers[checkpointID] = selected
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Finalize(_ context.Context, attemptID string) (Attempt, Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, Report{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	p, ok := m.packages[a.PackageID]
	if !ok {
		return Attempt{}, Report{}, fmt.Errorf("package %s: %w", a.PackageID, ErrNotFound)
	}
	if a.Finalized() {
		rep := scoreAttempt(p, a)
		return a, rep, nil
	}
	if !Eligible(p, a) {
		return Attempt{}, Report{}, ErrNotEligible
	}
	rep := scoreAttempt(p, a)
	now := time.Now().Unix()
	score := rep.ScorePct / 100
	a.CompletedAt = &now
	a.Score = &score
	m.attempts[attemptID] = a
	return a, rep, nil
}
