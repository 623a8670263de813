package dedup

import (
	"context"
	"time"

	"rudder/internal/logbook"
)

const (
	// AutoWindow guards against repeat detections of one print.
	AutoWindow = 3 * time.Minute
	// UploadWindow guards against a user re-submitting the same file.
	UploadWindow = 10 * time.Minute
	// Unbounded matches any earlier record with the same filename.
	Unbounded time.Duration = 0
)

// Store is the persistence the gate consults and writes through.
type Store interface {
	ExistsSince(ctx context.Context, filename string, since time.Time) (bool, error)
	CreateJob(ctx context.Context, job logbook.NewJob, windowStart time.Time) (int64, error)
}

// Gate decides whether a candidate (filename, window) is already recorded.
type Gate struct {
	store Store
	now   func() time.Time
}

// NewGate returns a gate over store.
func NewGate(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	if now != nil {
		g.now = now
	}
	return g
}

// Now returns the gate's current time.
func (g *Gate) Now() time.Time {
	return g.now()
}

// WindowStart converts a trailing window into its start instant. A
// non-positive window is unbounded and yields the zero time.
func (g *Gate) WindowStart(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return g.now().Add(-window)
}

// Exists reports whether a job with filename started at or after windowStart.
func (g *Gate) Exists(ctx context.Context, filename string, windowStart time.Time) (bool, error) {
	return g.store.ExistsSince(ctx, filename, windowStart)
}

// Commit re-evaluates the gate and inserts job in the same transaction.
// A match inside the window returns services.ErrDuplicate and writes nothing.
func (g *Gate) Commit(ctx context.Context, job logbook.NewJob, windowStart time.Time) (int64, error) {
	if job.StartTime.IsZero() {
		job.StartTime = g.now()
	}
	return g.store.CreateJob(ctx, job, windowStart)
}
