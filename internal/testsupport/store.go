package testsupport

import (
	"context"
	"testing"
	"time"

	"rudder/internal/config"
	"rudder/internal/logbook"
)

// MustOpenStore opens a logbook.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *logbook.Store {
	t.Helper()

	store, err := logbook.Open(cfg)
	if err != nil {
		t.Fatalf("logbook.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreateJob inserts a job with no window check and returns it.
func MustCreateJob(t testing.TB, store *logbook.Store, job logbook.NewJob) *logbook.Job {
	t.Helper()

	if job.StartTime.IsZero() {
		job.StartTime = time.Now()
	}
	// A window after the start time never matches an existing row.
	id, err := store.CreateJob(context.Background(), job, job.StartTime.Add(time.Hour*24*365*100))
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	created, err := store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetJob: %v", err)
	}
	return created
}
