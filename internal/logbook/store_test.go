package logbook_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"rudder/internal/logbook"
	"rudder/internal/services"
	"rudder/internal/testsupport"
)

func TestCreateJobPersistsParameters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	start := time.Now().Add(-time.Minute)
	id, err := store.CreateJob(ctx, logbook.NewJob{
		Filename:        "benchy.gcode",
		SourcePath:      "/tmp/auto_benchy.gcode",
		StartTime:       start,
		AllSlicerParams: map[string]string{"layer_height": "0.2", "perimeters": "3"},
		Parameters: []logbook.Parameter{
			{Name: "layer_height", Value: "0.2"},
			{Name: "perimeters", Value: "3"},
		},
	}, start.Add(-3*time.Minute))
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Filename != "benchy.gcode" || job.SourcePath != "/tmp/auto_benchy.gcode" {
		t.Fatalf("unexpected job: %#v", job)
	}
	if job.Status != logbook.StatusUnset {
		t.Fatalf("expected unset status, got %q", job.Status)
	}
	if !job.StartTime.Equal(start.UTC()) {
		t.Fatalf("start time round trip: got %s want %s", job.StartTime, start.UTC())
	}
	if len(job.Parameters) != 2 || job.Parameters[0].Name != "layer_height" {
		t.Fatalf("unexpected parameters: %#v", job.Parameters)
	}
	if job.AllSlicerParams["perimeters"] != "3" {
		t.Fatalf("unexpected slicer snapshot: %#v", job.AllSlicerParams)
	}
}

func TestCreateJobRejectsDuplicateInsideWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now()
	if _, err := store.CreateJob(ctx, logbook.NewJob{Filename: "a.gcode", StartTime: now}, now.Add(-3*time.Minute)); err != nil {
		t.Fatalf("first CreateJob failed: %v", err)
	}

	_, err := store.CreateJob(ctx, logbook.NewJob{Filename: "a.gcode", StartTime: now.Add(time.Second)}, now.Add(-3*time.Minute))
	if !services.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Outside the window the same filename is a new print.
	if _, err := store.CreateJob(ctx, logbook.NewJob{Filename: "a.gcode", StartTime: now.Add(5 * time.Minute)}, now.Add(time.Minute)); err != nil {
		t.Fatalf("CreateJob outside window failed: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Jobs != 2 {
		t.Fatalf("expected 2 jobs, got %d", counts.Jobs)
	}
}

func TestExistsSince(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "cube.gcode", StartTime: start})

	cases := []struct {
		name     string
		filename string
		since    time.Time
		want     bool
	}{
		{"unbounded", "cube.gcode", time.Time{}, true},
		{"same instant", "cube.gcode", start, true},
		{"before", "cube.gcode", start.Add(-time.Minute), true},
		{"after", "cube.gcode", start.Add(time.Nanosecond), false},
		{"other file", "other.gcode", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := store.ExistsSince(ctx, tc.filename, tc.since)
		if err != nil {
			t.Fatalf("%s: ExistsSince failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestConcurrentCreateJobLeavesOneRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateJob(ctx, logbook.NewJob{Filename: "race.gcode", StartTime: now}, now.Add(-3*time.Minute))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case services.Is(err, services.ErrDuplicate):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || conflicts != 7 {
		t.Fatalf("expected 1 created and 7 conflicts, got %d and %d", created, conflicts)
	}
}

func TestCreateJobRollsBackWhenParameterInsertFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	raw, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw handle: %v", err)
	}
	_, err = raw.Exec(`CREATE TRIGGER reject_param BEFORE INSERT ON print_parameters
        WHEN NEW.parameter_name = 'boom'
        BEGIN SELECT RAISE(ABORT, 'rejected parameter'); END`)
	raw.Close()
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	now := time.Now()
	_, err = store.CreateJob(ctx, logbook.NewJob{
		Filename:   "atomic.gcode",
		StartTime:  now,
		Parameters: []logbook.Parameter{{Name: "layer_height", Value: "0.2"}, {Name: "boom", Value: "1"}},
	}, now.Add(-3*time.Minute))
	if !services.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	exists, err := store.ExistsSince(ctx, "atomic.gcode", time.Time{})
	if err != nil {
		t.Fatalf("ExistsSince failed: %v", err)
	}
	if exists {
		t.Fatal("expected job row to be rolled back")
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Parameters != 0 {
		t.Fatalf("expected no parameter rows, got %d", counts.Parameters)
	}
}

func TestCompleteJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "done.gcode", Status: logbook.StatusPending})
	quality := 4
	temp := 21.5
	end := time.Now().Add(time.Hour)
	if err := store.CompleteJob(ctx, job.ID, logbook.Completion{
		Status:             logbook.StatusSuccess,
		QualityRating:      &quality,
		Label:              "calibration",
		AmbientTemperature: &temp,
		Notes:              "clean first layer",
		EndTime:            end,
	}); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != logbook.StatusSuccess || got.QualityRating == nil || *got.QualityRating != 4 {
		t.Fatalf("unexpected completion: %#v", got)
	}
	if got.FunctionalityRating != nil || got.AmbientHumidity != nil {
		t.Fatalf("expected absent fields to stay nil: %#v", got)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end.UTC()) {
		t.Fatalf("unexpected end time: %v", got.EndTime)
	}

	err = store.CompleteJob(ctx, 9999, logbook.Completion{Status: logbook.StatusSuccess})
	if !services.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateGroupsAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	first := testsupport.MustCreateJob(t, store, logbook.NewJob{
		Filename:   "dup.gcode",
		StartTime:  base,
		Parameters: []logbook.Parameter{{Name: "layer_height", Value: "0.2"}},
	})
	second := testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "dup.gcode", StartTime: base.Add(time.Minute)})
	testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "single.gcode", StartTime: base})

	groups, err := store.DuplicateGroups(ctx)
	if err != nil {
		t.Fatalf("DuplicateGroups failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Filename != "dup.gcode" || len(groups[0].Jobs) != 2 {
		t.Fatalf("unexpected groups: %#v", groups)
	}
	if groups[0].Jobs[0].ID != first.ID || groups[0].Jobs[1].ID != second.ID {
		t.Fatal("expected jobs ordered oldest first")
	}

	if err := store.DeleteJob(ctx, first.ID); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if _, err := store.GetJob(ctx, first.ID); !services.Is(err, services.ErrNotFound) {
		t.Fatalf("expected deleted job to be gone, got %v", err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Parameters != 0 || counts.Jobs != 2 {
		t.Fatalf("unexpected counts after delete: %+v", counts)
	}
	if err := store.DeleteJob(ctx, first.ID); !services.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListingOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now()
	old := testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "old.gcode", StartTime: now.Add(-2 * time.Hour)})
	recent := testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "recent.gcode", StartTime: now.Add(-10 * time.Minute)})

	all, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != recent.ID || all[1].ID != old.ID {
		t.Fatalf("expected newest first, got %#v", all)
	}
	if all[0].Parameters == nil {
		t.Fatal("expected parameters slice to be attached")
	}

	since, err := store.JobsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("JobsSince failed: %v", err)
	}
	if len(since) != 1 || since[0].ID != recent.ID {
		t.Fatalf("unexpected JobsSince result: %#v", since)
	}

	limited, err := store.RecentJobs(ctx, 1)
	if err != nil {
		t.Fatalf("RecentJobs failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != recent.ID {
		t.Fatalf("unexpected RecentJobs result: %#v", limited)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.CreateMaintenance(ctx, "  ", ""); !services.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty description, got %v", err)
	}

	id, err := store.CreateMaintenance(ctx, "replace nozzle", "order spare")
	if err != nil {
		t.Fatalf("CreateMaintenance failed: %v", err)
	}
	todo := "done"
	if err := store.UpdateMaintenance(ctx, id, logbook.MaintenanceUpdate{TodoTasks: &todo}); err != nil {
		t.Fatalf("UpdateMaintenance failed: %v", err)
	}
	events, err := store.ListMaintenance(ctx)
	if err != nil {
		t.Fatalf("ListMaintenance failed: %v", err)
	}
	if len(events) != 1 || events[0].Description != "replace nozzle" || events[0].TodoTasks != "done" {
		t.Fatalf("unexpected events: %#v", events)
	}
	if err := store.UpdateMaintenance(ctx, 999, logbook.MaintenanceUpdate{}); !services.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetClearsTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustCreateJob(t, store, logbook.NewJob{
		Filename:   "x.gcode",
		Parameters: []logbook.Parameter{{Name: "perimeters", Value: "2"}},
	})
	if _, err := store.CreateMaintenance(ctx, "belt tension", ""); err != nil {
		t.Fatalf("CreateMaintenance failed: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts != (logbook.Counts{}) {
		t.Fatalf("expected empty tables, got %+v", counts)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := logbook.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "persist.gcode"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	exists, err := reopened.ExistsSince(context.Background(), "persist.gcode", time.Time{})
	if err != nil || !exists {
		t.Fatalf("expected job after reopen, exists=%v err=%v", exists, err)
	}
}
