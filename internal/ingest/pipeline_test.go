package ingest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"rudder/internal/config"
	"rudder/internal/dedup"
	"rudder/internal/gcode"
	"rudder/internal/ingest"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/moonraker"
	"rudder/internal/services"
	"rudder/internal/testsupport"
)

type stubFetcher struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls int
}

func (s *stubFetcher) FetchFile(context.Context, string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.data, s.err
}

func newPipeline(t *testing.T, fetcher ingest.Fetcher, opts ...ingest.Option) (*ingest.Pipeline, *logbook.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return ingest.New(cfg, store, fetcher, dedup.NewInFlight(), logging.NewNop(), opts...), store, cfg
}

func claim(t *testing.T, p *ingest.Pipeline, name string) {
	t.Helper()
	if !p.InFlight().TryAcquire(name) {
		t.Fatalf("expected to claim %s", name)
	}
}

func TestIngestRecordsParsedPrint(t *testing.T) {
	fetcher := &stubFetcher{data: []byte(testsupport.SampleGCode)}
	p, store, _ := newPipeline(t, fetcher)
	ctx := context.Background()

	claim(t, p, "benchy.gcode")
	res, err := p.Ingest(ctx, "benchy.gcode", p.AutoWindowStart())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Outcome != ingest.OutcomeCreated || res.JobID == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if p.InFlight().Contains("benchy.gcode") {
		t.Fatal("expected in-flight marker to be released")
	}

	job, err := store.GetJob(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.SourcePath == "" || !strings.Contains(job.SourcePath, "auto_") {
		t.Fatalf("expected auto_ upload path, got %q", job.SourcePath)
	}
	if _, err := os.Stat(job.SourcePath); err != nil {
		t.Fatalf("expected saved file: %v", err)
	}
	if job.Status != logbook.StatusUnset {
		t.Fatalf("expected unset status, got %q", job.Status)
	}
	if len(job.Parameters) == 0 || job.AllSlicerParams["layer_height"] != "0.2" {
		t.Fatalf("expected parameters, got %+v / %v", job.Parameters, job.AllSlicerParams)
	}
}

func TestIngestRetrievalFailureRecordsMinimalOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := moonraker.New(srv.URL, moonraker.Timeouts{}, srv.Client())
	p, store, _ := newPipeline(t, client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		claim(t, p, "lost.gcode")
		res, err := p.Ingest(ctx, "lost.gcode", p.AutoWindowStart())
		if err != nil {
			t.Fatalf("Ingest attempt %d: %v", i, err)
		}
		want := ingest.OutcomeSkipped
		if i == 0 {
			want = ingest.OutcomeMinimal
		}
		if res.Outcome != want {
			t.Fatalf("attempt %d: expected %s, got %s", i, want, res.Outcome)
		}
	}

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(jobs))
	}
	if jobs[0].SourcePath != "" || len(jobs[0].Parameters) != 0 {
		t.Fatalf("expected minimal record, got %+v", jobs[0])
	}
}

func TestIngestSkipsWithoutFetchingWhenRecorded(t *testing.T) {
	fetcher := &stubFetcher{data: []byte(testsupport.SampleGCode)}
	p, store, _ := newPipeline(t, fetcher)
	testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "a.gcode"})

	claim(t, p, "a.gcode")
	res, err := p.Ingest(context.Background(), "a.gcode", p.AutoWindowStart())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Outcome != ingest.OutcomeSkipped {
		t.Fatalf("expected skip, got %s", res.Outcome)
	}
	if fetcher.calls != 0 {
		t.Fatalf("expected no fetch, got %d", fetcher.calls)
	}
	if p.InFlight().Len() != 0 {
		t.Fatal("expected marker released on skip")
	}
}

func TestIngestParseFailureKeepsPath(t *testing.T) {
	fetcher := &stubFetcher{data: []byte("G28\n")}
	failing := func(string) (gcode.Parameters, error) {
		return gcode.Parameters{}, services.Wrap(services.ErrParse, "gcode", "parse", "bad", errors.New("boom"))
	}
	p, store, _ := newPipeline(t, fetcher, ingest.WithParser(failing))

	claim(t, p, "odd.gcode")
	res, err := p.Ingest(context.Background(), "odd.gcode", p.AutoWindowStart())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	job, err := store.GetJob(context.Background(), res.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.SourcePath == "" || len(job.Parameters) != 0 || len(job.AllSlicerParams) != 0 {
		t.Fatalf("expected path without parameters, got %+v", job)
	}
}

// Ingestions that bypass the in-flight set still leave one record.
func TestConcurrentIngestLeavesOneRecord(t *testing.T) {
	fetcher := &stubFetcher{data: []byte(testsupport.SampleGCode)}
	p, store, _ := newPipeline(t, fetcher)
	ctx := context.Background()
	windowStart := p.AutoWindowStart()

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Ingest(ctx, "race.gcode", windowStart); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Jobs != 1 {
		t.Fatalf("expected one job, got %d", counts.Jobs)
	}
}

func TestUploadWindow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	p, store, _ := newPipeline(t, &stubFetcher{}, ingest.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	res, err := p.Upload(ctx, "b.gcode", strings.NewReader(testsupport.SampleGCode))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	job, err := store.GetJob(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != logbook.StatusPending || !strings.HasSuffix(job.SourcePath, "20260301_120000_b.gcode") {
		t.Fatalf("unexpected upload record %+v", job)
	}

	clock = t0.Add(5 * time.Minute)
	if _, err := p.Upload(ctx, "b.gcode", strings.NewReader(testsupport.SampleGCode)); !services.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate at T+5m, got %v", err)
	}

	clock = t0.Add(11 * time.Minute)
	if _, err := p.Upload(ctx, "b.gcode", strings.NewReader(testsupport.SampleGCode)); err != nil {
		t.Fatalf("expected upload at T+11m to succeed: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Jobs != 2 {
		t.Fatalf("expected two jobs, got %d", counts.Jobs)
	}
}

func TestUploadValidation(t *testing.T) {
	p, _, _ := newPipeline(t, &stubFetcher{})
	ctx := context.Background()

	if _, err := p.Upload(ctx, "", strings.NewReader("")); !services.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := p.Upload(ctx, "model.stl", strings.NewReader("")); !services.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for extension, got %v", err)
	}

	claim(t, p, "busy.gcode")
	if _, err := p.Upload(ctx, "busy.gcode", strings.NewReader("")); !services.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate for in-flight name, got %v", err)
	}
	if !p.InFlight().Contains("busy.gcode") {
		t.Fatal("a refused upload must not release another caller's marker")
	}
}

func TestComplete(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	p, store, _ := newPipeline(t, &stubFetcher{}, ingest.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	job := testsupport.MustCreateJob(t, store, logbook.NewJob{Filename: "done.gcode"})

	err := p.Complete(ctx, job.ID, ingest.CompletionRequest{
		QualityRating:       "4",
		FunctionalityRating: 4.5,
		AmbientTemperature:  "warm",
		AmbientHumidity:     float64(41.5),
		Notes:               "stringing on overhangs",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != logbook.StatusSuccess {
		t.Fatalf("expected default success, got %q", got.Status)
	}
	if got.QualityRating == nil || *got.QualityRating != 4 {
		t.Fatalf("expected quality 4, got %v", got.QualityRating)
	}
	if got.FunctionalityRating != nil {
		t.Fatalf("expected fractional rating to be absent, got %v", *got.FunctionalityRating)
	}
	if got.AmbientTemperature != nil {
		t.Fatalf("expected unparsable temperature to be absent, got %v", *got.AmbientTemperature)
	}
	if got.AmbientHumidity == nil || *got.AmbientHumidity != 41.5 {
		t.Fatalf("expected humidity 41.5, got %v", got.AmbientHumidity)
	}
	if got.EndTime == nil || !got.EndTime.Equal(now) {
		t.Fatalf("expected end time %v, got %v", now, got.EndTime)
	}

	if err := p.Complete(ctx, job.ID, ingest.CompletionRequest{Status: "exploded"}); !services.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := p.Complete(ctx, 9999, ingest.CompletionRequest{}); !services.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
