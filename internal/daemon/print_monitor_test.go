package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rudder/internal/dedup"
	"rudder/internal/ingest"
	"rudder/internal/logging"
	"rudder/internal/moonraker"
	"rudder/internal/printstate"
	"rudder/internal/services"
)

type scriptedSource struct {
	mu    sync.Mutex
	steps []scriptStep
}

type scriptStep struct {
	status moonraker.Status
	err    error
}

func (s *scriptedSource) Status(context.Context) (moonraker.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return moonraker.Status{State: "standby"}, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.status, step.err
}

type recordingIngester struct {
	mu       sync.Mutex
	inflight *dedup.InFlight
	names    []string
}

func (r *recordingIngester) Ingest(_ context.Context, filename string, _ time.Time) (ingest.Result, error) {
	defer r.inflight.Release(filename)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, filename)
	return ingest.Result{Outcome: ingest.OutcomeCreated, JobID: int64(len(r.names))}, nil
}

func (r *recordingIngester) AutoWindowStart() time.Time {
	return time.Now().Add(-3 * time.Minute)
}

func (r *recordingIngester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

func printing(name string) scriptStep {
	return scriptStep{status: moonraker.Status{State: moonraker.StatePrinting, Filename: name}}
}

func idleStep() scriptStep {
	return scriptStep{status: moonraker.Status{State: "standby"}}
}

func failure() scriptStep {
	return scriptStep{err: services.Wrap(services.ErrTimeout, "moonraker", "status", "deadline", context.DeadlineExceeded)}
}

func runScript(t *testing.T, steps ...scriptStep) (*printMonitor, *recordingIngester) {
	t.Helper()
	inflight := dedup.NewInFlight()
	ing := &recordingIngester{inflight: inflight}
	source := &scriptedSource{steps: steps}
	m := newPrintMonitor(source, printstate.NewDetector(inflight.TryAcquire), ing, time.Hour, logging.NewNop())
	m.ctx = context.Background()
	for range steps {
		m.poll()
		m.wg.Wait()
	}
	return m, ing
}

func TestMonitorRepeatedPollsIngestOnce(t *testing.T) {
	_, ing := runScript(t, printing("a.gcode"), printing("a.gcode"), printing("a.gcode"), printing("a.gcode"), printing("a.gcode"))
	if ing.count() != 1 {
		t.Fatalf("expected one ingestion, got %d", ing.count())
	}
}

func TestMonitorIdleBetweenPrintsIngestsTwice(t *testing.T) {
	m, ing := runScript(t, printing("a.gcode"), idleStep(), printing("a.gcode"))
	if ing.count() != 2 {
		t.Fatalf("expected two ingestions, got %d", ing.count())
	}
	status := m.Status()
	if status.Detected != 2 || status.Recorded != 2 {
		t.Fatalf("unexpected counters %+v", status)
	}
}

func TestMonitorPollFailureKeepsState(t *testing.T) {
	m, ing := runScript(t, printing("a.gcode"), failure(), failure(), printing("a.gcode"))
	if ing.count() != 1 {
		t.Fatalf("failures must not reset detection, got %d ingestions", ing.count())
	}
	status := m.Status()
	if status.ConsecutiveFailures != 0 || status.LastError != "" {
		t.Fatalf("expected recovery to clear failure state, got %+v", status)
	}
	if status.LastState != moonraker.StatePrinting || status.LastFilename != "a.gcode" {
		t.Fatalf("unexpected remembered state %+v", status)
	}
}

func TestMonitorCountsFailures(t *testing.T) {
	m, _ := runScript(t, failure(), failure(), failure())
	status := m.Status()
	if status.ConsecutiveFailures != 3 || status.LastError == "" {
		t.Fatalf("expected three failures recorded, got %+v", status)
	}
}

func TestMonitorStartStop(t *testing.T) {
	inflight := dedup.NewInFlight()
	ing := &recordingIngester{inflight: inflight}
	source := &scriptedSource{steps: []scriptStep{printing("loop.gcode")}}
	m := newPrintMonitor(source, printstate.NewDetector(inflight.TryAcquire), ing, 10*time.Millisecond, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for ing.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if ing.count() != 1 {
		t.Fatalf("expected one ingestion, got %d", ing.count())
	}
	if m.Status().Running {
		t.Fatal("expected monitor stopped")
	}
}

func TestMonitorIgnoresErrorsAfterCancel(t *testing.T) {
	inflight := dedup.NewInFlight()
	source := &scriptedSource{steps: []scriptStep{{err: errors.New("canceled")}}}
	m := newPrintMonitor(source, printstate.NewDetector(inflight.TryAcquire), &recordingIngester{inflight: inflight}, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.ctx = ctx
	m.poll()
	if m.Status().ConsecutiveFailures != 0 {
		t.Fatal("errors during shutdown should not count as poll failures")
	}
}
