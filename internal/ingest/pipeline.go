package ingest

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"rudder/internal/config"
	"rudder/internal/dedup"
	"rudder/internal/fileutil"
	"rudder/internal/gcode"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

const timestampLayout = "20060102_150405"

// Fetcher retrieves instruction files from the printer controller.
type Fetcher interface {
	FetchFile(ctx context.Context, filename string) ([]byte, error)
}

// Store is the persistence the pipeline needs beyond the gate.
type Store interface {
	dedup.Store
	CompleteJob(ctx context.Context, id int64, completion logbook.Completion) error
}

// Outcome classifies how an ingestion ended.
type Outcome string

const (
	// OutcomeCreated is a full record with file and parameters.
	OutcomeCreated Outcome = "created"
	// OutcomeMinimal is a filename-only record written after retrieval failed.
	OutcomeMinimal Outcome = "minimal"
	// OutcomeSkipped means the gate matched and nothing was written.
	OutcomeSkipped Outcome = "skipped"
)

// Result describes one ingestion.
type Result struct {
	JobID      int64
	Outcome    Outcome
	SourcePath string
	Parameters int
}

// Pipeline ingests detected prints and manual uploads into the logbook.
type Pipeline struct {
	store        Store
	gate         *dedup.Gate
	inflight     *dedup.InFlight
	fetcher      Fetcher
	parse        func(path string) (gcode.Parameters, error)
	uploadDir    string
	autoWindow   time.Duration
	uploadWindow time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the time source for timestamps and windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithParser replaces the instruction-file parser.
func WithParser(parse func(path string) (gcode.Parameters, error)) Option {
	return func(p *Pipeline) {
		if parse != nil {
			p.parse = parse
		}
	}
}

// New builds a pipeline. inflight is shared with the detector's claim.
func New(cfg *config.Config, store Store, fetcher Fetcher, inflight *dedup.InFlight, logger *slog.Logger, opts ...Option) *Pipeline {
	if inflight == nil {
		inflight = dedup.NewInFlight()
	}
	p := &Pipeline{
		store:        store,
		inflight:     inflight,
		fetcher:      fetcher,
		parse:        gcode.Parse,
		uploadDir:    cfg.Paths.UploadDir,
		autoWindow:   cfg.AutoWindow(),
		uploadWindow: cfg.UploadWindow(),
		now:          time.Now,
		logger:       logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.gate = dedup.NewGate(store).WithClock(p.now)
	return p
}

// InFlight exposes the marker set so the detector can claim filenames.
func (p *Pipeline) InFlight() *dedup.InFlight {
	return p.inflight
}

// AutoWindowStart returns the start of the live-detection window.
func (p *Pipeline) AutoWindowStart() time.Time {
	return p.gate.WindowStart(p.autoWindow)
}

// Ingest records a detected print. The caller must already hold the
// in-flight marker for filename; it is released before Ingest returns.
func (p *Pipeline) Ingest(ctx context.Context, filename string, windowStart time.Time) (Result, error) {
	defer p.inflight.Release(filename)

	ctx = services.WithFilename(ctx, filename)
	logger := logging.WithContext(ctx, p.logger)

	exists, err := p.gate.Exists(ctx, filename, windowStart)
	if err != nil {
		return Result{}, err
	}
	if exists {
		logger.Info("print already recorded; skipping detection",
			logging.String(logging.FieldEventType, "print_duplicate_skipped"),
			logging.Time("window_start", windowStart),
		)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	started := p.now()
	data, err := p.fetcher.FetchFile(ctx, filename)
	if err != nil {
		logging.WarnWithContext(logger, "instruction file unavailable; recording minimal print", "gcode_retrieval_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "print recorded without parameters"),
		)
		return p.commitMinimal(ctx, logger, filename, started, windowStart)
	}

	path, _, err := fileutil.WriteAtomic(p.uploadDir, "auto_"+started.UTC().Format(timestampLayout)+"_"+fileutil.SafeName(filename), bytes.NewReader(data))
	if err != nil {
		logging.WarnWithContext(logger, "failed to save instruction file; recording minimal print", "gcode_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check upload_dir permissions and free space"),
			logging.String(logging.FieldImpact, "print recorded without parameters"),
		)
		return p.commitMinimal(ctx, logger, filename, started, windowStart)
	}

	job := p.buildJob(logger, filename, path, started, logbook.StatusUnset)
	id, err := p.gate.Commit(ctx, job, windowStart)
	if err != nil {
		removeQuietly(path)
		if services.Is(err, services.ErrDuplicate) {
			logger.Info("print recorded concurrently; skipping",
				logging.String(logging.FieldEventType, "print_duplicate_skipped"),
			)
			return Result{Outcome: OutcomeSkipped}, nil
		}
		return Result{}, err
	}

	logging.WithContext(services.WithJobID(ctx, id), p.logger).Info("print recorded",
		logging.String(logging.FieldEventType, "print_recorded"),
		logging.String("gcode_path", path),
		logging.Int("parameters", len(job.Parameters)),
	)
	return Result{JobID: id, Outcome: OutcomeCreated, SourcePath: path, Parameters: len(job.Parameters)}, nil
}

func (p *Pipeline) commitMinimal(ctx context.Context, logger *slog.Logger, filename string, started, windowStart time.Time) (Result, error) {
	id, err := p.gate.Commit(ctx, logbook.NewJob{Filename: filename, StartTime: started}, windowStart)
	if err != nil {
		if services.Is(err, services.ErrDuplicate) {
			logger.Info("print recorded concurrently; skipping minimal record",
				logging.String(logging.FieldEventType, "print_duplicate_skipped"),
			)
			return Result{Outcome: OutcomeSkipped}, nil
		}
		return Result{}, err
	}
	logging.WithContext(services.WithJobID(ctx, id), p.logger).Info("minimal print recorded",
		logging.String(logging.FieldEventType, "print_recorded_minimal"),
	)
	return Result{JobID: id, Outcome: OutcomeMinimal}, nil
}

// buildJob parses path; a parse failure leaves the job without parameters.
func (p *Pipeline) buildJob(logger *slog.Logger, filename, path string, started time.Time, status logbook.Status) logbook.NewJob {
	job := logbook.NewJob{
		Filename:   filename,
		SourcePath: path,
		StartTime:  started,
		Status:     status,
	}
	params, err := p.parse(path)
	if err != nil {
		logging.WarnWithContext(logger, "instruction file could not be parsed", "gcode_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "print recorded without parameters"),
		)
		return job
	}
	job.AllSlicerParams = params.All
	for _, field := range params.Observed() {
		job.Parameters = append(job.Parameters, logbook.Parameter{Name: field.Name, Value: field.Value})
	}
	return job
}

func removeQuietly(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
