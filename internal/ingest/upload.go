package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"rudder/internal/fileutil"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

// Upload records a manually submitted instruction file with status pending.
// A filename already recorded inside the upload window, or one that is
// currently being ingested, yields services.ErrDuplicate.
func (p *Pipeline) Upload(ctx context.Context, name string, body io.Reader) (Result, error) {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "upload", "no file selected", nil)
	}
	if !strings.HasSuffix(name, ".gcode") {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "upload", "file must be a GCode file", nil)
	}

	if !p.inflight.TryAcquire(name) {
		return Result{}, services.Wrap(services.ErrDuplicate, "ingest", "upload", fmt.Sprintf("%q is already being recorded", name), nil)
	}
	defer p.inflight.Release(name)

	ctx = services.WithFilename(ctx, name)
	logger := logging.WithContext(ctx, p.logger)

	windowStart := p.gate.WindowStart(p.uploadWindow)
	exists, err := p.gate.Exists(ctx, name, windowStart)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, services.Wrap(services.ErrDuplicate, "ingest", "upload", fmt.Sprintf("a print with filename %q was already added recently", name), nil)
	}

	started := p.now()
	path, size, err := fileutil.WriteAtomic(p.uploadDir, started.UTC().Format(timestampLayout)+"_"+name, body)
	if err != nil {
		return Result{}, services.WithHint(
			services.Wrap(services.ErrPersistence, "ingest", "upload", "save file", err),
			"check upload_dir permissions and free space",
		)
	}

	job := p.buildJob(logger, name, path, started, logbook.StatusPending)
	id, err := p.gate.Commit(ctx, job, windowStart)
	if err != nil {
		removeQuietly(path)
		return Result{}, err
	}

	logging.WithContext(services.WithJobID(ctx, id), p.logger).Info("manual print added",
		logging.String(logging.FieldEventType, "print_uploaded"),
		logging.String("gcode_path", path),
		logging.Int64("bytes", size),
		logging.Int("parameters", len(job.Parameters)),
	)
	return Result{JobID: id, Outcome: OutcomeCreated, SourcePath: path, Parameters: len(job.Parameters)}, nil
}
