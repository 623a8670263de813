package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"rudder/internal/config"
	"rudder/internal/dedup"
	"rudder/internal/ingest"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/moonraker"
	"rudder/internal/preflight"
	"rudder/internal/printstate"
)

// LockFileName is created next to the database while a daemon runs.
const LockFileName = "rudderd.lock"

// Daemon runs the print monitor and HTTP API and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *logbook.Store
	client   *moonraker.Client
	pipeline *ingest.Pipeline
	monitor  *printMonitor
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	APIAddress   string
	Monitor      MonitorStatus
}

// New constructs a daemon over an open store.
func New(cfg *config.Config, store *logbook.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	client := moonraker.NewFromConfig(cfg)
	inflight := dedup.NewInFlight()
	pipeline := ingest.New(cfg, store, client, inflight, logger)
	detector := printstate.NewDetector(inflight.TryAcquire)

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		client:   client,
		pipeline: pipeline,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = newPrintMonitor(client, detector, pipeline, cfg.PollInterval(), logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// LockPath returns the daemon lock file for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, LockFileName)
}

// IsRunning reports whether some process holds the daemon lock.
func IsRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	return false, lock.Unlock()
}

// Start acquires the daemon lock, then launches the monitor and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another rudder daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.logPreflight(d.ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.api.stop()
		d.cancel()
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start monitor: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("rudder daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("moonraker_url", d.client.BaseURL()),
		logging.Duration("poll_interval", d.cfg.PollInterval()),
		logging.String("api_address", d.api.address()),
	)
	return nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "the monitor keeps running and retries every poll"),
		)
	}
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.monitor.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("rudder daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Monitor:      d.monitor.Status(),
	}
}
