package datareset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rudder/internal/config"
	"rudder/internal/fileutil"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

const (
	backupInfoName    = "backup_info.txt"
	backupUploadsName = "uploads"
)

// Store is the subset of the logbook the reset tool touches.
type Store interface {
	Counts(ctx context.Context) (logbook.Counts, error)
	Reset(ctx context.Context) error
	Checkpoint(ctx context.Context) error
}

// Inventory describes the data currently on disk.
type Inventory struct {
	DatabasePath   string
	DatabaseExists bool
	Counts         logbook.Counts
	UploadDir      string
	UploadFiles    int
	UploadBytes    int64
}

// Empty reports whether there is nothing to back up or reset.
func (inv Inventory) Empty() bool {
	return inv.Counts == (logbook.Counts{}) && inv.UploadFiles == 0
}

// Backup describes a completed backup.
type Backup struct {
	Dir            string
	DatabaseCopied bool
	UploadFiles    int
	UploadBytes    int64
}

// Manager performs backup, reset and restore of the logbook data.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New returns a manager for cfg's data and upload directories.
func New(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logging.NewComponentLogger(logger, "datareset"), now: time.Now}
}

// WithClock replaces the time source used for backup names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Inventory reports row counts and upload files. store may be nil when the
// database does not exist yet.
func (m *Manager) Inventory(ctx context.Context, store Store) (Inventory, error) {
	inv := Inventory{DatabasePath: m.cfg.DatabasePath(), UploadDir: m.cfg.Paths.UploadDir}
	if _, err := os.Stat(inv.DatabasePath); err == nil {
		inv.DatabaseExists = true
	}
	if store != nil {
		counts, err := store.Counts(ctx)
		if err != nil {
			return inv, err
		}
		inv.Counts = counts
	}
	files, size, err := listUploads(inv.UploadDir)
	if err != nil {
		return inv, services.Wrap(services.ErrPersistence, "datareset", "inventory", "list uploads", err)
	}
	inv.UploadFiles = len(files)
	inv.UploadBytes = size
	return inv, nil
}

// Backup copies the database and upload files into
// <backup_dir>/backup_<timestamp>/ alongside a backup_info.txt summary.
func (m *Manager) Backup(ctx context.Context, store Store) (Backup, error) {
	created := m.now()
	dir := filepath.Join(m.cfg.Paths.BackupDir, "backup_"+created.Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Backup{}, services.Wrap(services.ErrPersistence, "datareset", "backup", "create backup directory", err)
	}
	result := Backup{Dir: dir}

	dbPath := m.cfg.DatabasePath()
	if _, err := os.Stat(dbPath); err == nil {
		if store != nil {
			if err := store.Checkpoint(ctx); err != nil {
				return result, err
			}
		}
		if err := fileutil.CopyFileVerified(dbPath, filepath.Join(dir, config.DatabaseFileName)); err != nil {
			return result, services.Wrap(services.ErrPersistence, "datareset", "backup", "copy database", err)
		}
		result.DatabaseCopied = true
	}

	if info, err := os.Stat(m.cfg.Paths.UploadDir); err == nil && info.IsDir() {
		files, size, err := fileutil.CopyDir(m.cfg.Paths.UploadDir, filepath.Join(dir, backupUploadsName))
		if err != nil {
			return result, services.Wrap(services.ErrPersistence, "datareset", "backup", "copy uploads", err)
		}
		result.UploadFiles = files
		result.UploadBytes = size
	}

	var info strings.Builder
	info.WriteString("Printer Logbook Backup\n")
	fmt.Fprintf(&info, "Created: %s\n", created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&info, "Database: %s\n", dbPath)
	fmt.Fprintf(&info, "Uploads: %s\n", m.cfg.Paths.UploadDir)
	fmt.Fprintf(&info, "Upload files: %d (%s)\n", result.UploadFiles, humanize.Bytes(uint64(result.UploadBytes)))
	if err := os.WriteFile(filepath.Join(dir, backupInfoName), []byte(info.String()), 0o644); err != nil {
		return result, services.Wrap(services.ErrPersistence, "datareset", "backup", "write backup info", err)
	}

	m.logger.Info("backup created",
		logging.String(logging.FieldEventType, "backup_created"),
		logging.String("backup_dir", dir),
		logging.Bool("database", result.DatabaseCopied),
		logging.Int("upload_files", result.UploadFiles),
	)
	return result, nil
}

// Reset deletes every logbook row and every upload file. It returns the
// number of upload files removed.
func (m *Manager) Reset(ctx context.Context, store Store) (int, error) {
	if store != nil {
		if err := store.Reset(ctx); err != nil {
			return 0, err
		}
	}
	removed, err := clearUploads(m.cfg.Paths.UploadDir)
	if err != nil {
		return removed, services.Wrap(services.ErrPersistence, "datareset", "reset", "clear uploads", err)
	}
	m.logger.Info("logbook reset",
		logging.String(logging.FieldEventType, "logbook_reset"),
		logging.Int("upload_files_removed", removed),
	)
	return removed, nil
}

// Restore copies a backup back into place. The database must not be open
// anywhere while this runs.
func (m *Manager) Restore(backupDir string) error {
	info, err := os.Stat(backupDir)
	if err != nil || !info.IsDir() {
		return services.Wrap(services.ErrNotFound, "datareset", "restore", "backup directory not found: "+backupDir, err)
	}

	backupDB := filepath.Join(backupDir, config.DatabaseFileName)
	if _, err := os.Stat(backupDB); err == nil {
		dbPath := m.cfg.DatabasePath()
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return services.Wrap(services.ErrPersistence, "datareset", "restore", "create data directory", err)
		}
		for _, suffix := range []string{"-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return services.Wrap(services.ErrPersistence, "datareset", "restore", "remove "+suffix, err)
			}
		}
		if err := fileutil.CopyFileVerified(backupDB, dbPath); err != nil {
			return services.Wrap(services.ErrPersistence, "datareset", "restore", "copy database", err)
		}
	}

	backupUploads := filepath.Join(backupDir, backupUploadsName)
	if info, err := os.Stat(backupUploads); err == nil && info.IsDir() {
		if _, err := clearUploads(m.cfg.Paths.UploadDir); err != nil {
			return services.Wrap(services.ErrPersistence, "datareset", "restore", "clear uploads", err)
		}
		if _, _, err := fileutil.CopyDir(backupUploads, m.cfg.Paths.UploadDir); err != nil {
			return services.Wrap(services.ErrPersistence, "datareset", "restore", "copy uploads", err)
		}
	}

	m.logger.Info("backup restored",
		logging.String(logging.FieldEventType, "backup_restored"),
		logging.String("backup_dir", backupDir),
	)
	return nil
}

func listUploads(dir string) ([]string, int64, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var (
		names []string
		total int64
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, 0, err
		}
		names = append(names, entry.Name())
		total += info.Size()
	}
	return names, total, nil
}

func clearUploads(dir string) (int, error) {
	names, _, err := listUploads(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
