package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DatabaseFileName is the SQLite file stored under Paths.DataDir.
const DatabaseFileName = "printer_logbook.db"

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	UploadDir string `toml:"upload_dir"`
	LogDir    string `toml:"log_dir"`
	BackupDir string `toml:"backup_dir"`
	APIBind   string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on every API request.
	APIToken  string `toml:"api_token"`
}

// Moonraker contains connection settings for the printer controller.
type Moonraker struct {
	URL           string `toml:"url"`
	PollInterval  int    `toml:"poll_interval"`
	StatusTimeout int    `toml:"status_timeout"`
	FileTimeout   int    `toml:"file_timeout"`
	InfoTimeout   int    `toml:"info_timeout"`
}

// Dedup contains the duplicate-suppression windows, in seconds.
type Dedup struct {
	AutoWindowSeconds   int `toml:"auto_window_seconds"`
	UploadWindowSeconds int `toml:"upload_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Rudder.
//
// Configuration sections by subsystem:
//   - Paths: database, uploads, logs, backups and API bind address
//   - Moonraker: printer controller URL, poll interval and request timeouts
//   - Dedup: duplicate windows for automatic detection and manual uploads
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Moonraker Moonraker `toml:"moonraker"`
	Dedup     Dedup     `toml:"dedup"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rudder/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rudder.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// BackupDir is only created when a backup is written.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, DatabaseFileName)
}

// PollInterval returns the controller poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Moonraker.PollInterval) * time.Second
}

// AutoWindow returns the duplicate window applied to automatic detections.
func (c *Config) AutoWindow() time.Duration {
	return time.Duration(c.Dedup.AutoWindowSeconds) * time.Second
}

// UploadWindow returns the duplicate window applied to manual uploads.
func (c *Config) UploadWindow() time.Duration {
	return time.Duration(c.Dedup.UploadWindowSeconds) * time.Second
}

// ApplyOverrides replaces the controller URL and poll interval with values
// supplied on the command line. Empty or non-positive values are ignored.
func (c *Config) ApplyOverrides(moonrakerURL string, pollInterval int) error {
	if strings.TrimSpace(moonrakerURL) != "" {
		c.Moonraker.URL = strings.TrimRight(strings.TrimSpace(moonrakerURL), "/")
	}
	if pollInterval > 0 {
		c.Moonraker.PollInterval = pollInterval
	}
	return c.Validate()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
