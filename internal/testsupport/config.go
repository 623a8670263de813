package testsupport

import (
	"path/filepath"
	"testing"

	"rudder/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Moonraker.URL = "http://127.0.0.1:1"
	cfgVal.Moonraker.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMoonrakerURL points the test config at a fake controller.
func WithMoonrakerURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Moonraker.URL = url
	}
}

// WithDedupWindows overrides the auto and upload windows, in seconds.
func WithDedupWindows(auto, upload int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dedup.AutoWindowSeconds = auto
		b.cfg.Dedup.UploadWindowSeconds = upload
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
