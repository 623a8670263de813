package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rudder/internal/config"
	"rudder/internal/logbook"
	"rudder/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("MOONRAKER_URL", "")
	t.Setenv("POLL_INTERVAL", "")
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	flags := []string{}
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nupload_dir = %q\nlog_dir = %q\nbackup_dir = %q\napi_bind = %q\n\n"+
			"[moonraker]\nurl = %q\npoll_interval = 1\nstatus_timeout = 1\nfile_timeout = 1\ninfo_timeout = 1\n\n"+
			"[logging]\nlevel = \"error\"\n",
		cfg.Paths.DataDir,
		cfg.Paths.UploadDir,
		cfg.Paths.LogDir,
		cfg.Paths.BackupDir,
		cfg.Paths.APIBind,
		cfg.Moonraker.URL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seedJobs inserts jobs through a store that is closed before returning so
// the CLI under test owns the database.
func seedJobs(t *testing.T, cfg *config.Config, jobs ...logbook.NewJob) []int64 {
	t.Helper()
	store, err := logbook.Open(cfg)
	if err != nil {
		t.Fatalf("logbook.Open: %v", err)
	}
	defer store.Close()

	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		created := testsupport.MustCreateJob(t, store, job)
		ids = append(ids, created.ID)
	}
	return ids
}

func writeGCode(t *testing.T, dir, name string) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(dir, name), testsupport.SampleGCode)
}

func hoursAgo(h int) time.Time {
	return time.Now().Add(-time.Duration(h) * time.Hour)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
