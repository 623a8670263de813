package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.gcode")
	dst := filepath.Join(dir, "dst.gcode")

	content := []byte("G28\nG1 X10\n")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "printer_logbook.db")
	dst := filepath.Join(dir, "copy.db")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyDirSkipsSubdirectories(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "uploads")
	for name, body := range map[string]string{"a.gcode": "aa", "b.gcode": "bbb"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, size, err := CopyDir(src, dst)
	if err != nil {
		t.Fatalf("CopyDir: %v", err)
	}
	if files != 2 || size != 5 {
		t.Fatalf("expected 2 files / 5 bytes, got %d / %d", files, size)
	}
	if _, err := os.Stat(filepath.Join(dst, "nested")); !os.IsNotExist(err) {
		t.Fatalf("expected nested dir to be skipped, stat err=%v", err)
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	path, n, err := WriteAtomic(dir, "part.gcode", strings.NewReader("G28\n"))
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if n != 4 || path != filepath.Join(dir, "part.gcode") {
		t.Fatalf("unexpected result %q %d", path, n)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"a.gcode":            "a.gcode",
		"folder/part.gcode":  "folder_part.gcode",
		"/abs/x.gcode":       "abs_x.gcode",
		"..":                 "unnamed",
		"":                   "unnamed",
		".hidden.gcode":      "hidden.gcode",
		`win\style\p.gcode`: "win_style_p.gcode",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Fatalf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}
