package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleGCode is a small PrusaSlicer-style file with a config block.
const SampleGCode = `; generated by PrusaSlicer 2.7.1+linux-x64 on 2026-01-10 at 10:00:00 UTC
;
G28 ; home
G1 Z0.2 F3000
M104 S215
; filament used [g] = 12.34
; estimated printing time (normal mode) = 1h 2m 3s

; prusaslicer_config = begin
; layer_height = 0.2
; first_layer_height = 0.25
; temperature = 215
; bed_temperature = 60
; fill_density = 15%
; perimeters = 3
; nozzle_diameter = 0.4
; filament_type = PLA
; support_material = 0
; brim_width = 0
; printer_model = MK4
; prusaslicer_config = end
`

// WriteFile writes contents to path, creating parent directories.
func WriteFile(t testing.TB, path, contents string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
