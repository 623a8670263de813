package gcode_test

import (
	"path/filepath"
	"strings"
	"testing"

	"rudder/internal/gcode"
	"rudder/internal/services"
	"rudder/internal/testsupport"
)

func TestParsePrusaSlicerConfig(t *testing.T) {
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "benchy.gcode"), testsupport.SampleGCode)

	params, err := gcode.Parse(path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	want := map[string]string{
		"layer_height":         "0.2",
		"first_layer_height":   "0.25",
		"nozzle_temperature":   "215",
		"bed_temperature":      "60",
		"infill_density":       "15%",
		"perimeters":           "3",
		"nozzle_diameter":      "0.4",
		"filament_type":        "PLA",
		"support_enabled":      "0",
		"brim_width":           "0",
		"filament_used_g":      "12.34",
		"estimated_print_time": "1h 2m 3s",
		"printer_model":        "MK4",
		"slicer":               "PrusaSlicer",
	}
	for name, value := range want {
		got, ok := params.Get(name)
		if !ok || got != value {
			t.Fatalf("%s: got %q (observed=%v) want %q", name, got, ok, value)
		}
	}
	if _, ok := params.Get("print_speed"); ok {
		t.Fatal("expected print_speed to be absent")
	}
	if v, ok := params.Named["print_speed"]; !ok || v != nil {
		t.Fatal("expected print_speed key present with nil value")
	}
	if params.All["fill_density"] != "15%" {
		t.Fatalf("expected raw snapshot to keep fill_density, got %q", params.All["fill_density"])
	}
	if len(params.Observed()) != len(want) {
		t.Fatalf("expected %d observed fields, got %d", len(want), len(params.Observed()))
	}
}

func TestParseCuraHeader(t *testing.T) {
	src := `;FLAVOR:Marlin
;TIME:6666
;Filament used: 1.2345m
;Layer height: 0.12
;Generated with Cura_SteamEngine 5.6.0
M140 S60
;TYPE:WALL-OUTER
;LAYER:0
`
	params, err := gcode.ParseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseReader returned error: %v", err)
	}
	if v, _ := params.Get("layer_height"); v != "0.12" {
		t.Fatalf("layer_height = %q", v)
	}
	if v, _ := params.Get("estimated_print_time"); v != "6666" {
		t.Fatalf("estimated_print_time = %q", v)
	}
	if v, _ := params.Get("slicer"); v != "Cura_SteamEngine" {
		t.Fatalf("slicer = %q", v)
	}
	if _, ok := params.All["type"]; ok {
		t.Fatal("expected body comments after the header to be ignored")
	}
}

func TestParseFirstValueWins(t *testing.T) {
	src := "; layer_height = 0.2\n; layer_height = 0.3\n; nozzle_temperature = 220,230\n"
	params, err := gcode.ParseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseReader returned error: %v", err)
	}
	if v, _ := params.Get("layer_height"); v != "0.2" {
		t.Fatalf("layer_height = %q", v)
	}
	if v, _ := params.Get("nozzle_temperature"); v != "220" {
		t.Fatalf("nozzle_temperature = %q", v)
	}
	if params.All["nozzle_temperature"] != "220,230" {
		t.Fatalf("snapshot should keep raw value, got %q", params.All["nozzle_temperature"])
	}
}

func TestParseMissingFile(t *testing.T) {
	params, err := gcode.Parse(filepath.Join(t.TempDir(), "missing.gcode"))
	if !services.Is(err, services.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if len(params.Observed()) != 0 || params.All == nil {
		t.Fatalf("expected empty parameters on failure, got %#v", params)
	}
}

func TestNamesStable(t *testing.T) {
	names := gcode.Names()
	if len(names) == 0 || names[0] != "layer_height" || names[len(names)-1] != "slicer" {
		t.Fatalf("unexpected names: %v", names)
	}
}
