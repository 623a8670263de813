package gcode

import (
	"strings"
)

type curatedParam struct {
	name    string
	sources []string
}

// curated lists the parameters stored as individual rows, each with the
// snapshot keys it is read from in priority order.
var curated = []curatedParam{
	{"layer_height", []string{"layer_height"}},
	{"first_layer_height", []string{"first_layer_height", "initial_layer_print_height"}},
	{"nozzle_temperature", []string{"temperature", "nozzle_temperature", "material_print_temperature"}},
	{"bed_temperature", []string{"bed_temperature", "hot_plate_temp", "material_bed_temperature"}},
	{"infill_density", []string{"fill_density", "sparse_infill_density", "infill_sparse_density"}},
	{"perimeters", []string{"perimeters", "wall_loops", "wall_line_count"}},
	{"print_speed", []string{"perimeter_speed", "outer_wall_speed", "speed_print"}},
	{"filament_type", []string{"filament_type", "material"}},
	{"nozzle_diameter", []string{"nozzle_diameter", "machine_nozzle_size"}},
	{"support_enabled", []string{"support_material", "enable_support", "support_enable"}},
	{"brim_width", []string{"brim_width"}},
	{"filament_used_g", []string{"filament_used_[g]", "total_filament_used_[g]"}},
	{"estimated_print_time", []string{"estimated_printing_time_(normal_mode)", "model_printing_time", "time"}},
	{"printer_model", []string{"printer_model", "machine_name", "target_machine.name"}},
	{"slicer", []string{"generated_by"}},
}

// Names returns the curated parameter names in storage order.
func Names() []string {
	names := make([]string, len(curated))
	for i, c := range curated {
		names[i] = c.name
	}
	return names
}

func resolve(all map[string]string) map[string]*string {
	named := make(map[string]*string, len(curated))
	for _, c := range curated {
		named[c.name] = nil
		for _, key := range c.sources {
			value, ok := all[key]
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			// Multi-extruder configs list one value per tool.
			if i := strings.IndexAny(value, ",;"); i > 0 && c.name != "slicer" {
				value = strings.TrimSpace(value[:i])
			}
			if value == "" {
				continue
			}
			v := value
			named[c.name] = &v
			break
		}
	}
	return named
}
