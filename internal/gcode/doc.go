// Package gcode extracts slicer settings from G-code comment blocks.
//
// Parse returns a curated set of named parameters, each either observed or
// nil, together with the full key/value snapshot stored as all_slicer_params.
package gcode
