package logbook

import (
	"strings"
	"time"
)

// Status is the outcome recorded for a print job.
type Status string

const (
	StatusUnset     Status = ""
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus normalizes a user-supplied status and reports whether it is known.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, true
	case StatusSuccess:
		return StatusSuccess, true
	case StatusFailed:
		return StatusFailed, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusUnset:
		return StatusUnset, true
	}
	return StatusUnset, false
}

// Job is a persisted print job with its parameter rows.
type Job struct {
	ID                  int64             `json:"id"`
	Filename            string            `json:"filename"`
	SourcePath          string            `json:"gcode_path"`
	StartTime           time.Time         `json:"start_time"`
	EndTime             *time.Time        `json:"end_time"`
	Status              Status            `json:"status"`
	QualityRating       *int              `json:"quality_rating"`
	FunctionalityRating *int              `json:"functionality_rating"`
	Label               string            `json:"label"`
	AmbientTemperature  *float64          `json:"ambient_temperature"`
	AmbientHumidity     *float64          `json:"ambient_humidity"`
	Notes               string            `json:"notes"`
	AllSlicerParams     map[string]string `json:"all_slicer_params"`
	Parameters          []Parameter       `json:"parameters"`
}

// Parameter is one named slicer setting captured at ingestion.
type Parameter struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	IsChanged bool   `json:"is_changed"`
}

// NewJob describes a job to insert together with its parameters.
type NewJob struct {
	Filename        string
	SourcePath      string
	StartTime       time.Time
	Status          Status
	AllSlicerParams map[string]string
	Parameters      []Parameter
}

// Completion carries the fields written when a print is marked finished.
type Completion struct {
	Status              Status
	QualityRating       *int
	FunctionalityRating *int
	Label               string
	AmbientTemperature  *float64
	AmbientHumidity     *float64
	Notes               string
	EndTime             time.Time
}

// MaintenanceEvent is a free-form printer maintenance note.
type MaintenanceEvent struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	TodoTasks   string    `json:"todo_tasks"`
}

// MaintenanceUpdate changes only the non-nil fields.
type MaintenanceUpdate struct {
	Description *string
	TodoTasks   *string
}

// DuplicateGroup lists every job sharing a filename, oldest first.
type DuplicateGroup struct {
	Filename string
	Jobs     []*Job
}

// Counts reports row totals per table.
type Counts struct {
	Jobs        int
	Parameters  int
	Maintenance int
}
