package logbook

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// timestampLayout is fixed-width so stored values sort chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = "id, filename, gcode_path, start_time, end_time, status, quality_rating, functionality_rating, label, ambient_temperature, ambient_humidity, notes, all_slicer_params"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            int64
		filename      string
		gcodePath     sql.NullString
		startRaw      string
		endRaw        sql.NullString
		status        sql.NullString
		quality       sql.NullInt64
		functionality sql.NullInt64
		label         sql.NullString
		temperature   sql.NullFloat64
		humidity      sql.NullFloat64
		notes         sql.NullString
		slicerParams  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&filename,
		&gcodePath,
		&startRaw,
		&endRaw,
		&status,
		&quality,
		&functionality,
		&label,
		&temperature,
		&humidity,
		&notes,
		&slicerParams,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  id,
		Filename:            filename,
		SourcePath:          gcodePath.String,
		Status:              Status(status.String),
		QualityRating:       intPtr(quality),
		FunctionalityRating: intPtr(functionality),
		Label:               label.String,
		AmbientTemperature:  floatPtr(temperature),
		AmbientHumidity:     floatPtr(humidity),
		Notes:               notes.String,
	}
	if start, err := parseTimeString(startRaw); err == nil {
		job.StartTime = start
	}
	if endRaw.Valid {
		if end, err := parseTimeString(endRaw.String); err == nil {
			job.EndTime = &end
		}
	}
	if slicerParams.Valid && slicerParams.String != "" {
		params := map[string]string{}
		if err := json.Unmarshal([]byte(slicerParams.String), &params); err == nil {
			job.AllSlicerParams = params
		}
	}
	return job, nil
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableJSON(values map[string]string) (any, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// formatTime renders t for storage; the zero time renders as "" so that a
// ">= ?" comparison against it matches every row.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
