package ingest

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

// CompletionRequest is the caller-supplied completion form. Numeric fields
// accept numbers or numeric strings; anything else is stored as absent.
type CompletionRequest struct {
	Status              string `json:"status"`
	QualityRating       any    `json:"quality_rating"`
	FunctionalityRating any    `json:"functionality_rating"`
	Label               string `json:"label"`
	AmbientTemperature  any    `json:"ambient_temperature"`
	AmbientHumidity     any    `json:"ambient_humidity"`
	Notes               string `json:"notes"`
}

// Complete marks a job finished. Status defaults to success.
func (p *Pipeline) Complete(ctx context.Context, id int64, req CompletionRequest) error {
	status := logbook.StatusSuccess
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := logbook.ParseStatus(req.Status)
		if !ok {
			return services.Wrap(services.ErrValidation, "ingest", "complete", "unknown status "+strconv.Quote(req.Status), nil)
		}
		status = parsed
	}

	completion := logbook.Completion{
		Status:              status,
		QualityRating:       lenientInt(req.QualityRating),
		FunctionalityRating: lenientInt(req.FunctionalityRating),
		Label:               strings.TrimSpace(req.Label),
		AmbientTemperature:  lenientFloat(req.AmbientTemperature),
		AmbientHumidity:     lenientFloat(req.AmbientHumidity),
		Notes:               req.Notes,
		EndTime:             p.now(),
	}
	if err := p.store.CompleteJob(ctx, id, completion); err != nil {
		return err
	}

	logging.WithContext(services.WithJobID(ctx, id), p.logger).Info("print completed",
		logging.String(logging.FieldEventType, "print_completed"),
		logging.String("status", string(status)),
	)
	return nil
}

func lenientFloat(value any) *float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// lenientInt accepts whole numbers only; 4.0 and "4" become 4, 4.5 is absent.
func lenientInt(value any) *int {
	f := lenientFloat(value)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}
