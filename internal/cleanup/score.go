package cleanup

import (
	"math"
	"strings"
	"time"

	"rudder/internal/logbook"
)

const (
	pointsQuality = 10
	pointsSuccess = 5
	pointsPending = 1
	pointsSource  = 3

	recencyDivisor = 1e10
	// maxRecencyBonus keeps the bonus strictly below the smallest point gap.
	maxRecencyBonus = 1 - 1e-9
)

// Points returns the completeness points of a job.
func Points(job *logbook.Job) int {
	points := 0
	if job.QualityRating != nil {
		points += pointsQuality
	}
	switch job.Status {
	case logbook.StatusSuccess:
		points += pointsSuccess
	case logbook.StatusPending:
		points += pointsPending
	}
	if strings.TrimSpace(job.SourcePath) != "" {
		points += pointsSource
	}
	return points
}

// RecencyBonus maps a start time into [0, 1) so that later starts score
// higher without ever outweighing a point.
func RecencyBonus(start time.Time) float64 {
	if start.IsZero() {
		return 0
	}
	seconds := float64(start.Unix()) + float64(start.Nanosecond())/1e9
	return math.Min(math.Max(seconds/recencyDivisor, 0), maxRecencyBonus)
}

// Score is Points plus RecencyBonus. It is for display; ranking compares
// points, start time and id directly.
func Score(job *logbook.Job) float64 {
	return float64(Points(job)) + RecencyBonus(job.StartTime)
}

// better reports whether a outranks b. The order is total over distinct ids.
func better(a, b *logbook.Job) bool {
	pa, pb := Points(a), Points(b)
	if pa != pb {
		return pa > pb
	}
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.After(b.StartTime)
	}
	return a.ID > b.ID
}
