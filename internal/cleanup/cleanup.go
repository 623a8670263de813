package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

// Mode selects how recommendations are applied.
type Mode string

const (
	ModeDryRun      Mode = "dry-run"
	ModeInteractive Mode = "interactive"
	ModeAuto        Mode = "auto"
)

// Candidate is one scored member of a duplicate group.
type Candidate struct {
	Job    *logbook.Job
	Points int
	Score  float64
}

// Recommendation names the survivor of a group and the jobs to remove.
type Recommendation struct {
	Filename string
	Keep     Candidate
	Remove   []Candidate
}

// Size returns the number of jobs in the group.
func (r Recommendation) Size() int {
	return len(r.Remove) + 1
}

// Recommend ranks each group and picks exactly one survivor. It performs no
// I/O. Groups with fewer than two jobs are ignored. Results are ordered by
// group size, largest first, then filename.
func Recommend(groups []logbook.DuplicateGroup) []Recommendation {
	recs := make([]Recommendation, 0, len(groups))
	for _, group := range groups {
		if len(group.Jobs) < 2 {
			continue
		}
		jobs := append([]*logbook.Job(nil), group.Jobs...)
		sort.SliceStable(jobs, func(i, j int) bool { return better(jobs[i], jobs[j]) })

		rec := Recommendation{Filename: group.Filename, Keep: candidate(jobs[0])}
		for _, job := range jobs[1:] {
			rec.Remove = append(rec.Remove, candidate(job))
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Size() != recs[j].Size() {
			return recs[i].Size() > recs[j].Size()
		}
		return recs[i].Filename < recs[j].Filename
	})
	return recs
}

// TotalRemovals counts jobs recommended for removal.
func TotalRemovals(recs []Recommendation) int {
	total := 0
	for _, rec := range recs {
		total += len(rec.Remove)
	}
	return total
}

func candidate(job *logbook.Job) Candidate {
	return Candidate{Job: job, Points: Points(job), Score: Score(job)}
}

// Store is the persistence cleanup reads and deletes through.
type Store interface {
	DuplicateGroups(ctx context.Context) ([]logbook.DuplicateGroup, error)
	DeleteJob(ctx context.Context, id int64) error
}

// Confirm asks whether a group's removals should proceed.
type Confirm func(rec Recommendation) (bool, error)

// Report summarizes an Apply run.
type Report struct {
	Removed        int
	Failed         int
	SkippedGroups  int
	ResidualGroups int
}

// Cleaner analyzes and applies duplicate removals.
type Cleaner struct {
	store  Store
	logger *slog.Logger
}

// New returns a cleaner over store.
func New(store Store, logger *slog.Logger) *Cleaner {
	return &Cleaner{store: store, logger: logging.NewComponentLogger(logger, "cleanup")}
}

// Analyze loads duplicate groups and returns recommendations.
func (c *Cleaner) Analyze(ctx context.Context) ([]Recommendation, error) {
	groups, err := c.store.DuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}
	return Recommend(groups), nil
}

// Apply removes non-survivors according to mode. A failed deletion is logged
// and counted; the batch continues. After any removals the store is
// re-queried and remaining duplicate groups are reported. In interactive
// mode a confirm error stops the run and is returned with the partial report.
func (c *Cleaner) Apply(ctx context.Context, recs []Recommendation, mode Mode, confirm Confirm) (Report, error) {
	var report Report
	switch mode {
	case ModeDryRun:
		report.ResidualGroups = len(recs)
		return report, nil
	case ModeAuto:
	case ModeInteractive:
		if confirm == nil {
			return report, services.Wrap(services.ErrValidation, "cleanup", "apply", "interactive mode needs a confirmation prompt", nil)
		}
	default:
		return report, services.Wrap(services.ErrValidation, "cleanup", "apply", fmt.Sprintf("unknown mode %q", mode), nil)
	}

	for _, rec := range recs {
		if len(rec.Remove) == 0 {
			continue
		}
		if mode == ModeInteractive {
			ok, err := confirm(rec)
			if err != nil {
				return report, err
			}
			if !ok {
				report.SkippedGroups++
				continue
			}
		}
		for _, cand := range rec.Remove {
			id := cand.Job.ID
			logger := logging.WithContext(services.WithFilename(services.WithJobID(ctx, id), rec.Filename), c.logger)
			if err := c.store.DeleteJob(ctx, id); err != nil {
				report.Failed++
				logging.WarnWithContext(logger, "failed to remove duplicate print", "duplicate_remove_failed",
					logging.Error(err),
					logging.Int64("keep_id", rec.Keep.Job.ID),
					logging.String(logging.FieldImpact, "duplicate remains in the logbook"),
				)
				continue
			}
			report.Removed++
			logger.Info("removed duplicate print",
				logging.String(logging.FieldEventType, "duplicate_removed"),
				logging.Int64("keep_id", rec.Keep.Job.ID),
			)
		}
	}

	remaining, err := c.store.DuplicateGroups(ctx)
	if err != nil {
		return report, err
	}
	report.ResidualGroups = len(remaining)
	if report.ResidualGroups > 0 {
		c.logger.Warn("duplicate groups remain after cleanup",
			logging.String(logging.FieldEventType, "duplicates_residual"),
			logging.Int("groups", report.ResidualGroups),
			logging.Alert("residual_duplicates"),
			logging.String(logging.FieldErrorHint, "rerun cleanup or inspect the remaining groups"),
			logging.String(logging.FieldImpact, "logbook still holds duplicate prints"),
		)
	}
	return report, nil
}
