package logbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rudder/internal/services"
)

const existsQuery = "SELECT EXISTS(SELECT 1 FROM print_job WHERE filename = ? AND start_time >= ?)"

var errRecheckDuplicate = errors.New("job recorded inside window")

// ExistsSince reports whether a job with filename started at or after since.
// A zero since matches any start time.
func (s *Store) ExistsSince(ctx context.Context, filename string, since time.Time) (bool, error) {
	ctx = ensureContext(ctx)
	var exists int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, existsQuery, filename, formatTime(since)).Scan(&exists)
	})
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "logbook", "exists", filename, err)
	}
	return exists != 0, nil
}

// CreateJob inserts the job and its parameters in one transaction. The
// duplicate check is repeated inside that transaction; a job with the same
// filename starting at or after windowStart yields services.ErrDuplicate and
// nothing is written. Any other failure rolls back and yields
// services.ErrPersistence.
func (s *Store) CreateJob(ctx context.Context, job NewJob, windowStart time.Time) (int64, error) {
	if job.Filename == "" {
		return 0, services.Wrap(services.ErrValidation, "logbook", "create job", "filename is required", nil)
	}
	start := job.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	slicerParams, err := nullableJSON(job.AllSlicerParams)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "logbook", "create job", "encode slicer params", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, existsQuery, job.Filename, formatTime(windowStart)).Scan(&exists); err != nil {
			return fmt.Errorf("recheck duplicate: %w", err)
		}
		if exists != 0 {
			return errRecheckDuplicate
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO print_job (filename, gcode_path, start_time, status, all_slicer_params)
             VALUES (?, ?, ?, ?, ?)`,
			job.Filename,
			job.SourcePath,
			formatTime(start),
			nullableString(string(job.Status)),
			slicerParams,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		for _, param := range job.Parameters {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO print_parameters (print_job_id, parameter_name, parameter_value, is_changed)
                 VALUES (?, ?, ?, ?)`,
				id, param.Name, param.Value, boolToInt(param.IsChanged),
			); err != nil {
				return fmt.Errorf("insert parameter %s: %w", param.Name, err)
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, errRecheckDuplicate):
		return 0, services.Wrap(services.ErrDuplicate, "logbook", "create job", job.Filename+" already recorded in window", nil)
	default:
		return 0, services.Wrap(services.ErrPersistence, "logbook", "create job", job.Filename, err)
	}
}

// GetJob fetches a job with its parameters.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM print_job WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "logbook", "get job", fmt.Sprintf("job %d", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "get job", "", err)
	}
	if err := s.attachParameters(ctx, []*Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns every job, newest first, with parameters attached.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, true, "SELECT "+jobColumns+" FROM print_job ORDER BY start_time DESC, id DESC")
}

// RecentJobs returns the newest limit jobs without parameters.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryJobs(ctx, false, "SELECT "+jobColumns+" FROM print_job ORDER BY start_time DESC, id DESC LIMIT ?", limit)
}

// JobsSince returns jobs started at or after since, newest first.
func (s *Store) JobsSince(ctx context.Context, since time.Time) ([]*Job, error) {
	return s.queryJobs(ctx, false, "SELECT "+jobColumns+" FROM print_job WHERE start_time >= ? ORDER BY start_time DESC, id DESC", formatTime(since))
}

// DuplicateGroups returns every filename recorded more than once, each with
// its jobs ordered oldest first.
func (s *Store) DuplicateGroups(ctx context.Context) ([]DuplicateGroup, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT filename FROM print_job GROUP BY filename HAVING COUNT(*) > 1 ORDER BY filename")
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "duplicate groups", "", err)
	}
	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, services.Wrap(services.ErrPersistence, "logbook", "duplicate groups", "scan", err)
		}
		filenames = append(filenames, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, services.Wrap(services.ErrPersistence, "logbook", "duplicate groups", "", err)
	}
	rows.Close()

	groups := make([]DuplicateGroup, 0, len(filenames))
	for _, name := range filenames {
		jobs, err := s.queryJobs(ctx, false,
			"SELECT "+jobColumns+" FROM print_job WHERE filename = ? ORDER BY start_time ASC, id ASC", name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, DuplicateGroup{Filename: name, Jobs: jobs})
	}
	return groups, nil
}

// CompleteJob records the outcome of a print.
func (s *Store) CompleteJob(ctx context.Context, id int64, c Completion) error {
	end := c.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE print_job SET status = ?, quality_rating = ?, functionality_rating = ?, label = ?,
            ambient_temperature = ?, ambient_humidity = ?, notes = ?, end_time = ?
         WHERE id = ?`,
		nullableString(string(c.Status)),
		nullableInt(c.QualityRating),
		nullableInt(c.FunctionalityRating),
		nullableString(c.Label),
		nullableFloat(c.AmbientTemperature),
		nullableFloat(c.AmbientHumidity),
		nullableString(c.Notes),
		formatTime(end),
		id,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "logbook", "complete job", fmt.Sprintf("job %d", id), err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return services.Wrap(services.ErrNotFound, "logbook", "complete job", fmt.Sprintf("job %d", id), nil)
	}
	return nil
}

// DeleteJob removes a job, deleting its parameters first, in one transaction.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	var missing bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM print_parameters WHERE print_job_id = ?", id); err != nil {
			return fmt.Errorf("delete parameters: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM print_job WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		missing = affected == 0
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "logbook", "delete job", fmt.Sprintf("job %d", id), err)
	}
	if missing {
		return services.Wrap(services.ErrNotFound, "logbook", "delete job", fmt.Sprintf("job %d", id), nil)
	}
	return nil
}

func (s *Store) queryJobs(ctx context.Context, withParams bool, query string, args ...any) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "query jobs", "", err)
	}
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, services.Wrap(services.ErrPersistence, "logbook", "query jobs", "scan", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, services.Wrap(services.ErrPersistence, "logbook", "query jobs", "", err)
	}
	rows.Close()

	if withParams {
		if err := s.attachParameters(ctx, jobs); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (s *Store) attachParameters(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[int64]*Job, len(jobs))
	args := make([]any, 0, len(jobs))
	for _, job := range jobs {
		job.Parameters = []Parameter{}
		byID[job.ID] = job
		args = append(args, job.ID)
	}
	// SQLite caps bound variables; chunk large listings.
	const chunk = 500
	for start := 0; start < len(args); start += chunk {
		end := start + chunk
		if end > len(args) {
			end = len(args)
		}
		batch := args[start:end]
		rows, err := s.db.QueryContext(ctx,
			"SELECT print_job_id, parameter_name, parameter_value, is_changed FROM print_parameters WHERE print_job_id IN ("+
				makePlaceholders(len(batch))+") ORDER BY id", batch...)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "logbook", "load parameters", "", err)
		}
		for rows.Next() {
			var (
				jobID   int64
				param   Parameter
				changed int
			)
			if err := rows.Scan(&jobID, &param.Name, &param.Value, &changed); err != nil {
				rows.Close()
				return services.Wrap(services.ErrPersistence, "logbook", "load parameters", "scan", err)
			}
			param.IsChanged = changed != 0
			if job, ok := byID[jobID]; ok {
				job.Parameters = append(job.Parameters, param)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return services.Wrap(services.ErrPersistence, "logbook", "load parameters", "", err)
		}
	}
	return nil
}
