package logbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rudder/internal/services"
)

// CreateMaintenance records a maintenance note timestamped now.
func (s *Store) CreateMaintenance(ctx context.Context, description, todoTasks string) (int64, error) {
	if strings.TrimSpace(description) == "" {
		return 0, services.Wrap(services.ErrValidation, "logbook", "create maintenance", "description is required", nil)
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO maintenance_event (description, timestamp, todo_tasks) VALUES (?, ?, ?)",
		description, formatTime(time.Now()), nullableString(todoTasks),
	)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "logbook", "create maintenance", "", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "logbook", "create maintenance", "last insert id", err)
	}
	return id, nil
}

// GetMaintenance fetches one maintenance event.
func (s *Store) GetMaintenance(ctx context.Context, id int64) (*MaintenanceEvent, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT id, description, timestamp, todo_tasks FROM maintenance_event WHERE id = ?", id)
	event, err := scanMaintenance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "logbook", "get maintenance", fmt.Sprintf("event %d", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "get maintenance", "", err)
	}
	return event, nil
}

// UpdateMaintenance applies the non-nil fields of update.
func (s *Store) UpdateMaintenance(ctx context.Context, id int64, update MaintenanceUpdate) error {
	current, err := s.GetMaintenance(ctx, id)
	if err != nil {
		return err
	}
	description := current.Description
	if update.Description != nil {
		if strings.TrimSpace(*update.Description) == "" {
			return services.Wrap(services.ErrValidation, "logbook", "update maintenance", "description cannot be empty", nil)
		}
		description = *update.Description
	}
	todo := current.TodoTasks
	if update.TodoTasks != nil {
		todo = *update.TodoTasks
	}
	if _, err := s.execWithRetry(ctx,
		"UPDATE maintenance_event SET description = ?, todo_tasks = ? WHERE id = ?",
		description, nullableString(todo), id,
	); err != nil {
		return services.Wrap(services.ErrPersistence, "logbook", "update maintenance", fmt.Sprintf("event %d", id), err)
	}
	return nil
}

// ListMaintenance returns maintenance events, newest first.
func (s *Store) ListMaintenance(ctx context.Context) ([]*MaintenanceEvent, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, description, timestamp, todo_tasks FROM maintenance_event ORDER BY timestamp DESC, id DESC")
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "list maintenance", "", err)
	}
	defer rows.Close()

	var events []*MaintenanceEvent
	for rows.Next() {
		event, err := scanMaintenance(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "logbook", "list maintenance", "scan", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "logbook", "list maintenance", "", err)
	}
	return events, nil
}

func scanMaintenance(scanner interface{ Scan(dest ...any) error }) (*MaintenanceEvent, error) {
	var (
		event MaintenanceEvent
		ts    string
		todo  sql.NullString
	)
	if err := scanner.Scan(&event.ID, &event.Description, &ts, &todo); err != nil {
		return nil, err
	}
	if parsed, err := parseTimeString(ts); err == nil {
		event.Timestamp = parsed
	}
	event.TodoTasks = todo.String
	return &event, nil
}
