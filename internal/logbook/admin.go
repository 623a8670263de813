package logbook

import (
	"context"
	"database/sql"
	"fmt"

	"rudder/internal/services"
)

// Counts reports how many rows each table holds.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	ctx = ensureContext(ctx)
	var counts Counts
	queries := []struct {
		table string
		dest  *int
	}{
		{"print_job", &counts.Jobs},
		{"print_parameters", &counts.Parameters},
		{"maintenance_event", &counts.Maintenance},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dest); err != nil {
			return Counts{}, services.Wrap(services.ErrPersistence, "logbook", "counts", q.table, err)
		}
	}
	return counts, nil
}

// Reset deletes every row from every data table in one transaction.
func (s *Store) Reset(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"print_parameters", "print_job", "maintenance_event"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "logbook", "reset", "", err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file so it can be copied.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return services.Wrap(services.ErrPersistence, "logbook", "checkpoint", "", err)
	}
	return nil
}
