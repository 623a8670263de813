package logbook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"rudder/internal/logbook"
	"rudder/internal/services"
)

func TestCreateJobRollsBackOnParameterFailure_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := logbook.NewWithDB(db, "mock.db")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("mock.gcode", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(0))
	mock.ExpectExec("INSERT INTO print_job").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO print_parameters").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	now := time.Now()
	_, err = store.CreateJob(context.Background(), logbook.NewJob{
		Filename:   "mock.gcode",
		StartTime:  now,
		Parameters: []logbook.Parameter{{Name: "layer_height", Value: "0.2"}},
	}, now.Add(-3*time.Minute))
	if !services.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCreateJobRecheckStopsBeforeInsert_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	store := logbook.NewWithDB(db, "mock.db")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	now := time.Now()
	_, err = store.CreateJob(context.Background(), logbook.NewJob{Filename: "mock.gcode", StartTime: now}, now.Add(-time.Minute))
	if !services.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
