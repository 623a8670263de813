// Package logbook persists print jobs, their slicer parameters, and
// maintenance notes in SQLite.
//
// The store is the duplicate-suppression authority: CreateJob re-runs the
// filename/time-window check inside the same immediate transaction that
// inserts the job and its parameter rows, so a concurrent insert for the same
// filename either lands first and causes ErrDuplicate, or waits. Parameters
// are removed together with their job (explicitly and via ON DELETE CASCADE).
package logbook
