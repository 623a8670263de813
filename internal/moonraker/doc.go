// Package moonraker is a thin client for the Moonraker printer controller API.
//
// It exposes the three reads the logbook needs: the live print_stats state,
// the raw G-code file for a job, and a /printer/info reachability probe. Every
// call is bounded by its own timeout and failures are classified as
// services.ErrRetrieval or services.ErrTimeout; retries are left to the poll
// loop's next cycle.
package moonraker
