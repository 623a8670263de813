// Package preflight provides readiness checks for the printer controller and
// the filesystem paths rudder writes to.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "rudder status" command prints the same results alongside a live
// ProbePrinter snapshot.
package preflight
