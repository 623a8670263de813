// Package ingest turns detected prints and manual uploads into logbook
// records.
//
// Every insertion path checks the dedup gate, does its slow work (file
// retrieval, saving, parsing) and then commits through the store's
// recheck-and-insert transaction, so a record written by a concurrent caller
// in between is never duplicated. A failed retrieval during live detection is
// not fatal: the print is recorded with its filename only. The in-flight
// marker held for a filename is always released when the call returns.
package ingest
