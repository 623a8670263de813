// Package dedup implements duplicate suppression for print jobs.
//
// Gate answers "is there already a job with this filename whose start time
// falls inside the window?" and commits new jobs through the store's
// recheck-and-insert transaction. InFlight keeps two concurrent ingestions of
// the same filename from both passing the first check. The windows differ per
// caller: AutoWindow for live detection, UploadWindow for manual uploads and
// Unbounded for cleanup.
package dedup
