// Package printstate detects print starts from polled controller status.
//
// The Detector is a small state machine over (state, filename) observations.
// It emits an Event only when the printer enters printing, or keeps printing
// under a different filename, and the in-flight claim for that filename
// succeeds. A non-printing observation forgets the filename so the next print
// of the same file is treated as new. Failed polls are never fed to the
// detector, which leaves its state untouched.
package printstate
