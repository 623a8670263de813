package printstate

import (
	"sync"

	"rudder/internal/moonraker"
)

// Event announces that a new print started.
type Event struct {
	Filename string
}

// Detector turns a stream of controller observations into new-print events.
// It remembers the previous state and filename; repeated polls of one
// ongoing print never emit twice.
type Detector struct {
	mu           sync.Mutex
	claim        func(filename string) bool
	lastState    string
	lastFilename string
}

// NewDetector returns a detector. claim is consulted only for genuine
// transitions and must mark filename in flight, returning false when it is
// already held. A nil claim always succeeds.
func NewDetector(claim func(filename string) bool) *Detector {
	if claim == nil {
		claim = func(string) bool { return true }
	}
	return &Detector{claim: claim}
}

// Observe feeds one successful poll into the detector.
func (d *Detector) Observe(status moonraker.Status) (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !status.Printing() {
		d.lastState = status.State
		d.lastFilename = ""
		return Event{}, false
	}
	if status.Filename == "" {
		d.lastState = moonraker.StatePrinting
		return Event{}, false
	}

	fresh := d.lastState != moonraker.StatePrinting || d.lastFilename != status.Filename
	emit := fresh && d.claim(status.Filename)

	d.lastState = moonraker.StatePrinting
	d.lastFilename = status.Filename
	if !emit {
		return Event{}, false
	}
	return Event{Filename: status.Filename}, true
}

// Snapshot returns the remembered state and filename.
func (d *Detector) Snapshot() (state, filename string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastState, d.lastFilename
}
