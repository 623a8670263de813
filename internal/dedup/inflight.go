package dedup

import "sync"

// InFlight is the process-local set of filenames currently being ingested.
// It narrows the race between concurrent ingestions; Gate.Commit remains the
// guarantee.
type InFlight struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewInFlight returns an empty set.
func NewInFlight() *InFlight {
	return &InFlight{names: make(map[string]struct{})}
}

// TryAcquire marks filename in flight and reports whether it was free.
func (f *InFlight) TryAcquire(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.names[filename]; busy {
		return false
	}
	f.names[filename] = struct{}{}
	return true
}

// Release clears the marker. Releasing an absent name is a no-op.
func (f *InFlight) Release(filename string) {
	f.mu.Lock()
	delete(f.names, filename)
	f.mu.Unlock()
}

// Contains reports whether filename is currently marked.
func (f *InFlight) Contains(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.names[filename]
	return ok
}

// Len returns the number of marked filenames.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}
