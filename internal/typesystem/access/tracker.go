package access

import "sync/atomic"

// Tracker is the global modification counter. Every published rebuild increments it;
// cached resolutions compare the stamp they were computed at with Count.
type Tracker struct {
	count atomic.Uint64
}

// NewTracker creates a counter starting at zero
func NewTracker() *Tracker {
	return &Tracker{}
}

// Count returns the current stamp
func (t *Tracker) Count() uint64 {
	return t.count.Load()
}

// Inc advances the stamp and returns the new value
func (t *Tracker) Inc() uint64 {
	return t.count.Add(1)
}

var processTracker = NewTracker()

// ProcessTracker returns the counter shared by every workspace service of the process
func ProcessTracker() *Tracker {
	return processTracker
}
