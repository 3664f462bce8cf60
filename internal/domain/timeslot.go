package domain

import "time"

// TimeSlot is one schedulable (date, time-bucket) unit with finite
// appointment capacity. The bucket is mutated only through the store's
// compare-and-swap commit, never read-then-write.
type TimeSlot struct {
	Date           time.Time `json:"date"`
	Time           string    `json:"time"`
	Capacity       int       `json:"capacity"`
	CommittedUnits int       `json:"committed_units"`
}

// Accepts reports whether the bucket can still absorb the given number of
// units. Used for availability display; the commit itself re-checks under
// the database's row lock.
func (s TimeSlot) Accepts(units int) bool {
	return s.CommittedUnits+units <= s.Capacity
}
