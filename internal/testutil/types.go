package testutil

import "time"

// ExecutionRecord holds the start and end times of one backend call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two execution windows intersect.
func (r *ExecutionRecord) Overlaps(o *ExecutionRecord) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}
