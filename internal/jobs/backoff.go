package jobs

import "time"

// Backoff is an ordered table of retry delays indexed by attempt number. The
// last entry is reused for every attempt beyond the table.
type Backoff []time.Duration

// DefaultBackoff is the production retry schedule.
var DefaultBackoff = Backoff{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// Delay returns the wait before the attempt following failed attempt n
// (1-indexed). Values below one are treated as the first attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if len(b) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(b)-1 {
		idx = len(b) - 1
	}
	return b[idx]
}

// RetryAfter is the earliest time a job that just failed attempt n may run again.
func (b Backoff) RetryAfter(now time.Time, attempt int) time.Time {
	return now.Add(b.Delay(attempt))
}
