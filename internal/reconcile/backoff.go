package reconcile

import "time"

// backoff implements capped exponential delay between reconnection
// attempts. Reset after any successful connect.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &backoff{initial: initial, max: max}
}

// next returns the delay to sleep before the next attempt, doubling up
// to the cap.
func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
		return b.current
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// reset returns the schedule to the initial interval.
func (b *backoff) reset() {
	b.current = 0
}
