// Package oplock serializes commits for one map view.
package oplock

import "time"

// Lock is a single monotonic deadline. New sessions may start only once the
// clock has passed it. Lock is not safe for concurrent use.
type Lock struct {
	clock func() time.Time
	until time.Time
}

// New returns an open lock that reads time from clock.
func New(clock func() time.Time) *Lock {
	if clock == nil {
		clock = time.Now
	}
	return &Lock{clock: clock}
}

// IsLocked reports whether now is before the deadline.
func (l *Lock) IsLocked() bool {
	if l == nil {
		return false
	}
	return l.clock().Before(l.until)
}

// Hold extends the deadline to now+d. The deadline never moves backwards.
func (l *Lock) Hold(d time.Duration) {
	if l == nil || d <= 0 {
		return
	}
	until := l.clock().Add(d)
	if until.After(l.until) {
		l.until = until
	}
}

// Until returns the current deadline.
func (l *Lock) Until() time.Time {
	if l == nil {
		return time.Time{}
	}
	return l.until
}

// Remaining returns how long the lock stays held, or zero when open.
func (l *Lock) Remaining() time.Duration {
	if !l.IsLocked() {
		return 0
	}
	return l.until.Sub(l.clock())
}
