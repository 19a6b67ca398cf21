// Package timer provides blocking delays on top of a countdown timer.
package timer

import "time"

// CountDown is a one-shot countdown timer.
type CountDown interface {
	// Start (re)arms the countdown to expire after d.
	Start(d time.Duration)
	// Expired reports whether the countdown has run out.
	Expired() bool
}

// Sleep arms cd for d and busy-waits until it expires. It never yields and
// cannot be cancelled. Non-positive durations return immediately.
func Sleep(cd CountDown, d time.Duration) {
	if d <= 0 {
		return
	}
	cd.Start(d)
	for !cd.Expired() {
	}
}

// Monotonic is a CountDown on the monotonic clock of the runtime.
type Monotonic struct {
	deadline time.Time
}

// NewMonotonic returns an expired countdown.
func NewMonotonic() *Monotonic {
	return &Monotonic{deadline: time.Now()}
}

// Start implements CountDown.
func (m *Monotonic) Start(d time.Duration) {
	m.deadline = time.Now().Add(d)
}

// Expired implements CountDown.
func (m *Monotonic) Expired() bool {
	return !time.Now().Before(m.deadline)
}
