// Package clock provides the time sources shared by the feed services
package clock

import "time"

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// After returns a channel that fires once d has elapsed
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Frozen always reports the same instant. After fires immediately.
type Frozen struct {
	At time.Time
}

// After returns an already fired channel
func (f Frozen) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- f.At
	return ch
}

// Now returns the frozen instant
func (f Frozen) Now() time.Time {
	return f.At
}
