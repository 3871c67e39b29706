package executor

import "time"

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock — системные часы (UTC).
type SystemClock struct{}

// Now реализует Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc адаптирует функцию к Clock.
type ClockFunc func() time.Time

// Now реализует Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}
