package analyzer

import "time"

// Timer represents a scheduled reconnect that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks for the connection manager
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the production implementation backed by time.AfterFunc
type SystemClock struct{}

// AfterFunc waits for d to elapse and then calls f in its own goroutine
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
