// Package coarsetime is a clock refreshed every 50ms by a background
// goroutine. Reading it is far cheaper than time.Now, at the cost of
// precision; it is used for connection idle tracking.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const resolution = 50 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	store(time.Now())

	ticker := time.NewTicker(resolution)
	go func() {
		for t := range ticker.C {
			store(t)
		}
	}()
}

func store(t time.Time) {
	now.Store(&t)
}

// Now returns the current time, at most 50ms stale.
func Now() time.Time {
	return *now.Load()
}
