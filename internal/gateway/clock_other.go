//go:build !linux

package gateway

import "time"

var clockBase = time.Now()

// MonotonicNow returns nanoseconds since process start using Go's
// monotonic time reading.
func MonotonicNow() uint64 {
	return uint64(time.Since(clockBase))
}
