//go:build linux

package gateway

import "golang.org/x/sys/unix"

// MonotonicNow reads CLOCK_MONOTONIC in nanoseconds. The epoch is
// arbitrary (boot-relative); only ordering and distance carry meaning.
func MonotonicNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
