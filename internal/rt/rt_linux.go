//go:build linux

package rt

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// schedFifoMax is the highest SCHED_FIFO priority on Linux.
const schedFifoMax = 99

// Apply runs the selected tuning steps once. Requires CAP_SYS_NICE and
// CAP_IPC_LOCK (or root) to fully succeed.
func Apply(o Options, l *slog.Logger) {
	if o.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			l.Warn("mlockall_failed", "error", err)
		} else {
			l.Info("memory_locked")
		}
	}
	if o.RealtimePriority {
		attr := &unix.SchedAttr{
			Size:     unix.SizeofSchedAttr,
			Policy:   unix.SCHED_FIFO,
			Priority: schedFifoMax,
		}
		if err := unix.SchedSetAttr(0, attr, 0); err != nil {
			l.Warn("sched_fifo_failed", "error", err)
		} else {
			l.Info("sched_fifo_set", "priority", schedFifoMax)
		}
	}
}
