//go:build !linux

package rt

import "log/slog"

// Apply is a no-op off linux; the tuning knobs only exist there.
func Apply(o Options, l *slog.Logger) {
	if o.RealtimePriority || o.LockMemory {
		l.Warn("rt_tuning_unsupported", "platform", "non-linux")
	}
}
