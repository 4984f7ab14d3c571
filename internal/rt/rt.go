// Package rt applies optional OS real-time tuning before the gateway loop
// starts. Both knobs are best-effort: failures (typically missing
// privileges) are logged as warnings and never abort startup.
package rt

// Options selects which tuning steps to run.
type Options struct {
	RealtimePriority bool
	LockMemory       bool
}
