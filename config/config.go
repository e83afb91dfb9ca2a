// Package config holds boot-time scheduler parameters.
//
// It plays the role the teacher's per-service Config structs and
// internal/buildinfo play together: a small, explicit bag of values
// threaded through Initialize instead of package-level globals sprinkled
// through the scheduler.
package config

import "time"

// Version is set at build time via -ldflags, matching buildinfo.Version
// in the teacher.
var Version = "dev"

// Config bundles the parameters Initialize needs before it brings up the
// scheduler on the boot CPU.
type Config struct {
	// CPUCount is the number of CPU-local run queues to create. Must be >= 1.
	CPUCount int

	// DefaultUserTimeSlice is the tick count given to newly created user
	// threads (§4.2 default: 1-4).
	DefaultUserTimeSlice int

	// IdlePriority and UserPriority are the default scheduling priorities
	// assigned to idle and user threads respectively (§4.2).
	IdlePriority int
	UserPriority int

	// TickPeriod is the simulated timer interrupt period used by
	// hal/tickled's host Source and by cmd/nucleusctl.
	TickPeriod time.Duration

	// TerminationDrainInterval is the sleep between EndProcess retry-list
	// re-scans (§4.8 step 4; original: 50ms).
	TerminationDrainInterval time.Duration

	// ReaperInterval is the sleep between reaper sweeps (§4.9; original:
	// ~100ms).
	ReaperInterval time.Duration

	// ProcessTableSizeHint pre-sizes the global process list slice; it is
	// a hint, not a hard limit (original: 512).
	ProcessTableSizeHint int
}

// Default returns the parameters the original kernel used.
func Default() Config {
	return Config{
		CPUCount:                 1,
		DefaultUserTimeSlice:     3,
		IdlePriority:             1,
		UserPriority:             4,
		TickPeriod:               10 * time.Millisecond,
		TerminationDrainInterval: 50 * time.Millisecond,
		ReaperInterval:           100 * time.Millisecond,
		ProcessTableSizeHint:     512,
	}
}
