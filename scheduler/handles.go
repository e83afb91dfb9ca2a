package scheduler

import (
	"github.com/lemon-kernel/nucleus/internal/handle"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/internal/thread"
)

// RegisterHandle assigns object the next sequential handle id in proc's
// table and returns it (§4.3).
func (s *Scheduler) RegisterHandle(proc *process.Process, object handle.Object) handle.ID {
	return proc.Handles.Register(object)
}

// FindHandle resolves id in proc's table, distinguishing out-of-range
// from vacated per §4.3/§7.
func (s *Scheduler) FindHandle(proc *process.Process, id handle.ID) (handle.Object, error) {
	return proc.Handles.Find(id)
}

// DestroyHandle vacates id's slot in proc's table without compacting
// it.
func (s *Scheduler) DestroyHandle(proc *process.Process, id handle.ID) error {
	return proc.Handles.Destroy(id)
}

// PendingSignals reports t's pending and mask bitsets, for system calls
// that need to inspect (not deliver) signal state.
func (s *Scheduler) PendingSignals(t *thread.Thread) (pending, mask signal.Set) {
	return t.PendingAndMask()
}
