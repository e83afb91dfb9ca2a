package scheduler

import (
	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/internal/thread"
	"github.com/lemon-kernel/nucleus/klog"
)

// EndProcess implements §4.8's termination rendezvous. It is idempotent
// in the sense that calling it twice on the same process returns
// ErrAlreadyTerminating the second time rather than corrupting state.
//
// The original distinguishes a process ending itself (which switches
// the calling CPU to the kernel page map and never returns to the
// caller) from ending some other process. This implementation has no
// notion of "the CPU the calling goroutine happens to be running on";
// every thread of p, including one the caller might logically be
// executing as, is torn down the same way through the per-CPU drain
// loop below, and EndProcess always returns normally. See DESIGN.md.
//
// Every thread passes through Zombie before Dying, the Zombie transition
// followed by a lock/unlock of that thread's own spinlock, so no other
// CPU can still be inside that thread's critical section (signal
// delivery, dispatch) once Interrupt is called on its blocker.
func (s *Scheduler) EndProcess(p *process.Process) error {
	if !p.MarkDying() {
		return ErrAlreadyTerminating
	}

	for _, child := range p.Children() {
		if !child.IsDead() {
			_ = s.EndProcess(child)
		}
	}

	// §4.8 steps 3-4: move every thread through Zombie before Dying.
	// Acquiring and immediately releasing each thread's own spinlock
	// after the Zombie transition is a quiescence barrier: it blocks
	// until any CPU already inside that thread's critical section
	// (e.g. maybeDeliverSignal holding t.Lock()) has finished, so the
	// Interrupt call below can never race a concurrent access to the
	// same thread.
	for _, t := range p.Threads() {
		t.SetState(thread.Zombie)
	}
	for _, t := range p.Threads() {
		t.Lock()
		t.Unlock()
		t.SetState(thread.Dying)
		t.TimeSlice = 0
		if b := t.CurrentBlocker(); b != nil {
			b.Interrupt()
		}
	}

	s.drainRunQueues(p)

	p.CloseFDs()
	p.Handles.Close()
	p.MarkDead()
	s.removeProcess(p)
	p.NotifyBlocking()

	// §4.5/§4.8 step 9: SIGCHLD is withheld from a parent that is itself
	// dying, which is the ordinary case when EndProcess recurses into a
	// dying parent's children above. The child stays linked on the
	// parent's child list; the reaper drops it once the process is
	// actually destroyed, so a parent inspecting its children before
	// then still sees the one it has not yet harvested.
	if parent := p.Parent; parent != nil && !parent.IsDying() {
		parent.Signal(signal.SIGCHLD)
	}

	p.LifecycleLock.Lock()
	s.destroyedMu.Lock()
	s.destroyed = append(s.destroyed, p)
	s.destroyedMu.Unlock()
	p.LifecycleLock.Unlock()

	s.log.Info("process terminated", klog.F("pid", p.ID))
	return nil
}

// drainRunQueues removes every thread of p from every CPU's run queue,
// IPI-nudging any CPU currently executing one of them and retrying at
// s.cfg.TerminationDrainInterval until none remain (§4.8 steps 4-6).
func (s *Scheduler) drainRunQueues(p *process.Process) {
	belongsToP := func(t *thread.Thread) bool { return threadBelongsTo(t, p) }

	for {
		remaining := 0
		for _, c := range s.cpus {
			c.runQueue.Lock()
			c.runQueue.RemoveWhere(nil, belongsToP)
			c.runQueue.Unlock()

			if cur := c.current_(); cur != nil && belongsToP(cur) {
				remaining++
				s.ipi.SendIPI(arch.IPIDestTarget, c.id, arch.VectorSchedule)
			}
		}
		if remaining == 0 {
			return
		}
		s.timer.SleepMicros(s.cfg.TerminationDrainInterval.Microseconds())
	}
}

// threadBelongsTo reports whether t is one of p's threads, recovering
// the concrete process behind t's narrow ProcessRef the same way procOf
// does.
func threadBelongsTo(t *thread.Thread, p *process.Process) bool {
	owner, ok := t.Process.(*process.Process)
	return ok && owner == p
}
