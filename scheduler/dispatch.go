package scheduler

import (
	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/internal/thread"
)

// Tick is the timer interrupt entry point (§4.6). If the scheduler is
// not yet ready it returns immediately; otherwise it broadcasts a
// schedule IPI to every other CPU and runs Schedule on the current one.
func (s *Scheduler) Tick(cpuID int, frame *arch.Registers) {
	if !s.ready.Load() {
		return
	}
	s.ipi.SendIPI(arch.IPIDestOther, 0, arch.VectorSchedule)
	s.Schedule(cpuID, frame)
}

// Yield requests a reschedule of the calling CPU's current thread: it
// zeroes the thread's own time slice and self-sends the schedule IPI
// (§4.6 "Yield").
func (s *Scheduler) Yield(cpuID int) {
	c := s.cpus[cpuID]
	if cur := c.current_(); cur != nil {
		cur.TimeSlice = 0
	}
	s.ipi.SendIPI(arch.IPIDestSelf, cpuID, arch.VectorSchedule)
}

// Schedule is the IPI handler and the path Tick calls on the local CPU
// (§4.6). It implements the full selection algorithm, then performs the
// context switch to whichever thread it selects.
func (s *Scheduler) Schedule(cpuID int, frame *arch.Registers) {
	c := s.cpus[cpuID]
	cur := c.current_()

	if cur != nil {
		procOf(cur).CreditActiveTick()
		if cur != c.idle {
			cur.TimeSlice--
		}
		if cur.TimeSlice > 0 {
			return
		}
	}

	if !c.runQueue.TryLock() {
		return
	}

	next := s.selectNext(c, cur, frame)

	c.runQueue.Unlock()

	c.setCurrent(next)

	s.switcher.RestoreExtendedState(next.ExtendedState)
	s.switcher.SetFSBase(next.FSBase)
	s.switcher.SetKernelStack(c.tss, next.KernelStackTop)

	s.maybeDeliverSignal(next)

	root := procOf(next).AddressSpace.PageMap().Root()
	s.switcher.LoadPageMap(root)
	s.switcher.Enter(&next.Registers, root)
}

// selectNext implements §4.6 steps 3-7. The caller must hold c's run
// queue lock and releases it themselves.
func (s *Scheduler) selectNext(c *cpu, cur *thread.Thread, frame *arch.Registers) *thread.Thread {
	q := c.runQueue

	if q.Len() == 0 || cur == nil {
		return c.idle
	}

	if cur.State() == thread.Dying {
		q.Remove(cur)
		return c.idle
	}

	var next *thread.Thread
	if cur != c.idle {
		cur.ResetTimeSlice()
		s.switcher.SaveExtendedState(cur.ExtendedState)
		if frame != nil {
			cur.Registers = *frame
		}
		next = cur.Next
	} else {
		next = q.Head()
	}

	if next == nil {
		return c.idle
	}

	if isUnschedulable(next) {
		start := next
		walk := next
		for {
			walk = walk.Next
			if walk == nil || walk == start {
				return c.idle
			}
			if !isUnschedulable(walk) {
				break
			}
		}
		next = walk
	}

	return next
}

// isUnschedulable reports whether t must be walked past rather than
// dispatched: Blocked threads per §4.6's ordering note, and Zombie
// threads mid-teardown by a concurrent EndProcess (§4.8).
func isUnschedulable(t *thread.Thread) bool {
	s := t.State()
	return s == thread.Blocked || s == thread.Zombie
}

// placeOnShortestQueue implements §4.1's load-balancing rule: pick the
// CPU with the fewest queued threads, short-circuiting on the first
// empty queue found.
func (s *Scheduler) placeOnShortestQueue(t *thread.Thread) {
	best := s.cpus[0]
	bestLen := best.runQueue.LenLocked()
	for _, c := range s.cpus[1:] {
		l := c.runQueue.LenLocked()
		if l < bestLen {
			best = c
			bestLen = l
		}
		if bestLen == 0 {
			break
		}
	}

	best.runQueue.Lock()
	best.runQueue.PushBack(t)
	best.runQueue.Unlock()
}
