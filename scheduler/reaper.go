package scheduler

import (
	"context"

	"github.com/lemon-kernel/nucleus/klog"
)

// Reap drains the destroyed-process list, non-blockingly taking each
// process's LifecycleLock for writing before destroying its address
// space and dropping the last reference to its PCB (§4.9). It never
// blocks on a lock still held by a concurrent lookup; a process it
// cannot yet lock is put back for the next pass.
func (s *Scheduler) Reap() {
	s.destroyedMu.Lock()
	pending := s.destroyed
	s.destroyed = nil
	s.destroyedMu.Unlock()

	for _, p := range pending {
		if !p.LifecycleLock.TryLock() {
			s.destroyedMu.Lock()
			s.destroyed = append(s.destroyed, p)
			s.destroyedMu.Unlock()
			continue
		}
		if p.AddressSpace != nil {
			p.AddressSpace.Destroy()
		}
		if p.Parent != nil {
			p.Parent.RemoveChild(p)
		}
		p.LifecycleLock.Unlock()
		s.log.Debug("reaped process", klog.F("pid", p.ID))
	}
}

// RunReaper runs Reap on s.cfg.ReaperInterval until ctx is done, the
// background kernel thread of §4.9. Like Initialize's tick loop, the
// context is the testability concession over the original's infinite
// loop.
func (s *Scheduler) RunReaper(ctx context.Context) {
	interval := s.cfg.ReaperInterval
	if interval <= 0 {
		interval = 1
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Reap()
		s.timer.SleepMicros(interval.Microseconds())
	}
}
