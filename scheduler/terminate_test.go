package scheduler

import (
	"testing"
	"time"

	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/internal/thread"
)

func TestEndProcessMarksDeadAndRemovesFromTable(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)
	p.MainThread().TimeSlice = 0

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}
	if !p.IsDead() {
		t.Fatal("expected process marked dead")
	}
	if s.FindProcessByPID(p.ID) != nil {
		t.Fatal("expected process removed from the global table")
	}
}

func TestEndProcessIsNotReentrant(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("first EndProcess: %v", err)
	}
	if err := s.EndProcess(p); err != ErrAlreadyTerminating {
		t.Fatalf("expected ErrAlreadyTerminating on the second call, got %v", err)
	}
}

func TestEndProcessRecursivelyEndsChildren(t *testing.T) {
	s := newTestScheduler(t, 1)
	parent := s.CreateProcess(0)
	child := s.CloneProcess(parent)

	if err := s.EndProcess(parent); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}
	if !child.IsDead() {
		t.Fatal("expected child recursively terminated with its parent")
	}
}

func TestEndProcessSignalsSIGCHLDToParent(t *testing.T) {
	s := newTestScheduler(t, 1)
	parent := s.CreateProcess(0)
	child := s.CloneProcess(parent)
	// CloneProcess does not copy a thread; give the child one to end.
	s.CreateChildThread(child, 0x1000, 0x2000, kernelCS, kernelSS)

	if err := s.EndProcess(child); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}

	pending, _ := parent.MainThread().PendingAndMask()
	if !pending.Has(signal.SIGCHLD) {
		t.Fatal("expected SIGCHLD delivered to the parent's main thread")
	}

	found := false
	for _, c := range parent.Children() {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the child to remain linked until the reaper harvests it")
	}

	s.Reap()

	found = false
	for _, c := range parent.Children() {
		if c == child {
			found = true
		}
	}
	if found {
		t.Fatal("expected the reaper to unlink the child from the parent's child list")
	}
}

func TestEndProcessWithholdsSIGCHLDFromDyingParent(t *testing.T) {
	s := newTestScheduler(t, 1)
	parent := s.CreateProcess(0)
	child := s.CloneProcess(parent)
	s.CreateChildThread(child, 0x1000, 0x2000, kernelCS, kernelSS)

	if err := s.EndProcess(parent); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}

	pending, _ := parent.MainThread().PendingAndMask()
	if pending.Has(signal.SIGCHLD) {
		t.Fatal("expected no SIGCHLD queued for a parent that is itself dying")
	}
}

func TestEndProcessInterruptsBlockedThreads(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)
	main := p.MainThread()
	main.TimeSlice = 0

	blocker := &recordingBlocker{}
	main.SetBlocker(blocker)
	main.SetState(thread.Blocked)

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}
	if !blocker.interrupted {
		t.Fatal("expected the thread's current blocker to be interrupted")
	}
}

type recordingBlocker struct{ interrupted bool }

func (r *recordingBlocker) Interrupt() { r.interrupted = true }

func TestEndProcessWaitsForThreadLockBeforeInterrupting(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)
	main := p.MainThread()
	main.TimeSlice = 0

	blk := &recordingBlocker{}
	main.SetBlocker(blk)
	main.SetState(thread.Blocked)

	main.Lock()
	interruptedWhileLocked := make(chan bool, 1)
	go func() {
		_ = s.EndProcess(p)
		interruptedWhileLocked <- blk.interrupted
	}()

	// EndProcess must block acquiring main's spinlock (its quiescence
	// barrier) rather than interrupting the blocker while we hold it.
	select {
	case <-interruptedWhileLocked:
		t.Fatal("expected EndProcess to wait for the thread's lock before interrupting its blocker")
	case <-time.After(20 * time.Millisecond):
	}
	main.Unlock()

	select {
	case interrupted := <-interruptedWhileLocked:
		if !interrupted {
			t.Fatal("expected the blocker interrupted once the lock was released")
		}
	case <-time.After(time.Second):
		t.Fatal("EndProcess never completed after the lock was released")
	}
}

func TestEndProcessDrainsRunQueue(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)
	p.MainThread().TimeSlice = 0

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}

	s.cpus[0].runQueue.Lock()
	contained := s.cpus[0].runQueue.Contains(p.MainThread())
	s.cpus[0].runQueue.Unlock()
	if contained {
		t.Fatal("expected the terminated process's thread removed from every run queue")
	}
}

func TestEndProcessNotifiesBlockingWaiters(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)

	w := &fakeWaiterTerminate{}
	p.AddBlocking(w)

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}
	if !w.notified {
		t.Fatal("expected registered blockers notified on termination")
	}
}

type fakeWaiterTerminate struct{ notified bool }

func (f *fakeWaiterTerminate) Unblock(cause any) { f.notified = true }

func TestEndProcessQueuesForReap(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0)

	if err := s.EndProcess(p); err != nil {
		t.Fatalf("EndProcess: %v", err)
	}

	s.destroyedMu.Lock()
	found := false
	for _, d := range s.destroyed {
		if d == p {
			found = true
		}
	}
	s.destroyedMu.Unlock()
	if !found {
		t.Fatal("expected the terminated process appended to the destroyed list")
	}
}
