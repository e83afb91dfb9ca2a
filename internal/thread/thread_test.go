package thread

import (
	"testing"

	"github.com/lemon-kernel/nucleus/internal/signal"
)

type fakeProcess struct {
	dying  bool
	ticks  int
}

func (f *fakeProcess) IsDying() bool       { return f.dying }
func (f *fakeProcess) CreditActiveTick()   { f.ticks++ }

func TestNewDefaults(t *testing.T) {
	proc := &fakeProcess{}
	th := New(1, proc)

	if th.Priority != DefaultUserPriority {
		t.Fatalf("expected priority %d, got %d", DefaultUserPriority, th.Priority)
	}
	if th.DefaultTimeSlice != DefaultTimeSlice || th.TimeSlice != DefaultTimeSlice {
		t.Fatalf("expected time slice %d, got default=%d current=%d", DefaultTimeSlice, th.DefaultTimeSlice, th.TimeSlice)
	}
	if th.State() != Running {
		t.Fatalf("expected initial state Running, got %v", th.State())
	}
	if th.Registers.RFLAGS != 0x202 {
		t.Fatalf("expected RFLAGS interrupt flag set, got %#x", th.Registers.RFLAGS)
	}
	if th.ExtendedState == nil {
		t.Fatal("expected a non-nil extended state block")
	}
}

func TestNewIdle(t *testing.T) {
	proc := &fakeProcess{}
	th := NewIdle(2, proc, 0xdead)

	if th.Priority != DefaultIdlePriority {
		t.Fatalf("expected idle priority %d, got %d", DefaultIdlePriority, th.Priority)
	}
	if th.DefaultTimeSlice != 0 || th.TimeSlice != 0 {
		t.Fatalf("expected zero time slice for idle thread, got default=%d current=%d", th.DefaultTimeSlice, th.TimeSlice)
	}
	if th.Registers.RIP != 0xdead {
		t.Fatalf("expected RIP set to entry, got %#x", th.Registers.RIP)
	}
}

func TestSetStateAndMarkBlockedRunning(t *testing.T) {
	th := New(1, &fakeProcess{})
	th.TimeSlice = 3

	th.MarkBlocked()
	if th.State() != Blocked {
		t.Fatalf("expected Blocked, got %v", th.State())
	}
	if th.TimeSlice != 0 {
		t.Fatalf("expected time slice zeroed on block, got %d", th.TimeSlice)
	}

	th.MarkRunning()
	if th.State() != Running {
		t.Fatalf("expected Running, got %v", th.State())
	}

	th.SetState(Dying)
	if th.State() != Dying {
		t.Fatalf("expected Dying, got %v", th.State())
	}
}

func TestBlockerAccessors(t *testing.T) {
	th := New(1, &fakeProcess{})
	if th.CurrentBlocker() != nil {
		t.Fatal("expected nil blocker initially")
	}

	b := &recordingInterrupter{}
	th.SetBlocker(b)
	if th.CurrentBlocker() != b {
		t.Fatal("expected SetBlocker to be observable via CurrentBlocker")
	}
}

type recordingInterrupter struct{ interrupted bool }

func (r *recordingInterrupter) Interrupt() { r.interrupted = true }

func TestSignalAndPendingAndMask(t *testing.T) {
	th := New(1, &fakeProcess{})
	th.Signal(signal.SIGTERM)
	th.Signal(signal.SIGINT)

	pending, mask := th.PendingAndMask()
	if !pending.Has(signal.SIGTERM) || !pending.Has(signal.SIGINT) {
		t.Fatalf("expected both signals pending, got %b", pending)
	}
	if mask != 0 {
		t.Fatalf("expected empty mask, got %b", mask)
	}
}

func TestResetTimeSlice(t *testing.T) {
	th := New(1, &fakeProcess{})
	th.TimeSlice = 0
	th.ResetTimeSlice()
	if th.TimeSlice != th.DefaultTimeSlice {
		t.Fatalf("expected time slice restored to default %d, got %d", th.DefaultTimeSlice, th.TimeSlice)
	}
}

func TestTryLock(t *testing.T) {
	th := New(1, &fakeProcess{})
	if !th.TryLock() {
		t.Fatal("expected first TryLock to succeed")
	}
	if th.TryLock() {
		t.Fatal("expected second TryLock to fail while held")
	}
	th.Unlock()
	if !th.TryLock() {
		t.Fatal("expected TryLock to succeed after Unlock")
	}
	th.Unlock()
}
