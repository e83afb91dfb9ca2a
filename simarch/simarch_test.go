package simarch

import (
	"testing"
	"time"

	"github.com/lemon-kernel/nucleus/arch"
)

func TestSwitcherRecordsEnter(t *testing.T) {
	s := New()
	regs := &arch.Registers{RIP: 0x1000}
	s.Enter(regs, arch.PageMapRoot(0x2000))

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(entries))
	}
	if entries[0].Regs.RIP != 0x1000 || entries[0].Root != 0x2000 {
		t.Fatalf("expected the recorded entry to match what was passed, got %+v", entries[0])
	}
}

func TestSwitcherSetFSBaseAndKernelStack(t *testing.T) {
	s := New()
	s.SetFSBase(0xABCD)
	if s.FSBase() != 0xABCD {
		t.Fatalf("expected FSBase 0xABCD, got %#x", s.FSBase())
	}

	tss := &arch.TSS{}
	s.SetKernelStack(tss, 0x9000)
	if tss.KernelStackTop != 0x9000 {
		t.Fatalf("expected tss.KernelStackTop set, got %#x", tss.KernelStackTop)
	}
}

func TestSwitcherLoadPageMap(t *testing.T) {
	s := New()
	s.LoadPageMap(arch.PageMapRoot(0x3000))
	if s.LastPageMap() != 0x3000 {
		t.Fatalf("expected last page map 0x3000, got %#x", s.LastPageMap())
	}
}

func TestTimerTicksAndStop(t *testing.T) {
	tm := NewTimer(5 * time.Millisecond)
	defer tm.Stop()

	select {
	case <-tm.Ticks():
	case <-time.After(time.Second):
		t.Fatal("expected at least one tick within a second")
	}
}

func TestTimerSleepMicros(t *testing.T) {
	tm := NewTimer(time.Hour)
	defer tm.Stop()

	start := time.Now()
	tm.SleepMicros(1000)
	if time.Since(start) < time.Millisecond {
		t.Fatal("expected SleepMicros to actually block for roughly the requested duration")
	}
}

func TestIPISenderSelfAndTarget(t *testing.T) {
	s := NewIPISender(0)
	var calledSelf, calledOther bool
	s.Bind(0, func() { calledSelf = true })
	s.Bind(1, func() { calledOther = true })

	s.SendIPI(arch.IPIDestSelf, 0, arch.VectorSchedule)
	if !calledSelf || calledOther {
		t.Fatalf("expected only self handler invoked, got self=%v other=%v", calledSelf, calledOther)
	}

	calledSelf, calledOther = false, false
	s.SendIPI(arch.IPIDestTarget, 1, arch.VectorSchedule)
	if calledSelf || !calledOther {
		t.Fatalf("expected only targeted handler invoked, got self=%v other=%v", calledSelf, calledOther)
	}
}

func TestIPISenderOtherExcludesSelf(t *testing.T) {
	s := NewIPISender(0)
	var hit []int
	s.Bind(0, func() { hit = append(hit, 0) })
	s.Bind(1, func() { hit = append(hit, 1) })
	s.Bind(2, func() { hit = append(hit, 2) })

	s.SendIPI(arch.IPIDestOther, 0, arch.VectorSchedule)

	for _, cpu := range hit {
		if cpu == 0 {
			t.Fatal("expected IPIDestOther to exclude self")
		}
	}
	if len(hit) != 2 {
		t.Fatalf("expected both other CPUs hit, got %v", hit)
	}
}
