package scheduler

import (
	"encoding/binary"
	"testing"

	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/simmem"
)

func TestMaybeDeliverSignalRewritesPCAndConsumesPending(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, err := s.CreateELFProcess(img, nil, nil, "")
	if err != nil {
		t.Fatalf("CreateELFProcess: %v", err)
	}
	main := p.MainThread()
	originalRIP := main.Registers.RIP
	main.Signal(signal.SIGTERM)

	s.maybeDeliverSignal(main)

	if main.Registers.RIP != uint64(p.SignalTrampoline) {
		t.Fatalf("expected RIP rewritten to the trampoline %#x, got %#x", p.SignalTrampoline, main.Registers.RIP)
	}
	if main.Pending.Has(signal.SIGTERM) {
		t.Fatal("expected the delivered signal cleared from pending")
	}
	_ = originalRIP
}

func TestMaybeDeliverSignalSkipsKernelMode(t *testing.T) {
	s := newTestScheduler(t, 1)
	p := s.CreateProcess(0) // kernel-mode process
	main := p.MainThread()
	main.Signal(signal.SIGTERM)
	rip := main.Registers.RIP

	s.maybeDeliverSignal(main)

	if main.Registers.RIP != rip {
		t.Fatal("expected no delivery for a kernel-mode thread")
	}
	if !main.Pending.Has(signal.SIGTERM) {
		t.Fatal("expected the pending signal left untouched")
	}
}

func TestMaybeDeliverSignalSkipsDyingProcess(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, _ := s.CreateELFProcess(img, nil, nil, "")
	main := p.MainThread()
	main.Signal(signal.SIGTERM)
	p.MarkDying()

	s.maybeDeliverSignal(main)

	if !main.Pending.Has(signal.SIGTERM) {
		t.Fatal("expected no delivery to a dying process")
	}
}

func TestMaybeDeliverSignalNoPendingIsNoop(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, _ := s.CreateELFProcess(img, nil, nil, "")
	main := p.MainThread()
	rip := main.Registers.RIP

	s.maybeDeliverSignal(main)

	if main.Registers.RIP != rip {
		t.Fatal("expected no delivery when nothing is pending")
	}
}

func TestDeliverSignalWritesFrameToStack(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, _ := s.CreateELFProcess(img, nil, nil, "")
	main := p.MainThread()
	oldRSP := main.Registers.RSP
	main.Signal(signal.SIGINT)

	s.maybeDeliverSignal(main)

	if main.Registers.RSP >= oldRSP {
		t.Fatalf("expected the stack pointer to move down for the pushed frame, old=%#x new=%#x", oldRSP, main.Registers.RSP)
	}
	if main.Registers.RSP%16 != 0 {
		t.Fatalf("expected the new stack pointer 16-byte aligned, got %#x", main.Registers.RSP)
	}

	as := p.AddressSpace.(*simmem.AddressSpace)
	buf := make([]byte, signalFrameSize)
	if err := as.ReadAt(uintptr(main.Registers.RSP), buf); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	gotSig := binary.LittleEndian.Uint64(buf[signalFrameSize-8:])
	if signal.Signal(gotSig) != signal.SIGINT {
		t.Fatalf("expected the encoded signal number %d, got %d", signal.SIGINT, gotSig)
	}
}

func TestDeliverSignalPrecedenceLowestNumberWins(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, _ := s.CreateELFProcess(img, nil, nil, "")
	main := p.MainThread()
	main.Signal(signal.SIGCHLD) // 17
	main.Signal(signal.SIGINT)  // 2
	main.Signal(signal.SIGTERM) // 15

	s.maybeDeliverSignal(main)

	if main.Pending.Has(signal.SIGINT) {
		t.Fatal("expected the lowest-numbered pending signal (SIGINT) delivered first")
	}
	if !main.Pending.Has(signal.SIGCHLD) || !main.Pending.Has(signal.SIGTERM) {
		t.Fatal("expected the other pending signals to remain pending")
	}
}

func TestDeliverSignalAppliesDispositionMask(t *testing.T) {
	s := newTestScheduler(t, 1)
	img := buildNLEXImage(0, []byte{0xF4})
	p, _ := s.CreateELFProcess(img, nil, nil, "")
	main := p.MainThread()
	p.Signals.SetDisposition(signal.SIGINT, signal.Disposition{
		Action: signal.ActionUserHandler,
		Mask:   signal.Set(0).Add(signal.SIGTERM),
	})
	main.Signal(signal.SIGINT)

	s.maybeDeliverSignal(main)

	if !main.Mask.Has(signal.SIGTERM) {
		t.Fatal("expected the disposition's mask merged into the thread's mask on delivery")
	}
}
