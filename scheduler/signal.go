package scheduler

import (
	"encoding/binary"

	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/internal/thread"
	"github.com/lemon-kernel/nucleus/klog"
	"github.com/lemon-kernel/nucleus/mem"
)

// maybeDeliverSignal checks §4.5's delivery condition for t and, if
// satisfied, delivers under t's spinlock. It is called immediately
// before Schedule context-restores t into user mode.
func (s *Scheduler) maybeDeliverSignal(t *thread.Thread) {
	proc := procOf(t)
	if proc.IsDying() {
		return
	}
	if !t.Registers.UserMode() {
		return
	}
	if t.Pending&^t.Mask == 0 {
		return
	}
	t.Lock()
	defer t.Unlock()

	if !signal.ShouldDeliver(t.Pending, t.Mask, t.Registers.UserMode(), proc.IsDying()) {
		return
	}
	s.deliverSignal(t, proc)
}

// deliverSignal performs §4.5's delivery routine. The caller must hold
// t's spinlock.
func (s *Scheduler) deliverSignal(t *thread.Thread, proc *process.Process) {
	sig, ok := signal.Pick(t.Pending, t.Mask)
	if !ok {
		return
	}
	disp := proc.Signals.Get(sig)

	saved := t.Registers
	frame := encodeSignalFrame(sig, &saved)

	newSP := (uintptr(t.Registers.RSP) - uintptr(len(frame))) &^ 0xF
	if sw, ok := proc.AddressSpace.(mem.StackWriter); ok {
		if err := sw.WriteAt(newSP, frame); err != nil {
			s.log.Warn("failed to write signal frame to user stack",
				klog.F("pid", proc.ID), klog.F("tid", t.ID), klog.F("err", err))
		}
	}

	t.Registers.RSP = uint64(newSP)
	t.Registers.RIP = uint64(proc.SignalTrampoline)
	t.Pending = t.Pending.Remove(sig)
	t.Mask = t.Mask.Union(disp.Mask)

	s.log.Debug("delivered signal", klog.F("pid", proc.ID), klog.F("tid", t.ID), klog.F("signal", sig))
}

// signalFrameSize is the encoded size of the saved-register-plus-siginfo
// block pushed onto the user stack: 22 architectural registers, two
// reserved padding slots and the signal number, little-endian, 8 bytes
// each.
const signalFrameSize = (24 + 1) * 8

// encodeSignalFrame serializes the interrupted register snapshot and
// the delivered signal number the way the trampoline expects to find
// them on the user stack.
func encodeSignalFrame(sig signal.Signal, regs *arch.Registers) []byte {
	buf := make([]byte, signalFrameSize)
	fields := []uint64{
		regs.RAX, regs.RBX, regs.RCX, regs.RDX,
		regs.RSI, regs.RDI, regs.RBP, regs.RSP,
		regs.R8, regs.R9, regs.R10, regs.R11,
		regs.R12, regs.R13, regs.R14, regs.R15,
		regs.RIP, regs.RFLAGS,
		regs.CS, regs.SS, regs.DS, regs.ES,
		0, 0, // reserved padding to keep the layout 16-byte friendly
		uint64(sig),
	}
	for i, v := range fields {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return buf
}
