// Package arch defines the narrow, machine-dependent collaborator
// interfaces the scheduler consumes (§6). Everything above this package
// is portable Go; everything behind it is either a hosted simulation
// (simarch) or, on a real x86-64 target, MSR/TSS/CR3 sequences
// (arch/amd64).
package arch

// Registers is the architectural register snapshot saved and restored on
// every context switch, corresponding to the original kernel's
// RegisterContext.
type Registers struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP, RSP uint64
	R8, R9, R10, R11    uint64
	R12, R13, R14, R15  uint64
	RIP, RFLAGS         uint64
	CS, SS, DS, ES      uint64
}

// UserMode reports whether the saved code segment selector carries
// ring-3 privilege bits, the delivery-condition test in §4.5.
func (r *Registers) UserMode() bool {
	return r.CS&0x3 != 0
}

// extendedStateSize is the size of a thread's extended-state block: a
// 4 KiB region per §3's Thread invariant ("16-byte aligned... owned by
// the thread"), with FXSAVE's 512-byte legacy area at its start.
const extendedStateSize = 4096

// FXSAVE legacy-area field offsets used to seed the documented defaults.
const (
	offsetFCW    = 0
	offsetMXCSR  = 24
	offsetMXMask = 28
)

// ExtendedState is a thread's FPU/SSE extended state block.
//
// It embeds its storage in an array rather than a pointer so that a
// Thread owns it by value, matching the invariant that it is owned by
// exactly one thread and never shared.
type ExtendedState struct {
	raw [extendedStateSize]byte
}

// NewExtendedState returns a zeroed extended-state block with the
// documented default FPU control word (0x33F) and MXCSR (0x1F80, mask
// 0xFFBF) programmed in, matching §4.2's defaults for newly created
// threads.
func NewExtendedState() *ExtendedState {
	s := &ExtendedState{}
	s.putU16(offsetFCW, 0x33F)
	s.putU32(offsetMXCSR, 0x1F80)
	s.putU32(offsetMXMask, 0xFFBF)
	return s
}

// Bytes exposes the raw 4 KiB block for a Switcher implementation to
// FXSAVE/FXRSTOR into and out of.
func (s *ExtendedState) Bytes() []byte { return s.raw[:] }

func (s *ExtendedState) putU16(off int, v uint16) {
	s.raw[off] = byte(v)
	s.raw[off+1] = byte(v >> 8)
}

func (s *ExtendedState) putU32(off int, v uint32) {
	for i := 0; i < 4; i++ {
		s.raw[off+i] = byte(v >> (8 * i))
	}
}

// PageMapRoot is the physical address of a page-map root (PML4), opaque
// to everything above arch (§3 Address space: "the scheduler treats it
// as opaque; it only needs the root physical address when switching").
type PageMapRoot uintptr

// TSS models the fields of the per-CPU task-state segment the scheduler
// touches: the kernel-stack slot restored on every dispatch (§4.2).
type TSS struct {
	KernelStackTop uint64
}

// Switcher is the machine-dependent leaf of the context-switch protocol
// (§4.2, §4.6 step 8). A Switcher never makes scheduling decisions; it
// only performs the physical save/restore/enter sequence the scheduler
// has already decided on.
type Switcher interface {
	// SaveExtendedState writes the current FPU/SSE state into dst
	// (fxsave).
	SaveExtendedState(dst *ExtendedState)

	// RestoreExtendedState loads src into the FPU/SSE unit (fxrstor).
	RestoreExtendedState(src *ExtendedState)

	// SetFSBase programs the FS base into the appropriate MSR.
	SetFSBase(base uint64)

	// SetKernelStack updates tss's kernel-stack slot.
	SetKernelStack(tss *TSS, top uint64)

	// LoadPageMap switches the active page-map root (loads CR3).
	LoadPageMap(root PageMapRoot)

	// Enter performs the final interrupt-return-style transfer into
	// regs under root. On real hardware this never returns to its
	// caller. simarch's implementation is hosted and returns
	// immediately after recording the transfer, so that Schedule
	// (which calls Enter as its last step) remains an ordinary,
	// testable Go function; arch/amd64's implementation loads CR3 and
	// then executes INT3 in its interrupt-return leaf. Callers must not rely on any
	// code after Enter observing a particular processor state.
	Enter(regs *Registers, root PageMapRoot)
}

// IPIDest selects an inter-processor interrupt's destination shorthand
// (§6: "destination shorthand (self, other, explicit target)").
type IPIDest int

const (
	IPIDestSelf IPIDest = iota
	IPIDestOther
	IPIDestTarget
)

// IPISender delivers a programmable IPI. Target is only meaningful when
// dest is IPIDestTarget.
type IPISender interface {
	SendIPI(dest IPIDest, target int, vector int)
}

// Vector numbers for the IPIs the scheduler programs, matching the
// original's IPI_SCHEDULE.
const (
	VectorSchedule = 0xFD
)

// Timer is the timer/APIC collaborator consumed per §6: a periodic tick
// interrupt source plus a microsecond wait primitive used by
// Thread.Sleep (§5's only timeout mechanism).
type Timer interface {
	// Ticks delivers a value every time the periodic timer interrupt
	// fires. The channel is never closed while the timer runs.
	Ticks() <-chan struct{}

	// SleepMicros blocks the calling goroutine for the given number of
	// microseconds.
	SleepMicros(us int64)

	// Stop releases the timer's resources.
	Stop()
}
