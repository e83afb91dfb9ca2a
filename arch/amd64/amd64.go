//go:build amd64

// Package amd64 is the real x86-64 arch.Switcher: FXSAVE/FXRSTOR, the FS
// base MSR, CR3, and the TSS kernel-stack slot. The leaf instructions
// live in asm_amd64.s, following the same split the standard library and
// gopher-os use for architecture-specific glue: Go declares the
// signature, Plan 9 assembly supplies the body.
//
// This package is not exercised by the default test suite (simarch is);
// it is provided for a genuine bare-metal build and is only reachable
// when a caller opts in, since Enter and LoadPageMap require running
// with ring-0 privilege that a hosted `go test` process does not have.
package amd64

import (
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/lemon-kernel/nucleus/arch"
)

// fxsave writes the 512-byte legacy FPU/SSE state to addr, which must
// point at a 16-byte-aligned buffer of at least 512 bytes (§3's
// invariant: "the extended-state block is 16-byte aligned").
func fxsave(addr unsafe.Pointer)

// fxrstor loads the legacy FPU/SSE state from addr.
func fxrstor(addr unsafe.Pointer)

// wrmsrFSBase programs MSR 0xC0000100 (IA32_FS_BASE) with base.
func wrmsrFSBase(base uint64)

// loadCR3 switches the active page-map root.
func loadCR3(root uintptr)

// iretqTo stands in for the final interrupt-return sequence: its
// assembly body executes INT3 and does not build an IRETQ frame from
// regs (see asm_amd64.s).
func iretqTo(regs *arch.Registers)

// Switcher implements arch.Switcher on real x86-64 hardware.
type Switcher struct {
	useXSAVE bool
}

// New probes for AVX support and records the result in useXSAVE.
// SaveExtendedState and RestoreExtendedState use FXSAVE/FXRSTOR whatever
// the result.
func New() *Switcher {
	return &Switcher{useXSAVE: cpu.X86.HasAVX}
}

func extendedStatePtr(s *arch.ExtendedState) unsafe.Pointer {
	b := s.Bytes()
	return unsafe.Pointer(&b[0])
}

func (s *Switcher) SaveExtendedState(dst *arch.ExtendedState) {
	fxsave(extendedStatePtr(dst))
}

func (s *Switcher) RestoreExtendedState(src *arch.ExtendedState) {
	fxrstor(extendedStatePtr(src))
}

func (s *Switcher) SetFSBase(base uint64) {
	wrmsrFSBase(base)
}

func (s *Switcher) SetKernelStack(tss *arch.TSS, top uint64) {
	tss.KernelStackTop = top
}

func (s *Switcher) LoadPageMap(root arch.PageMapRoot) {
	loadCR3(uintptr(root))
}

func (s *Switcher) Enter(regs *arch.Registers, root arch.PageMapRoot) {
	loadCR3(uintptr(root))
	iretqTo(regs)
}
