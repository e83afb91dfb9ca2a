// Package simarch is a host-portable implementation of arch.Switcher,
// arch.Timer and arch.IPISender, usable on any GOOS/GOARCH.
//
// It plays the role the teacher's hal/host_*.go files play for
// hal.Device: a simulated stand-in for the real hardware sequence, good
// enough to drive and test the portable scheduler logic without ever
// touching an MSR or a page table.
package simarch

import (
	"sync"
	"time"

	"github.com/lemon-kernel/nucleus/arch"
)

// Switcher is a recording, no-op implementation of arch.Switcher.
//
// It is safe for concurrent use; a single instance is normally shared by
// every CPU-local binding in a simulated multiprocessor.
type Switcher struct {
	mu sync.Mutex

	fsBase    uint64
	stackTops map[*arch.TSS]uint64
	lastRoot  arch.PageMapRoot
	entries   []Entry
}

// Entry records one call to Enter, for tests that assert on dispatch
// outcomes without a real interrupt-return.
type Entry struct {
	Regs arch.Registers
	Root arch.PageMapRoot
}

func New() *Switcher {
	return &Switcher{stackTops: make(map[*arch.TSS]uint64)}
}

func (s *Switcher) SaveExtendedState(dst *arch.ExtendedState) {
	// The host has no FPU state worth capturing; the block already
	// carries whatever defaults or prior contents it had. Real hardware
	// support lives in arch/amd64.
	_ = dst
}

func (s *Switcher) RestoreExtendedState(src *arch.ExtendedState) {
	_ = src
}

func (s *Switcher) SetFSBase(base uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fsBase = base
}

func (s *Switcher) FSBase() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsBase
}

func (s *Switcher) SetKernelStack(tss *arch.TSS, top uint64) {
	tss.KernelStackTop = top
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stackTops[tss] = top
}

func (s *Switcher) LoadPageMap(root arch.PageMapRoot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRoot = root
}

func (s *Switcher) LastPageMap() arch.PageMapRoot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRoot
}

func (s *Switcher) Enter(regs *arch.Registers, root arch.PageMapRoot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Regs: *regs, Root: root})
}

// Entries returns every recorded Enter call, oldest first.
func (s *Switcher) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Timer is a wall-clock-driven arch.Timer usable in tests and in the
// cmd/nucleusctl demo harness.
type Timer struct {
	ticker *time.Ticker
	ch     chan struct{}
	done   chan struct{}
}

// NewTimer starts delivering ticks every period until Stop is called.
func NewTimer(period time.Duration) *Timer {
	t := &Timer{
		ticker: time.NewTicker(period),
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Timer) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- struct{}{}:
			default:
			}
		case <-t.done:
			return
		}
	}
}

func (t *Timer) Ticks() <-chan struct{} { return t.ch }

func (t *Timer) SleepMicros(us int64) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

func (t *Timer) Stop() {
	t.ticker.Stop()
	close(t.done)
}

// IPISender delivers IPIs by invoking a per-CPU callback synchronously.
// It stands in for APIC::Local::SendIPI in the original.
type IPISender struct {
	mu       sync.Mutex
	self     int
	handlers map[int]func()
}

// NewIPISender creates a sender bound to the CPU identified by self;
// self is used to resolve IPIDestSelf.
func NewIPISender(self int) *IPISender {
	return &IPISender{self: self, handlers: make(map[int]func())}
}

// Bind registers cpu's schedule-IPI handler.
func (s *IPISender) Bind(cpu int, handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[cpu] = handler
}

func (s *IPISender) SendIPI(dest arch.IPIDest, target int, vector int) {
	s.mu.Lock()
	var targets []int
	switch dest {
	case arch.IPIDestSelf:
		targets = []int{s.self}
	case arch.IPIDestTarget:
		targets = []int{target}
	case arch.IPIDestOther:
		for cpu := range s.handlers {
			if cpu != s.self {
				targets = append(targets, cpu)
			}
		}
	}
	handlers := make([]func(), 0, len(targets))
	for _, cpu := range targets {
		if h, ok := s.handlers[cpu]; ok {
			handlers = append(handlers, h)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}
