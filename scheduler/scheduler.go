// Package scheduler is the preemptive, per-CPU multiprocessor process
// and thread scheduler (spec.md's core): run queues, time-slicing,
// context switching, signal delivery on return to user mode, process
// lifecycle, blocking primitives and per-process handle tables.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/config"
	"github.com/lemon-kernel/nucleus/fs"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/thread"
	"github.com/lemon-kernel/nucleus/klog"
	"github.com/lemon-kernel/nucleus/loader"
	"github.com/lemon-kernel/nucleus/mem"
)

// Scheduler owns every piece of process-wide global mutable state named
// in §9: the process list, the destroyed list, the PID counter and the
// per-CPU array. It is a struct rather than package-level globals so
// tests can run several independent instances concurrently.
type Scheduler struct {
	cfg config.Config
	log *klog.Logger

	switcher arch.Switcher
	ipi      arch.IPISender
	timer    arch.Timer
	memMgr   mem.Manager
	fsys     fs.FS
	ldr      loader.Loader

	cpus []*cpu

	mu        sync.Mutex
	processes []*process.Process
	nextPID   uint64

	destroyedMu sync.Mutex
	destroyed   []*process.Process

	ready atomic.Bool

	bootCPU int
}

// Deps bundles the external collaborators Initialize needs (§6).
type Deps struct {
	Switcher arch.Switcher
	IPI      arch.IPISender
	Timer    arch.Timer
	Mem      mem.Manager
	FS       fs.FS
	Loader   loader.Loader
	Log      *klog.Logger
}

// New constructs a Scheduler. Call Initialize to bring it up.
func New(cfg config.Config, deps Deps) *Scheduler {
	log := deps.Log
	if log == nil {
		log = klog.Default
	}
	n := cfg.CPUCount
	if n < 1 {
		n = 1
	}
	s := &Scheduler{
		cfg:      cfg,
		log:      log.WithPrefix("scheduler"),
		switcher: deps.Switcher,
		ipi:      deps.IPI,
		timer:    deps.Timer,
		memMgr:   deps.Mem,
		fsys:     deps.FS,
		ldr:      deps.Loader,
		nextPID:  1,
	}
	s.processes = make([]*process.Process, 0, cfg.ProcessTableSizeHint)
	s.cpus = make([]*cpu, n)
	for i := range s.cpus {
		s.cpus[i] = newCPU(i)
	}
	return s
}

// nextProcessID hands out the next monotonic, never-reused process
// identifier (§9).
func (s *Scheduler) nextProcessID() uint64 {
	return atomic.AddUint64(&s.nextPID, 1) - 1
}

// Initialize brings up every CPU's idle process/thread, marks the
// scheduler ready, and then drives the boot CPU's tick loop until ctx
// is done (§6: "returns after the scheduler becomes ready and enters an
// idle-busy loop on the boot CPU"). The original never returns from
// this call at all; accepting a context is the one concession made for
// testability — see DESIGN.md.
func (s *Scheduler) Initialize(ctx context.Context) {
	for i, c := range s.cpus {
		idleProc, idleThread := s.newIdle(i)
		c.idleProcess = idleProc
		c.idle = idleThread
		s.appendProcess(idleProc)
	}

	kernelProc := s.CreateProcess(0)
	kernelProc.Name = "kernel"

	s.ready.Store(true)
	s.log.Info("scheduler ready", klog.F("cpus", len(s.cpus)))

	ticks := s.timer.Ticks()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("boot CPU idle loop stopping")
			return
		case <-ticks:
			s.Tick(s.bootCPU, nil)
		}
	}
}

// newIdle creates the idle process/thread pair for CPU id (§4.2, §9):
// priority 1, zero time slice, a real process table entry per
// SPEC_FULL's supplemented-features note.
func (s *Scheduler) newIdle(id int) (*process.Process, *thread.Thread) {
	pid := s.nextProcessID()
	proc := process.NewEmpty(pid)
	proc.Name = "idle"

	as, err := s.memMgr.CreateAddressSpace()
	if err != nil {
		s.log.Error("failed to create idle address space", klog.F("cpu", id), klog.F("err", err))
	}
	proc.AddressSpace = as

	idleThread := proc.MainThread()
	idleThread.Priority = thread.DefaultIdlePriority
	idleThread.DefaultTimeSlice = 0
	idleThread.TimeSlice = 0
	idleThread.Registers.CS = kernelCS
	idleThread.Registers.SS = kernelSS

	return proc, idleThread
}

// Ready reports whether Initialize has completed bring-up.
func (s *Scheduler) Ready() bool { return s.ready.Load() }

func (s *Scheduler) appendProcess(p *process.Process) {
	s.mu.Lock()
	s.processes = append(s.processes, p)
	s.mu.Unlock()
}

func (s *Scheduler) removeProcess(p *process.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.processes {
		if cur == p {
			s.processes = append(s.processes[:i], s.processes[i+1:]...)
			return
		}
	}
}

// FindProcessByPID linearly scans the global process list (§4.3).
func (s *Scheduler) FindProcessByPID(pid uint64) *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.processes {
		if p.ID == pid {
			return p
		}
	}
	return nil
}

// GetNextProcessPID returns the least identifier strictly greater than
// pid, or zero if none exists (§4.3, §8 property S6).
func (s *Scheduler) GetNextProcessPID(pid uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best uint64
	found := false
	for _, p := range s.processes {
		if p.ID > pid && (!found || p.ID < best) {
			best = p.ID
			found = true
		}
	}
	if !found {
		return 0
	}
	return best
}

// GetCurrentProcess returns the process owning cpuID's current thread,
// or nil if none.
func (s *Scheduler) GetCurrentProcess(cpuID int) *process.Process {
	t := s.GetCurrentThread(cpuID)
	if t == nil {
		return nil
	}
	return procOf(t)
}

// GetCurrentThread returns cpuID's current thread, or nil.
func (s *Scheduler) GetCurrentThread(cpuID int) *thread.Thread {
	if cpuID < 0 || cpuID >= len(s.cpus) {
		return nil
	}
	return s.cpus[cpuID].current_()
}

// CPUCount reports how many per-CPU run queues this scheduler manages.
func (s *Scheduler) CPUCount() int { return len(s.cpus) }

// RunQueueLen reports cpuID's run-queue length, for monitoring/demo
// tooling (cmd/nucleusctl's -visualize flag).
func (s *Scheduler) RunQueueLen(cpuID int) int {
	if cpuID < 0 || cpuID >= len(s.cpus) {
		return 0
	}
	return s.cpus[cpuID].runQueue.LenLocked()
}

// procOf recovers the concrete process.Process behind a thread's
// ProcessRef. Every thread in this package is constructed with a
// process.Process owner, so this assertion is an internal invariant,
// not a user-facing possibility of failure.
func procOf(t *thread.Thread) *process.Process {
	return t.Process.(*process.Process)
}

// Kernel-mode segment selectors, matching the original's KERNEL_CS/SS.
// User-mode selectors carry ring-3 privilege bits (§4.5's UserMode
// test relies on bit 0/1 of CS).
const (
	kernelCS = 0x08
	kernelSS = 0x10
	userCS   = 0x23
	userSS   = 0x1B
)
