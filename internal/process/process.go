// Package process implements the process control block (§3, §4.3).
package process

import (
	"sync"
	"sync/atomic"

	"github.com/lemon-kernel/nucleus/fs"
	"github.com/lemon-kernel/nucleus/internal/blocker"
	"github.com/lemon-kernel/nucleus/internal/handle"
	"github.com/lemon-kernel/nucleus/internal/signal"
	"github.com/lemon-kernel/nucleus/internal/thread"
	"github.com/lemon-kernel/nucleus/mem"
)

// Process is the process control block (§3).
type Process struct {
	ID uint64

	Name       string
	WorkingDir string
	UID, EUID  uint32

	// AddressSpace is owned by this process; only the reaper destroys
	// it (§3, §4.9).
	AddressSpace mem.AddressSpace

	// SignalTrampoline is the virtual address of the fixed trampoline
	// blob copied into this process's address space at creation
	// (§4.5). Zero for kernel-mode processes, which never take
	// signals in user mode.
	SignalTrampoline uintptr

	// Parent is a weak, non-owning back-reference.
	Parent *Process

	mu       sync.Mutex
	children []*Process
	threads  []*thread.Thread

	nextThreadID uint64

	FDs     fdTable
	Handles handle.Table
	Signals *signal.Table

	activeTicks uint64

	dying atomic.Bool
	dead  atomic.Bool

	// LifecycleLock guards the transition to dead against concurrent
	// reaper access (§3, §4.9).
	LifecycleLock sync.RWMutex

	blockingMu sync.Mutex
	blocking   []blocker.Waiter
}

// NewEmpty produces a process with the given (already-allocated)
// identifier, one not-yet-runnable thread, default-initialized signal
// dispositions, empty file-descriptor and handle tables, working
// directory "/" and name "unknown" (§4.3 InitializeEmpty).
//
// PID allocation itself is the scheduler's job (§9's global nextPID
// counter): this constructor takes an id rather than reaching for a
// package-level counter, so multiple independent schedulers (as in
// tests) never share PID state by accident.
func NewEmpty(id uint64) *Process {
	p := &Process{
		ID:         id,
		Name:       "unknown",
		WorkingDir: "/",
		Signals:    signal.NewTable(),
	}
	p.nextThreadID = 1
	main := thread.New(p.nextThreadID, p)
	p.nextThreadID++
	p.threads = append(p.threads, main)
	return p
}

// MainThread returns thread 1, the target of SIGCHLD (§4.5, §6).
func (p *Process) MainThread() *thread.Thread {
	return p.GetThreadFromID(1)
}

// Signal delivers sig to thread 1 of this process (§4.5 "Sending":
// "On a process, delivers to thread 1 of that process"). It is a no-op
// if the process has no main thread, e.g. one still under construction.
func (p *Process) Signal(sig signal.Signal) {
	if main := p.MainThread(); main != nil {
		main.Signal(sig)
	}
}

// GetThreadFromID returns the thread with the given per-process id, or
// nil.
func (p *Process) GetThreadFromID(id uint64) *thread.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Threads returns a snapshot of the process's thread list.
func (p *Process) Threads() []*thread.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*thread.Thread, len(p.threads))
	copy(out, p.threads)
	return out
}

// AddThread appends a newly created thread, assigning it the next
// per-process thread id, and returns it (§4.7 CreateChildThread).
func (p *Process) AddThread(makeThread func(id uint64) *thread.Thread) *thread.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextThreadID
	p.nextThreadID++
	t := makeThread(id)
	p.threads = append(p.threads, t)
	return t
}

// RemoveThread drops t from the process's thread list (used once a
// thread has been fully torn down).
func (p *Process) RemoveThread(t *thread.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.threads {
		if cur == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			return
		}
	}
}

// Children returns a snapshot of the child list.
func (p *Process) Children() []*Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Process, len(p.children))
	copy(out, p.children)
	return out
}

// AddChild links child as one of p's children (a relation, not
// ownership: §3).
func (p *Process) AddChild(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, child)
}

// RemoveChild unlinks child from p's child list.
func (p *Process) RemoveChild(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// IsDying implements thread.ProcessRef.
func (p *Process) IsDying() bool { return p.dying.Load() }

// IsDead reports whether the process has fully terminated (§3).
func (p *Process) IsDead() bool { return p.dead.Load() }

// MarkDying transitions the process to dying. It returns false if the
// process is already dying or dead (§4.8 step 1's precondition).
func (p *Process) MarkDying() bool {
	return !p.dead.Load() && p.dying.CompareAndSwap(false, true)
}

// MarkDead transitions the process to dead.
func (p *Process) MarkDead() { p.dead.Store(true) }

// CreditActiveTick implements thread.ProcessRef: it increments the
// process's scheduler-tick activity counter (§3, §4.6 step 1).
func (p *Process) CreditActiveTick() {
	atomic.AddUint64(&p.activeTicks, 1)
}

// ActiveTicks returns the process's activity counter.
func (p *Process) ActiveTicks() uint64 {
	return atomic.LoadUint64(&p.activeTicks)
}

// AddBlocking registers w in this process's blocking list (§4.4).
func (p *Process) AddBlocking(w blocker.Waiter) {
	p.blockingMu.Lock()
	defer p.blockingMu.Unlock()
	p.blocking = append(p.blocking, w)
}

// RemoveBlocking unregisters w, the blocker's own responsibility on
// destruction (§4.4).
func (p *Process) RemoveBlocking(w blocker.Waiter) {
	p.blockingMu.Lock()
	defer p.blockingMu.Unlock()
	for i, cur := range p.blocking {
		if cur == w {
			p.blocking = append(p.blocking[:i], p.blocking[i+1:]...)
			return
		}
	}
}

// NotifyBlocking unblocks every registered blocker when the process
// dies, per §4.8 step 8.
func (p *Process) NotifyBlocking() {
	p.blockingMu.Lock()
	waiters := p.blocking
	p.blocking = nil
	p.blockingMu.Unlock()

	for _, w := range waiters {
		w.Unblock(p)
	}
}

// OpenFD installs fd in the lowest free descriptor slot.
func (p *Process) OpenFD(fd *fs.FileDescriptor) int { return p.FDs.Open(fd) }

// OpenFDAt installs fd at exactly descriptor number id (§4.7 step 7).
func (p *Process) OpenFDAt(id int, fd *fs.FileDescriptor) { p.FDs.OpenAt(id, fd) }

// FD returns the descriptor at id.
func (p *Process) FD(id int) (*fs.FileDescriptor, bool) { return p.FDs.Get(id) }

// CloseFDs closes every open descriptor (§4.8 step 7).
func (p *Process) CloseFDs() { p.FDs.CloseAll() }
