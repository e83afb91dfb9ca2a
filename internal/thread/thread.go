// Package thread implements the thread control block and its
// architectural context (§3 "Thread", §4.2).
package thread

import (
	"sync"

	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/internal/blocker"
	"github.com/lemon-kernel/nucleus/internal/signal"
)

// State is a thread's scheduling state (§3).
type State int

const (
	Running State = iota
	Blocked
	// Zombie is the transitional state EndProcess sets before Dying, to
	// force quiescence: any CPU already inside this thread's critical
	// section finishes before the blocker interrupt and run-queue
	// removal proceed (§4.8 steps 3-4).
	Zombie
	Dying
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Zombie:
		return "zombie"
	case Dying:
		return "dying"
	default:
		return "unknown"
	}
}

// KernelStackSize is the fixed size of a thread's dedicated kernel
// stack (§3: "a fixed 128 KiB region").
const KernelStackSize = 128 * 1024

// Default scheduling constants (§4.2).
const (
	DefaultUserPriority = 4
	DefaultIdlePriority = 1
	DefaultTimeSlice    = 3
)

// ProcessRef is the narrow view of an owning process a Thread needs.
// It exists so this package does not import process, which owns
// Thread values; process.Process satisfies it.
type ProcessRef interface {
	IsDying() bool
	CreditActiveTick()
}

// Thread is the thread control block (§3).
type Thread struct {
	// ID is unique within the owning process, monotonic from 1.
	ID uint64

	// Process is a non-owning back-reference to the owning process.
	Process ProcessRef

	mu sync.Mutex // per-thread spinlock guarding Blocker, Pending, Mask

	Registers      arch.Registers
	ExtendedState  *arch.ExtendedState
	KernelStackTop uint64

	UserStackBase  uintptr
	UserStackLimit uintptr

	FSBase uint64

	Priority         int
	DefaultTimeSlice int
	TimeSlice        int

	state State

	Pending signal.Set
	Mask    signal.Set
	Blocker blocker.Interrupter

	// Prev and Next form the intrusive ring a run queue threads
	// through (§3, §9 "Intrusive ring").
	Prev, Next *Thread
}

// New creates a thread ready to be placed on a run queue, with the
// documented defaults for a user thread: the interrupt flag set in RFLAGS,
// priority 4, default time slice 3 ticks, a fresh zeroed 4 KiB extended
// state block with FCW 0x33F and MXCSR 0x1F80/0xFFBF (§4.2).
func New(id uint64, proc ProcessRef) *Thread {
	t := &Thread{
		ID:               id,
		Process:          proc,
		ExtendedState:    arch.NewExtendedState(),
		Priority:         DefaultUserPriority,
		DefaultTimeSlice: DefaultTimeSlice,
		TimeSlice:        DefaultTimeSlice,
		state:            Running,
	}
	t.Registers.RFLAGS = 0x202 // IF set
	return t
}

// NewIdle creates an idle thread: priority 1, zero time slice so it
// yields on every tick (§4.2).
func NewIdle(id uint64, proc ProcessRef, entry uintptr) *Thread {
	t := New(id, proc)
	t.Priority = DefaultIdlePriority
	t.DefaultTimeSlice = 0
	t.TimeSlice = 0
	t.Registers.RIP = uint64(entry)
	return t
}

// State returns the thread's current scheduling state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the thread to s.
func (t *Thread) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// MarkBlocked implements blocker.Blockable: it sets state Blocked and
// zeroes the remaining time slice (§4.4).
func (t *Thread) MarkBlocked() {
	t.mu.Lock()
	t.state = Blocked
	t.TimeSlice = 0
	t.mu.Unlock()
}

// MarkRunning implements blocker.Blockable: it returns the thread to
// Running.
func (t *Thread) MarkRunning() {
	t.mu.Lock()
	t.state = Running
	t.mu.Unlock()
}

// Lock and Unlock expose the thread's spinlock to callers (scheduler
// termination and signal delivery) that must hold it across a longer
// sequence than a single field access.
func (t *Thread) Lock()   { t.mu.Lock() }
func (t *Thread) Unlock() { t.mu.Unlock() }

// TryLock attempts to acquire the thread's spinlock without blocking.
func (t *Thread) TryLock() bool { return t.mu.TryLock() }

// SetBlocker records the blocker the thread is currently suspended on,
// or clears it with nil. It implements blocker.Blockable so Base.Block
// can wire itself onto the thread for the duration of the wait.
func (t *Thread) SetBlocker(b blocker.Interrupter) {
	t.mu.Lock()
	t.Blocker = b
	t.mu.Unlock()
}

// CurrentBlocker returns the thread's current blocker, if any.
func (t *Thread) CurrentBlocker() blocker.Interrupter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Blocker
}

// Signal sets sig's pending bit (§4.5 "Sending").
func (t *Thread) Signal(sig signal.Signal) {
	t.mu.Lock()
	t.Pending = t.Pending.Add(sig)
	t.mu.Unlock()
}

// PendingAndMask returns a consistent snapshot of the pending and mask
// bitsets under the thread's lock. Callers that already hold the lock
// (via Lock/TryLock, e.g. the scheduler's signal-delivery path) must
// read the Pending/Mask fields directly instead, to avoid deadlocking
// on this method's own locking.
func (t *Thread) PendingAndMask() (pending, mask signal.Set) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Pending, t.Mask
}

// ResetTimeSlice reloads the default time slice into the remaining
// slice (§4.6 step 5).
func (t *Thread) ResetTimeSlice() {
	t.TimeSlice = t.DefaultTimeSlice
}
