// Package blocker implements the abstract suspendable condition
// described in §4.4: Block/Unblock/Interrupt. Concrete blockers (such as
// process.StateBlocker) embed Base and add their own registration
// bookkeeping against whatever they wait on.
package blocker

// Result is what a blocked goroutine observes when it wakes.
type Result int

const (
	// Woken means Unblock was called with a satisfying cause.
	Woken Result = iota
	// Interrupted means Interrupt forced release without success
	// (§4.4, used when the blocked thread is being torn down).
	Interrupted
)

// Interrupter is the thread-side view of the blocker it is currently
// parked on. Base satisfies it via Interrupt, and a thread records its
// active blocker under this name so EndProcess can cancel it without
// knowing the concrete blocker type (§5's termination cancellation
// path: "the only cancellation is Blocker::Interrupt, invoked by
// EndProcess on a blocked thread's blocker").
type Interrupter interface {
	Interrupt()
}

// Blockable is the thread-side half of the Block protocol: whatever
// Base.Block suspends must be able to report its own state transitions
// so the scheduler's dispatcher can skip it (§4.4's ordering note), and
// must record which blocker it is currently parked on so a concurrent
// EndProcess can find and interrupt it.
type Blockable interface {
	// MarkBlocked sets the thread's state to Blocked and zeroes its
	// time slice.
	MarkBlocked()
	// MarkRunning returns the thread to Running.
	MarkRunning()
	// SetBlocker records the blocker currently suspending the thread,
	// or clears it with nil.
	SetBlocker(b Interrupter)
}

// Waiter is what a target (e.g. a process) holds in its own "blocking"
// list: something it can notify without knowing the concrete blocker
// type (§4.4: "wired into each target's blocking list at construction").
type Waiter interface {
	Unblock(cause any)
}

// Base is the reusable Block/Unblock/Interrupt machinery every concrete
// blocker embeds. The zero value is not ready; use NewBase.
type Base struct {
	done chan Result
}

// NewBase returns a ready-to-use Base.
func NewBase() *Base {
	return &Base{done: make(chan Result, 1)}
}

// Block cooperatively suspends the calling goroutine on behalf of
// thread t until Unblock or Interrupt is called, returning which one
// woke it.
//
// Per §4.4's ordering note, a thread that has set its state to Blocked
// but has not yet reached this suspension point must still be skipped
// by the dispatcher; MarkBlocked is therefore called before this
// function actually parks, not after. The blocker is recorded on t for
// the same window, so a concurrent EndProcess can call Interrupt on it
// even though t may be blocked on a process other than the one dying.
func (b *Base) Block(t Blockable) Result {
	t.MarkBlocked()
	t.SetBlocker(b)
	res := <-b.done
	t.SetBlocker(nil)
	t.MarkRunning()
	return res
}

// Unblock marks the blocker satisfied and wakes the blocked goroutine.
// It is idempotent: only the first call delivers a result.
func (b *Base) Unblock() {
	select {
	case b.done <- Woken:
	default:
	}
}

// Interrupt forces the blocker to release without success. Like
// Unblock, only the first call (of either) has effect.
func (b *Base) Interrupt() {
	select {
	case b.done <- Interrupted:
	default:
	}
}
