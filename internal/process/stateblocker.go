package process

import (
	"sync"

	"github.com/lemon-kernel/nucleus/internal/blocker"
)

// StateBlocker is the concrete ProcessStateBlocker of §4.4: a blocker
// that waits on one or more processes and is unblocked when any of
// them dies.
type StateBlocker struct {
	*blocker.Base

	mu        sync.Mutex
	waitingOn []*Process
}

// NewStateBlocker returns a StateBlocker waiting on nothing yet; call
// WaitOn to register targets.
func NewStateBlocker() *StateBlocker {
	return &StateBlocker{Base: blocker.NewBase()}
}

// WaitOn registers the blocker in target's blocking list (§4.4: "wired
// into each target's blocking list at construction").
func (b *StateBlocker) WaitOn(target *Process) {
	b.mu.Lock()
	b.waitingOn = append(b.waitingOn, target)
	b.mu.Unlock()

	target.AddBlocking(b)
}

// Unblock implements blocker.Waiter. It unregisters the blocker from
// every process it was waiting on — including ones other than cause —
// since a single satisfying death answers the whole wait, then wakes
// the blocked thread.
func (b *StateBlocker) Unblock(cause any) {
	b.mu.Lock()
	targets := b.waitingOn
	b.waitingOn = nil
	b.mu.Unlock()

	for _, p := range targets {
		p.RemoveBlocking(b)
	}
	b.Base.Unblock()
}

// Close unregisters the blocker from every process it is still waiting
// on without waking anyone, for use when the blocker is discarded
// unsatisfied (§4.4: "unlinked on destruction").
func (b *StateBlocker) Close() {
	b.mu.Lock()
	targets := b.waitingOn
	b.waitingOn = nil
	b.mu.Unlock()

	for _, p := range targets {
		p.RemoveBlocking(b)
	}
}
