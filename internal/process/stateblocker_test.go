package process

import (
	"testing"
	"time"

	"github.com/lemon-kernel/nucleus/internal/blocker"
)

func TestStateBlockerWaitOnRegisters(t *testing.T) {
	target := NewEmpty(1)
	b := NewStateBlocker()
	b.WaitOn(target)

	target.blockingMu.Lock()
	n := len(target.blocking)
	target.blockingMu.Unlock()
	if n != 1 {
		t.Fatalf("expected the blocker registered on target, got %d entries", n)
	}
}

func TestStateBlockerUnblockWakesAndUnregistersAll(t *testing.T) {
	targetA := NewEmpty(1)
	targetB := NewEmpty(2)
	b := NewStateBlocker()
	b.WaitOn(targetA)
	b.WaitOn(targetB)

	done := make(chan struct{})
	go func() {
		b.Block(&fakeBlockable{})
		close(done)
	}()

	targetA.NotifyBlocking()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Block to return after one target's death notifies")
	}

	targetB.blockingMu.Lock()
	n := len(targetB.blocking)
	targetB.blockingMu.Unlock()
	if n != 0 {
		t.Fatal("expected unblocking on one target to unregister from the other too")
	}
}

func TestStateBlockerCloseUnregistersSilently(t *testing.T) {
	target := NewEmpty(1)
	b := NewStateBlocker()
	b.WaitOn(target)

	b.Close()

	target.blockingMu.Lock()
	n := len(target.blocking)
	target.blockingMu.Unlock()
	if n != 0 {
		t.Fatal("expected Close to unregister from target")
	}
}

type fakeBlockable struct{}

func (fakeBlockable) MarkBlocked()                     {}
func (fakeBlockable) MarkRunning()                     {}
func (fakeBlockable) SetBlocker(b blocker.Interrupter) {}
