package scheduler

import (
	"sync"

	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/runqueue"
	"github.com/lemon-kernel/nucleus/internal/thread"
)

// cpu is a per-CPU structure holding the current thread, idle thread,
// run queue and TSS pointer (§3 "CPU-local bindings").
type cpu struct {
	id int

	runQueue *runqueue.Queue

	// currentMu guards current, so termination's remote-drain loop can
	// safely read/observe it while another goroutine dispatches.
	currentMu sync.Mutex
	current   *thread.Thread

	idle        *thread.Thread
	idleProcess *process.Process

	tss *arch.TSS
}

func newCPU(id int) *cpu {
	return &cpu{
		id:       id,
		runQueue: runqueue.New(),
		tss:      &arch.TSS{},
	}
}

func (c *cpu) current_() *thread.Thread {
	c.currentMu.Lock()
	defer c.currentMu.Unlock()
	return c.current
}

func (c *cpu) setCurrent(t *thread.Thread) {
	c.currentMu.Lock()
	c.current = t
	c.currentMu.Unlock()
}
