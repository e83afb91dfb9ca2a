package scheduler

import (
	"io"
	"testing"
	"time"

	"github.com/lemon-kernel/nucleus/config"
	"github.com/lemon-kernel/nucleus/klog"
	"github.com/lemon-kernel/nucleus/simarch"
	"github.com/lemon-kernel/nucleus/simfs"
	"github.com/lemon-kernel/nucleus/simloader"
	"github.com/lemon-kernel/nucleus/simmem"
)

// newTestScheduler wires a Scheduler against every sim* fake, mirroring
// how cmd/nucleusctl assembles a real one, but with a silent logger and a
// caller-chosen CPU count.
func newTestScheduler(t *testing.T, cpuCount int) *Scheduler {
	t.Helper()
	cfg := config.Default()
	cfg.CPUCount = cpuCount

	deps := Deps{
		Switcher: simarch.New(),
		IPI:      simarch.NewIPISender(0),
		Timer:    simarch.NewTimer(time.Hour),
		Mem:      simmem.New(),
		FS:       simfs.New(),
		Loader:   simloader.New(),
		Log:      klog.New(io.Discard, klog.LevelDebug),
	}
	sched := New(cfg, deps)

	ipi := deps.IPI.(*simarch.IPISender)
	for cpu := 0; cpu < cpuCount; cpu++ {
		cpu := cpu
		ipi.Bind(cpu, func() { sched.Schedule(cpu, nil) })
	}

	for i, c := range sched.cpus {
		idleProc, idleThread := sched.newIdle(i)
		c.idleProcess = idleProc
		c.idle = idleThread
		sched.appendProcess(idleProc)
	}
	sched.ready.Store(true)

	t.Cleanup(func() { deps.Timer.Stop() })
	return sched
}
