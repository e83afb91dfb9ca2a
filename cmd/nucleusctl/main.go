// Command nucleusctl is a host-side harness around the scheduler
// library: it boots a simulated multi-CPU scheduler in-process, creates
// a synthetic process, ticks the clock, and prints run-queue state.
// Grounded on the teacher's main_host.go entry point.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lemon-kernel/nucleus/config"
	"github.com/lemon-kernel/nucleus/hal/tickled"
	"github.com/lemon-kernel/nucleus/klog"
	"github.com/lemon-kernel/nucleus/loader"
	"github.com/lemon-kernel/nucleus/scheduler"
	"github.com/lemon-kernel/nucleus/simarch"
	"github.com/lemon-kernel/nucleus/simfs"
	"github.com/lemon-kernel/nucleus/simloader"
	"github.com/lemon-kernel/nucleus/simmem"
)

func main() {
	var (
		cpuCount   int
		runTicks   int
		argvString string
		visualize  bool
	)
	flag.IntVar(&cpuCount, "cpus", 2, "Number of simulated CPUs.")
	flag.IntVar(&runTicks, "ticks", 50, "Number of timer ticks to simulate before exiting.")
	flag.StringVar(&argvString, "argv", "demo --stage=1", "argv string for the demo process, shlex-tokenized.")
	flag.BoolVar(&visualize, "visualize", false, "Render live per-CPU run-queue occupancy in an ebiten window.")
	flag.Parse()

	argv, err := loader.ParseArgvString(argvString)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nucleusctl: parsing -argv:", err)
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.CPUCount = cpuCount

	log := klog.New(os.Stdout, klog.LevelInfo)

	timer := tickled.New(cfg.TickPeriod)
	defer timer.Stop()

	fsys := simfs.New()
	fsys.AddFile("/bin/demo", syntheticImage())

	ipi := simarch.NewIPISender(0)

	sched := scheduler.New(cfg, scheduler.Deps{
		Switcher: simarch.New(),
		IPI:      ipi,
		Timer:    timer,
		Mem:      simmem.New(),
		FS:       fsys,
		Loader:   simloader.New(),
		Log:      log,
	})

	// Every simulated CPU's schedule IPI resolves to that CPU's own
	// Schedule call, closing the loop simarch.IPISender otherwise leaves
	// to the caller (§4.6's IPI-driven cross-CPU reschedule).
	for cpu := 0; cpu < cpuCount; cpu++ {
		cpu := cpu
		ipi.Bind(cpu, func() { sched.Schedule(cpu, nil) })
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Initialize(gctx)
		return nil
	})
	g.Go(func() error {
		return runDemo(gctx, sched, argv, runTicks)
	})

	if visualize {
		if err := runVisualizer(gctx, sched); err != nil {
			fmt.Fprintln(os.Stderr, "nucleusctl: visualizer:", err)
		}
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "nucleusctl:", err)
		os.Exit(1)
	}
}

// runDemo waits for the scheduler to come up, launches one process from
// the synthetic image, and prints run-queue occupancy for runTicks
// ticks before requesting shutdown.
func runDemo(ctx context.Context, sched *scheduler.Scheduler, argv []string, runTicks int) error {
	for !sched.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	proc, err := sched.CreateELFProcess(syntheticImage(), argv, []string{"NUCLEUSCTL=1"}, "/bin/demo")
	if err != nil {
		return fmt.Errorf("create process: %w", err)
	}
	sched.StartProcess(proc)
	fmt.Printf("nucleusctl: started pid=%d argv=%v\n", proc.ID, argv)

	for i := 0; i < runTicks; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(10 * time.Millisecond):
		}
		sched.Tick(0, nil)
	}
	return nil
}

// syntheticImage builds a minimal simloader-format executable: an
// infinite spin represented only by its entry offset, since this
// harness never actually executes fetched instructions.
func syntheticImage() []byte {
	buf := make([]byte, 4+8+1)
	copy(buf, "NLEX")
	binary.LittleEndian.PutUint64(buf[4:], 0)
	buf[12] = 0xF4 // hlt, as a readable placeholder for "the entry point"
	return buf
}
