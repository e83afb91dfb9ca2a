package main

import (
	"context"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/lemon-kernel/nucleus/scheduler"
)

// runVisualizer renders live per-CPU run-queue occupancy as a small
// ebiten window, one bar per CPU, grounded on the teacher's
// hal/host_window.go RunWindow/hostGame pattern.
func runVisualizer(ctx context.Context, sched *scheduler.Scheduler) error {
	ebiten.SetWindowTitle("nucleusctl run-queue occupancy")
	ebiten.SetWindowSize(480, 240)
	ebiten.SetTPS(30)
	return ebiten.RunGame(&occupancyGame{ctx: ctx, sched: sched})
}

type occupancyGame struct {
	ctx   context.Context
	sched *scheduler.Scheduler
}

func (g *occupancyGame) Update() error {
	select {
	case <-g.ctx.Done():
		return g.ctx.Err()
	default:
		return nil
	}
}

const (
	barWidth  = 40
	barGap    = 16
	barMaxH   = 200
	barPerLen = 20 // pixels of bar height per queued thread
)

func (g *occupancyGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{16, 16, 20, 255})

	n := g.sched.CPUCount()
	for cpu := 0; cpu < n; cpu++ {
		length := g.sched.RunQueueLen(cpu)
		h := length * barPerLen
		if h > barMaxH {
			h = barMaxH
		}

		x := 20 + cpu*(barWidth+barGap)
		y := 220 - h
		bar := ebiten.NewImage(barWidth, max(h, 1))
		bar.Fill(color.RGBA{80, 200, 120, 255})

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(x), float64(y))
		screen.DrawImage(bar, op)

		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("cpu%d:%d", cpu, length), x, 222)
	}
}

func (g *occupancyGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return 480, 240
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
