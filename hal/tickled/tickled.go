//go:build !tinygo

// Package tickled provides the periodic timer-interrupt source
// scheduler.Initialize's tick loop consumes, grounded on the teacher's
// hal/host_time.go (wall-clock backed) and hal/tinygo_common.go
// (GPIO/timer-interrupt backed) split, selected the same way by a build
// tag rather than by an interface value chosen at runtime.
package tickled

import (
	"time"

	"github.com/lemon-kernel/nucleus/arch"
)

// Source is a host-backed arch.Timer: a wall-clock time.Ticker standing
// in for the timer/APIC interrupt real hardware would deliver.
type Source struct {
	ticker *time.Ticker
	ch     chan struct{}
	done   chan struct{}
}

// New starts delivering ticks every period until Stop is called.
func New(period time.Duration) *Source {
	s := &Source{
		ticker: time.NewTicker(period),
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Source) run() {
	for {
		select {
		case <-s.ticker.C:
			select {
			case s.ch <- struct{}{}:
			default:
			}
		case <-s.done:
			return
		}
	}
}

// Ticks implements arch.Timer.
func (s *Source) Ticks() <-chan struct{} { return s.ch }

// SleepMicros implements arch.Timer.
func (s *Source) SleepMicros(us int64) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// Stop implements arch.Timer.
func (s *Source) Stop() {
	s.ticker.Stop()
	close(s.done)
}

var _ arch.Timer = (*Source)(nil)
