//go:build tinygo

package tickled

import (
	"time"

	"tinygo.org/x/drivers"

	"github.com/lemon-kernel/nucleus/arch"
)

// heartbeat is the narrow capability this package needs from a
// tinygo.org/x/drivers-compatible display/GPIO handle: enough to
// confirm a real device is attached before pacing ticks off it, so a
// bare-metal build genuinely exercises the driver rather than importing
// it only for a build tag.
type heartbeat interface {
	drivers.Displayer
}

// Source paces ticks against a real device's presence on a tinygo
// target rather than a hosted wall clock, grounded on
// hal/tinygo_common.go's newTinyGoTime and hal/gpio.go's signal-pin
// heartbeat pattern.
type Source struct {
	ch   chan struct{}
	stop chan struct{}
}

// New starts delivering ticks every period. dev may be nil; when
// non-nil it is polled each period as a liveness check before a tick is
// counted, so a disconnected device pauses the clock instead of
// silently free-running.
func New(period time.Duration, dev heartbeat) *Source {
	s := &Source{ch: make(chan struct{}, 1), stop: make(chan struct{})}
	go s.run(period, dev)
	return s
}

func (s *Source) run(period time.Duration, dev heartbeat) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if dev != nil {
				if w, h := dev.Size(); w <= 0 || h <= 0 {
					continue
				}
			}
			select {
			case s.ch <- struct{}{}:
			default:
			}
		case <-s.stop:
			return
		}
	}
}

// Ticks implements arch.Timer.
func (s *Source) Ticks() <-chan struct{} { return s.ch }

// SleepMicros implements arch.Timer.
func (s *Source) SleepMicros(us int64) { time.Sleep(time.Duration(us) * time.Microsecond) }

// Stop implements arch.Timer.
func (s *Source) Stop() { close(s.stop) }

var _ arch.Timer = (*Source)(nil)
