// Package linux implements port.Clock, port.ButtonPort, port.UltrasoundPort,
// and port.DisplayPort against real Linux GPIO character devices and PWM
// duty-cycle devices, following the teacher's LinuxHardwareIO and
// ImxPwmLed adapters.
package linux

import (
	"sync"
	"time"
)

// Clock is a monotonic millisecond wall clock backed by time.Now, with
// Sleep blocking on a shared wake channel instead of a fixed duration so
// it returns as soon as any registered GPIO edge fires, mirroring
// port_system_sleep's wait-for-interrupt semantics.
type Clock struct {
	epoch time.Time

	mu   sync.Mutex
	wake chan struct{}
}

// NewClock creates a clock whose NowMs is relative to the moment it is
// constructed.
func NewClock() *Clock {
	return &Clock{
		epoch: time.Now(),
		wake:  make(chan struct{}, 1),
	}
}

func (c *Clock) NowMs() uint32 {
	return uint32(time.Since(c.epoch).Milliseconds())
}

// Sleep blocks until the next call to Wake.
func (c *Clock) Sleep() {
	<-c.wake
}

// Wake unblocks a pending Sleep. Called by the button and ultrasound
// adapters' edge handlers; non-blocking so a handler never stalls behind
// a main loop that hasn't called Sleep yet.
func (c *Clock) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
