package linux

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
)

// PWM LED character device ioctls, matching the kernel module's imx_pwm_led
// interface.
const (
	pwmLedSetActive = 0x00007549 // _IO('u', 0x49)
	pwmLedSetDuty   = 0x0000754A // _IO('u', 0x4A)
)

// ChannelConfig names the three PWM duty-cycle devices (red, green, blue)
// backing one RGB indicator.
type ChannelConfig struct {
	RedDevice, GreenDevice, BlueDevice string
}

type channel struct {
	fd int
}

// Display drives one or more RGB indicators through three independent PWM
// duty-cycle devices, generalizing the teacher's single-channel ImxPwmLed
// to three channels driven from an 8-bit colour value.
type Display struct {
	configs map[uint32]ChannelConfig
	log     *logger.Logger

	mu       sync.Mutex
	channels map[uint32][3]*channel
}

func NewDisplay(configs map[uint32]ChannelConfig, log *logger.Logger) *Display {
	return &Display{
		configs:  configs,
		log:      log,
		channels: make(map[uint32][3]*channel),
	}
}

func (d *Display) Init(id uint32) {
	cfg, ok := d.configs[id]
	if !ok {
		panic(fmt.Sprintf("linux: no PWM devices configured for display %d", id))
	}

	paths := [3]string{cfg.RedDevice, cfg.GreenDevice, cfg.BlueDevice}
	var chans [3]*channel
	for i, p := range paths {
		fd, err := unix.Open(p, unix.O_RDWR, 0)
		if err != nil {
			panic(fmt.Sprintf("linux: open PWM device %s: %v", p, err))
		}
		if err := unix.IoctlSetInt(fd, pwmLedSetActive, 1); err != nil {
			panic(fmt.Sprintf("linux: activate PWM device %s: %v", p, err))
		}
		chans[i] = &channel{fd: fd}
	}

	d.mu.Lock()
	d.channels[id] = chans
	d.mu.Unlock()
}

// SetRGB sets each channel's duty cycle proportional to its 8-bit colour
// value out of 255; the 8-bit value is passed unscaled as the ioctl's
// duty argument. A channel whose ioctl fails is logged and skipped,
// leaving its previous duty cycle in place, rather than aborting the
// whole write or crashing the process; the first such error is returned.
func (d *Display) SetRGB(id uint32, c port.RGB) error {
	d.mu.Lock()
	chans := d.channels[id]
	d.mu.Unlock()

	values := [3]uint8{c.R, c.G, c.B}
	var firstErr error
	for i, ch := range chans {
		if err := unix.IoctlSetInt(ch.fd, pwmLedSetDuty, int(values[i])); err != nil {
			wrapped := fmt.Errorf("linux: set PWM duty on display %d channel %d: %w", id, i, err)
			d.log.Errorf("%v", wrapped)
			if firstErr == nil {
				firstErr = wrapped
			}
		}
	}
	return firstErr
}

// Close deactivates and closes every PWM device the adapter opened.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, chans := range d.channels {
		for _, ch := range chans {
			_ = unix.IoctlSetInt(ch.fd, pwmLedSetActive, 0)
			unix.Close(ch.fd)
		}
	}
}
