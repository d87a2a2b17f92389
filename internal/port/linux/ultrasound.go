package linux

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/atomic"

	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
)

// TransceiverConfig names the trigger and echo lines of one ultrasound
// transceiver.
type TransceiverConfig struct {
	TriggerChip, TriggerLine int
	EchoChip, EchoLine       int
}

// transceiver holds one sensor's GPIO lines and ISR-mirror state. The
// capture fields are set by the overflow goroutine (echoOverflows) and
// the echo edge handler (echoInitTick, echoEndTick, echoReceived), cleared
// by ResetEchoTicks, and read by the ultrasound FSM's guards and
// doSetDistance.
type transceiver struct {
	triggerLine *gpiocdev.Line
	echoLine    *gpiocdev.Line

	epoch time.Time

	echoInitTick  atomic.Uint32
	echoEndTick   atomic.Uint32
	echoOverflows atomic.Uint32
	echoReceived  atomic.Bool
	triggerEnd    atomic.Bool
	triggerReady  atomic.Bool

	stopOverflow chan struct{}
	stopNewMeas  chan struct{}
}

// Ultrasound drives one or more HC-SR04-style transceivers: a 10us
// trigger pulse followed by an echo pulse whose width is proportional to
// round-trip time, captured against a simulated 1MHz, 16-bit-wrapping
// timer (port.CaptureResolution, port.CaptureTimerModulus).
type Ultrasound struct {
	clock   *Clock
	configs map[uint32]TransceiverConfig
	log     *logger.Logger

	mu    sync.Mutex
	chips map[int]*gpiocdev.Chip
	tx    map[uint32]*transceiver
}

func NewUltrasound(clock *Clock, configs map[uint32]TransceiverConfig, log *logger.Logger) *Ultrasound {
	return &Ultrasound{
		clock:   clock,
		configs: configs,
		log:     log,
		chips:   make(map[int]*gpiocdev.Chip),
		tx:      make(map[uint32]*transceiver),
	}
}

func (u *Ultrasound) chip(n int) *gpiocdev.Chip {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c, ok := u.chips[n]; ok {
		return c
	}
	c, err := gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", n))
	if err != nil {
		panic(fmt.Sprintf("linux: open gpiochip%d: %v", n, err))
	}
	u.chips[n] = c
	return c
}

func (u *Ultrasound) Init(id uint32) {
	cfg, ok := u.configs[id]
	if !ok {
		panic(fmt.Sprintf("linux: no GPIO lines configured for ultrasound %d", id))
	}

	tx := &transceiver{epoch: time.Now()}

	triggerLine, err := u.chip(cfg.TriggerChip).RequestLine(cfg.TriggerLine,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("parking-assist"))
	if err != nil {
		panic(fmt.Sprintf("linux: request trigger line %d/%d: %v", cfg.TriggerChip, cfg.TriggerLine, err))
	}
	tx.triggerLine = triggerLine

	echoLine, err := u.chip(cfg.EchoChip).RequestLine(cfg.EchoLine,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(u.echoHandler(tx)),
		gpiocdev.WithConsumer("parking-assist"))
	if err != nil {
		panic(fmt.Sprintf("linux: request echo line %d/%d: %v", cfg.EchoChip, cfg.EchoLine, err))
	}
	tx.echoLine = echoLine

	u.mu.Lock()
	u.tx[id] = tx
	u.mu.Unlock()

	u.startOverflowCounter(tx)
}

func (u *Ultrasound) tickOf(tx *transceiver) uint32 {
	return uint32(time.Since(tx.epoch).Microseconds() % port.CaptureTimerModulus)
}

// startOverflowCounter emulates the 16-bit capture timer's overflow
// interrupt: every time the microsecond count wraps, echoOverflows is
// incremented so doSetDistance can reconstruct elapsed time across
// wraps exactly as the original's ISR does.
func (u *Ultrasound) startOverflowCounter(tx *transceiver) {
	tx.stopOverflow = make(chan struct{})
	go func() {
		ticker := time.NewTicker(port.CaptureTimerModulus * port.CaptureResolution)
		defer ticker.Stop()
		for {
			select {
			case <-tx.stopOverflow:
				return
			case <-ticker.C:
				tx.echoOverflows.Inc()
			}
		}
	}()
}

func (u *Ultrasound) echoHandler(tx *transceiver) gpiocdev.EventHandler {
	return func(evt gpiocdev.LineEvent) {
		if evt.Type == gpiocdev.LineEventRisingEdge {
			tx.echoInitTick.Store(u.tickOf(tx))
			return
		}
		tx.echoEndTick.Store(u.tickOf(tx))
		tx.echoReceived.Store(true)
		u.clock.Wake()
	}
}

// StartMeasurement raises the trigger line, then lowers it again after
// port.TriggerHighTime on a background goroutine. A failure to raise the
// line is logged and returned without starting that goroutine, so the
// trigger-end flag is not set for this cycle; a failure to lower it is
// logged from the goroutine, since by then the call has already returned.
func (u *Ultrasound) StartMeasurement(id uint32) error {
	tx := u.tx[id]
	tx.triggerReady.Store(false)
	if err := tx.triggerLine.SetValue(1); err != nil {
		wrapped := fmt.Errorf("linux: raise trigger line for ultrasound %d: %w", id, err)
		u.log.Errorf("%v", wrapped)
		return wrapped
	}
	go func() {
		time.Sleep(port.TriggerHighTime)
		if err := tx.triggerLine.SetValue(0); err != nil {
			u.log.Errorf("linux: lower trigger line for ultrasound %d: %v", id, err)
		}
		tx.triggerEnd.Store(true)
		u.clock.Wake()
	}()
	return nil
}

func (u *Ultrasound) StartNewMeasurementTimer(id uint32) {
	tx := u.tx[id]
	tx.stopNewMeas = make(chan struct{})
	go func() {
		ticker := time.NewTicker(port.MeasurementPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-tx.stopNewMeas:
				return
			case <-ticker.C:
				tx.triggerReady.Store(true)
				u.clock.Wake()
			}
		}
	}()
}

func (u *Ultrasound) StopNewMeasurementTimer(id uint32) {
	tx := u.tx[id]
	if tx.stopNewMeas != nil {
		close(tx.stopNewMeas)
		tx.stopNewMeas = nil
	}
}

func (u *Ultrasound) StopEchoTimer(id uint32) {}

func (u *Ultrasound) StopTriggerTimer(id uint32) {}

func (u *Ultrasound) StopUltrasound(id uint32) error {
	u.StopNewMeasurementTimer(id)
	tx := u.tx[id]
	tx.triggerReady.Store(false)
	tx.triggerEnd.Store(false)
	if err := tx.triggerLine.SetValue(0); err != nil {
		wrapped := fmt.Errorf("linux: lower trigger line for ultrasound %d: %w", id, err)
		u.log.Errorf("%v", wrapped)
		return wrapped
	}
	return nil
}

func (u *Ultrasound) EchoInitTick(id uint32) uint32 { return u.tx[id].echoInitTick.Load() }

func (u *Ultrasound) SetEchoInitTick(id uint32, tick uint32) { u.tx[id].echoInitTick.Store(tick) }

func (u *Ultrasound) EchoEndTick(id uint32) uint32 { return u.tx[id].echoEndTick.Load() }

func (u *Ultrasound) SetEchoEndTick(id uint32, tick uint32) { u.tx[id].echoEndTick.Store(tick) }

func (u *Ultrasound) EchoOverflows(id uint32) uint32 { return u.tx[id].echoOverflows.Load() }

func (u *Ultrasound) SetEchoOverflows(id uint32, n uint32) { u.tx[id].echoOverflows.Store(n) }

func (u *Ultrasound) EchoReceived(id uint32) bool { return u.tx[id].echoReceived.Load() }

func (u *Ultrasound) SetEchoReceived(id uint32, received bool) {
	u.tx[id].echoReceived.Store(received)
}

func (u *Ultrasound) ResetEchoTicks(id uint32) {
	tx := u.tx[id]
	tx.echoInitTick.Store(0)
	tx.echoEndTick.Store(0)
	tx.echoOverflows.Store(0)
	tx.echoReceived.Store(false)
}

func (u *Ultrasound) TriggerEnd(id uint32) bool { return u.tx[id].triggerEnd.Load() }

func (u *Ultrasound) SetTriggerEnd(id uint32, done bool) { u.tx[id].triggerEnd.Store(done) }

func (u *Ultrasound) TriggerReady(id uint32) bool { return u.tx[id].triggerReady.Load() }

func (u *Ultrasound) SetTriggerReady(id uint32, ready bool) { u.tx[id].triggerReady.Store(ready) }

// Close releases every GPIO line, chip, and background goroutine the
// adapter opened.
func (u *Ultrasound) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, tx := range u.tx {
		if tx.stopOverflow != nil {
			close(tx.stopOverflow)
		}
		if tx.stopNewMeas != nil {
			close(tx.stopNewMeas)
		}
		tx.triggerLine.Close()
		tx.echoLine.Close()
	}
	for _, chip := range u.chips {
		chip.Close()
	}
}
