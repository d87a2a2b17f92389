// Package button implements the debounce/classification FSM of spec §4.2.
package button

import (
	"github.com/librescoot/parking-assist/internal/fsm"
	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
)

// States, in the order spec §3 lists them.
const (
	Released int = iota
	PressedWait
	Pressed
	ReleasedWait
)

// DebounceMs is the wire-level debounce window of spec §6.
const DebounceMs = 150

// FSM debounces a single momentary button and measures press duration
// against a millisecond monotonic clock.
type FSM struct {
	machine *fsm.Machine[*FSM]

	port  port.ButtonPort
	clock port.Clock
	log   *logger.Logger

	buttonID    uint32
	debounceMs  uint32
	pressTick   uint32
	releaseTick uint32
	durationMs  uint32
}

// New creates a button FSM bound to id and backed by p and clk. log may
// be nil.
func New(id uint32, p port.ButtonPort, clk port.Clock, log *logger.Logger) *FSM {
	p.Init(id)
	b := &FSM{
		port:       p,
		clock:      clk,
		log:        log,
		buttonID:   id,
		debounceMs: DebounceMs,
	}
	b.machine = fsm.New(Released, transitionTable, b)
	return b
}

var transitionTable = fsm.Table[*FSM]{
	{From: Released, Guard: (*FSM).checkPressed, To: PressedWait, Action: (*FSM).doRecordPress},
	{From: PressedWait, Guard: (*FSM).checkDebounced, To: Pressed},
	{From: Pressed, Guard: (*FSM).checkReleased, To: ReleasedWait, Action: (*FSM).doRecordRelease},
	{From: ReleasedWait, Guard: (*FSM).checkDebounced, To: Released},
}

func (b *FSM) checkPressed() bool {
	return b.port.Pressed(b.buttonID)
}

func (b *FSM) checkReleased() bool {
	return !b.port.Pressed(b.buttonID)
}

func (b *FSM) checkDebounced() bool {
	var since uint32
	if b.machine.State() == PressedWait {
		since = b.pressTick
	} else {
		since = b.releaseTick
	}
	return b.clock.NowMs()-since >= b.debounceMs
}

func (b *FSM) doRecordPress() {
	b.pressTick = b.clock.NowMs()
	b.port.SetPressed(b.buttonID, false)
	b.log.Debugf("button %d pressed", b.buttonID)
}

func (b *FSM) doRecordRelease() {
	b.durationMs = b.clock.NowMs() - b.pressTick
	b.releaseTick = b.clock.NowMs()
	b.port.SetPressed(b.buttonID, false)
	b.log.Debugf("button %d released after %dms", b.buttonID, b.durationMs)
}

// Fire advances the FSM by one evaluation of its transition table.
func (b *FSM) Fire() bool {
	return b.machine.Fire()
}

// State returns the current state.
func (b *FSM) State() int {
	return b.machine.State()
}

// DurationMs returns the most recently classified press duration. It is
// set on the PRESSED -> RELEASED_WAIT transition and kept until
// ResetDuration or the next release; it is zero before the first release
// and after ResetDuration.
func (b *FSM) DurationMs() uint32 {
	return b.durationMs
}

// ResetDuration zeroes the classified duration so a caller that has
// consumed it cannot trigger a second transition from the same press.
func (b *FSM) ResetDuration() {
	b.durationMs = 0
}

// CheckActivity reports whether the button is anywhere but RELEASED.
func (b *FSM) CheckActivity() bool {
	return b.machine.State() != Released
}
