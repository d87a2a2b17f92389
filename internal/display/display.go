// Package display implements the RGB indicator FSM of spec §4.4: it turns
// a display on, colours it from the distance colour.ForDistance maps, and
// turns it off, tracking an idle flag for activity detection.
package display

import (
	"github.com/librescoot/parking-assist/internal/colour"
	"github.com/librescoot/parking-assist/internal/fsm"
	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
)

// States, in the order spec §3 lists them.
const (
	WaitDisplay int = iota
	SetDisplay
)

// FSM drives one RGB indicator from a distance reading.
type FSM struct {
	machine *fsm.Machine[*FSM]

	port port.DisplayPort
	log  *logger.Logger

	id         uint32
	distanceCM int32
	newColour  bool
	status     bool
	idle       bool
}

// New creates a display FSM bound to id and backed by p. log may be nil.
func New(id uint32, p port.DisplayPort, log *logger.Logger) *FSM {
	p.Init(id)
	d := &FSM{
		port:       p,
		log:        log,
		id:         id,
		distanceCM: -1,
	}
	d.machine = fsm.New(WaitDisplay, transitionTable, d)
	return d
}

var transitionTable = fsm.Table[*FSM]{
	{From: WaitDisplay, Guard: (*FSM).checkActive, To: SetDisplay, Action: (*FSM).doSetOn},
	{From: SetDisplay, Guard: (*FSM).checkSetNewColour, To: SetDisplay, Action: (*FSM).doSetColour},
	{From: SetDisplay, Guard: (*FSM).checkOff, To: WaitDisplay, Action: (*FSM).doSetOff},
}

func (d *FSM) checkActive() bool {
	return d.status
}

func (d *FSM) checkSetNewColour() bool {
	return d.newColour
}

func (d *FSM) checkOff() bool {
	return !d.status
}

func (d *FSM) doSetOn() {
	if err := d.port.SetRGB(d.id, colour.Off); err != nil {
		d.log.Errorf("set display %d off on activation: %v", d.id, err)
	}
}

func (d *FSM) doSetColour() {
	if err := d.port.SetRGB(d.id, colour.ForDistance(d.distanceCM)); err != nil {
		d.log.Errorf("set display %d colour: %v", d.id, err)
	}
	d.newColour = false
	d.idle = true
}

func (d *FSM) doSetOff() {
	if err := d.port.SetRGB(d.id, colour.Off); err != nil {
		d.log.Errorf("set display %d off on deactivation: %v", d.id, err)
	}
	d.idle = false
}

// Fire advances the FSM by one evaluation of its transition table.
func (d *FSM) Fire() bool {
	return d.machine.Fire()
}

// State returns the current state.
func (d *FSM) State() int {
	return d.machine.State()
}

// Distance returns the last distance handed to SetDistance.
func (d *FSM) Distance() int32 {
	return d.distanceCM
}

// SetDistance records a new distance reading and arms a colour refresh.
func (d *FSM) SetDistance(distanceCM int32) {
	d.distanceCM = distanceCM
	d.newColour = true
}

// Status reports whether the display has been asked to be active.
func (d *FSM) Status() bool {
	return d.status
}

// SetStatus arms or disarms the display.
func (d *FSM) SetStatus(status bool) {
	d.status = status
}

// CheckActivity reports whether the display is active and has not yet
// settled into its idle (colour already applied) state.
func (d *FSM) CheckActivity() bool {
	return d.status && !d.idle
}
