// Package urbanite implements the master FSM of spec §4.5: it composes
// the button, ultrasound, and display FSMs into on/off, pause, and
// emergency behaviour driven by how long the button is held.
package urbanite

import (
	"github.com/librescoot/parking-assist/internal/button"
	"github.com/librescoot/parking-assist/internal/colour"
	"github.com/librescoot/parking-assist/internal/display"
	"github.com/librescoot/parking-assist/internal/fsm"
	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
	"github.com/librescoot/parking-assist/internal/ultrasound"
)

// States, in the order spec §3 lists them.
const (
	Off int = iota
	Measure
	SleepWhileOff
	SleepWhileOn
	Emergency
)

// EmergencyFlashPeriodMs is how long each phase of the emergency flash
// lasts (spec §6).
const EmergencyFlashPeriodMs = 1000

// FSM composes a button, an ultrasound sensor, and a display into the
// rear parking-assist behaviour.
type FSM struct {
	machine *fsm.Machine[*FSM]

	clock      port.Clock
	button     *button.FSM
	ultrasound *ultrasound.FSM
	display    *display.FSM
	log        *logger.Logger

	onOffPressMs   uint32
	pauseDisplayMs uint32
	emergencyMs    uint32

	isPaused     bool
	emergencyAux bool
	emergency    bool
	nextPhaseAt  uint32
}

// New composes b, u, and d into an urbanite FSM. onOffPressMs,
// pauseDisplayMs, and emergencyMs are the three button-duration
// thresholds of spec §6; onOffPressMs < emergencyMs, and
// pauseDisplayMs < onOffPressMs. log may be nil.
func New(clock port.Clock, b *button.FSM, u *ultrasound.FSM, d *display.FSM, onOffPressMs, pauseDisplayMs, emergencyMs uint32, log *logger.Logger) *FSM {
	f := &FSM{
		clock:          clock,
		button:         b,
		ultrasound:     u,
		display:        d,
		log:            log,
		onOffPressMs:   onOffPressMs,
		pauseDisplayMs: pauseDisplayMs,
		emergencyMs:    emergencyMs,
	}
	f.machine = fsm.New(Off, transitionTable, f)
	return f
}

// check_off and check_emergency_on/check_emergency_off are disjoint by
// their guards, not by table order: check_off additionally requires
// duration < emergencyMs, so MEASURE's emergency row above it never
// shadows the off row below it.
var transitionTable = fsm.Table[*FSM]{
	{From: Off, Guard: (*FSM).checkNoActivity, To: SleepWhileOff, Action: (*FSM).doSleepOff},
	{From: SleepWhileOff, Guard: (*FSM).checkActivity, To: Off},
	{From: SleepWhileOff, Guard: (*FSM).checkNoActivity, To: SleepWhileOff, Action: (*FSM).doSleepWhileOff},

	{From: Off, Guard: (*FSM).checkOn, To: Measure, Action: (*FSM).doStartUpMeasure},
	{From: Measure, Guard: (*FSM).checkPauseDisplay, To: Measure, Action: (*FSM).doPauseDisplay},
	{From: Measure, Guard: (*FSM).checkNewMeasure, To: Measure, Action: (*FSM).doDisplayDistance},

	{From: Measure, Guard: (*FSM).checkNoActivity, To: SleepWhileOn, Action: (*FSM).doSleepWhileMeasure},
	{From: SleepWhileOn, Guard: (*FSM).checkActivityInMeasure, To: Measure},
	{From: SleepWhileOn, Guard: (*FSM).checkNoActivity, To: SleepWhileOn, Action: (*FSM).doSleepWhileOn},

	{From: Measure, Guard: (*FSM).checkEmergencyOn, To: Emergency, Action: (*FSM).doStartEmergency},
	{From: Emergency, Guard: (*FSM).checkEmergencyOff, To: Measure, Action: (*FSM).doStopEmergency},
	{From: Emergency, Guard: (*FSM).checkEmergencyContinue, To: Emergency, Action: (*FSM).doContinueEmergency},

	{From: Measure, Guard: (*FSM).checkOff, To: Off, Action: (*FSM).doStopUrbanite},
}

func (f *FSM) checkOn() bool {
	duration := f.button.DurationMs()
	return duration > 0 && duration >= f.onOffPressMs
}

func (f *FSM) checkOff() bool {
	duration := f.button.DurationMs()
	return duration > 0 && duration >= f.onOffPressMs && duration < f.emergencyMs
}

func (f *FSM) checkEmergencyOn() bool {
	duration := f.button.DurationMs()
	return duration > 0 && duration >= f.emergencyMs
}

func (f *FSM) checkEmergencyContinue() bool {
	return f.emergency
}

func (f *FSM) checkEmergencyOff() bool {
	duration := f.button.DurationMs()
	return duration > 0 && duration >= f.emergencyMs
}

func (f *FSM) checkNewMeasure() bool {
	return f.ultrasound.NewMeasurementReady()
}

func (f *FSM) checkPauseDisplay() bool {
	duration := f.button.DurationMs()
	return duration > 0 && duration < f.onOffPressMs && duration >= f.pauseDisplayMs
}

func (f *FSM) checkActivity() bool {
	return f.ultrasound.CheckActivity() || f.display.CheckActivity() || f.button.CheckActivity()
}

func (f *FSM) checkNoActivity() bool {
	return !f.checkActivity()
}

func (f *FSM) checkActivityInMeasure() bool {
	return f.checkActivity() || f.checkNewMeasure()
}

func (f *FSM) doStartUpMeasure() {
	f.button.ResetDuration()
	f.ultrasound.Start()
	f.display.SetStatus(true)
	f.log.Infof("powered on, measuring")
}

func (f *FSM) doStopUrbanite() {
	f.button.ResetDuration()
	f.ultrasound.Stop()
	f.display.SetStatus(false)
	f.isPaused = false
	f.log.Infof("powered off")
}

func (f *FSM) doPauseDisplay() {
	f.button.ResetDuration()
	f.isPaused = !f.isPaused
	f.display.SetStatus(!f.isPaused)
	f.log.Infof("display paused=%v", f.isPaused)
}

func (f *FSM) doDisplayDistance() {
	distanceCM := int32(f.ultrasound.Distance())

	if f.isPaused {
		if distanceCM < colour.WarningMinCM/2 {
			f.display.SetDistance(distanceCM)
			f.display.SetStatus(true)
		} else {
			f.display.SetStatus(false)
		}
		return
	}
	f.display.SetDistance(distanceCM)
}

func (f *FSM) doStartEmergency() {
	f.button.ResetDuration()
	f.display.SetStatus(true)
	f.ultrasound.Stop()

	f.emergencyAux = true
	f.emergency = true
	f.nextPhaseAt = f.clock.NowMs() + EmergencyFlashPeriodMs
	f.log.Warnf("emergency mode activated")
}

func (f *FSM) doStopEmergency() {
	f.button.ResetDuration()
	f.ultrasound.Start()

	if f.isPaused {
		f.display.SetStatus(false)
	}

	f.emergencyAux = false
	f.emergency = false
	f.log.Infof("emergency mode cleared")
}

// doContinueEmergency drives the emergency flash from a deadline timestamp
// instead of busy-waiting: the original toggles the display colour and
// calls a 1s blocking delay on every fire. Since this FSM is polled from a
// shared cooperative loop, a 1s block here would stall the button,
// ultrasound, and display FSMs too; this instead flips phase only once
// the deadline has passed, letting the loop keep ticking between flashes.
func (f *FSM) doContinueEmergency() {
	if f.clock.NowMs() < f.nextPhaseAt {
		return
	}

	if f.emergencyAux {
		f.display.SetDistance(0)
		f.emergencyAux = false
	} else {
		f.display.SetDistance(500)
		f.emergencyAux = true
	}
	f.nextPhaseAt = f.clock.NowMs() + EmergencyFlashPeriodMs
}

func (f *FSM) doSleepOff() {
	f.clock.Sleep()
}

func (f *FSM) doSleepWhileMeasure() {
	f.clock.Sleep()
}

func (f *FSM) doSleepWhileOff() {
	f.clock.Sleep()
}

func (f *FSM) doSleepWhileOn() {
	f.clock.Sleep()
}

// Fire advances the FSM by one evaluation of its transition table.
func (f *FSM) Fire() bool {
	return f.machine.Fire()
}

// State returns the current state.
func (f *FSM) State() int {
	return f.machine.State()
}

// Paused reports whether the display has been manually paused.
func (f *FSM) Paused() bool {
	return f.isPaused
}

// Emergency reports whether emergency mode is active.
func (f *FSM) Emergency() bool {
	return f.emergency
}
