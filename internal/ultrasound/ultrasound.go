// Package ultrasound implements the transceiver FSM of spec §4.3: trigger
// a 10us pulse, time the echo on a 1MHz capture timer, and reduce a
// rolling window of distance samples to a median.
package ultrasound

import (
	"sort"

	"github.com/librescoot/parking-assist/internal/fsm"
	"github.com/librescoot/parking-assist/internal/logger"
	"github.com/librescoot/parking-assist/internal/port"
)

// States, in the order spec §3 lists them.
const (
	WaitStart int = iota
	TriggerStart
	WaitEchoStart
	WaitEchoEnd
	SetDistance
)

// NumMeasurements is the median filter's window size (spec §6).
const NumMeasurements = 5

// FSM measures distance via one ultrasound transceiver and reduces a
// window of NumMeasurements raw samples to a median.
type FSM struct {
	machine *fsm.Machine[*FSM]

	port port.UltrasoundPort
	log  *logger.Logger

	id             uint32
	distanceCM     uint32
	status         bool
	newMeasurement bool
	distances      [NumMeasurements]uint32
	distanceIdx    int
}

// New creates an ultrasound FSM bound to id and backed by p. log may be nil.
func New(id uint32, p port.UltrasoundPort, log *logger.Logger) *FSM {
	p.Init(id)
	u := &FSM{
		port: p,
		log:  log,
		id:   id,
	}
	u.machine = fsm.New(WaitStart, transitionTable, u)
	return u
}

var transitionTable = fsm.Table[*FSM]{
	{From: WaitStart, Guard: (*FSM).checkOn, To: TriggerStart, Action: (*FSM).doStartMeasurement},
	{From: TriggerStart, Guard: (*FSM).checkTriggerEnd, To: WaitEchoStart, Action: (*FSM).doStopTrigger},
	{From: WaitEchoStart, Guard: (*FSM).checkEchoInit, To: WaitEchoEnd},
	{From: WaitEchoEnd, Guard: (*FSM).checkEchoReceived, To: SetDistance, Action: (*FSM).doSetDistance},
	{From: SetDistance, Guard: (*FSM).checkNewMeasurement, To: TriggerStart, Action: (*FSM).doStartMeasurement},
	{From: SetDistance, Guard: (*FSM).checkOff, To: WaitStart, Action: (*FSM).doStopMeasurement},
}

func (u *FSM) checkOn() bool {
	return u.port.TriggerReady(u.id) && u.status
}

func (u *FSM) checkOff() bool {
	return !u.status
}

func (u *FSM) checkTriggerEnd() bool {
	return u.port.TriggerEnd(u.id)
}

func (u *FSM) checkEchoInit() bool {
	return u.port.EchoInitTick(u.id) > 0
}

func (u *FSM) checkEchoReceived() bool {
	return u.port.EchoReceived(u.id)
}

func (u *FSM) checkNewMeasurement() bool {
	return u.port.TriggerReady(u.id)
}

func (u *FSM) doStartMeasurement() {
	if err := u.port.StartMeasurement(u.id); err != nil {
		u.log.Errorf("start measurement on ultrasound %d: %v", u.id, err)
	}
}

func (u *FSM) doStopMeasurement() {
	if err := u.port.StopUltrasound(u.id); err != nil {
		u.log.Errorf("stop ultrasound %d: %v", u.id, err)
	}
}

func (u *FSM) doStopTrigger() {
	u.port.StopTriggerTimer(u.id)
	u.port.SetTriggerEnd(u.id, false)
}

// doSetDistance converts the last echo's capture ticks to centimetres and
// folds the sample into the rolling median window. Wraparound: when the
// end tick is numerically smaller than the init tick, the timer wrapped
// once during the echo, so the elapsed count is reconstructed from the
// distance to the 16-bit modulus; the already-counted wrap is then
// subtracted back out of the overflow tally the ISR kept.
func (u *FSM) doSetDistance() {
	endTick := u.port.EchoEndTick(u.id)
	initTick := u.port.EchoInitTick(u.id)
	overflows := u.port.EchoOverflows(u.id)

	var elapsed uint32
	if endTick >= initTick {
		elapsed = endTick - initTick
	} else {
		elapsed = (port.CaptureTimerModulus - initTick) + endTick
		if overflows > 0 {
			overflows--
		}
	}

	elapsed += overflows * port.CaptureTimerModulus
	distance := uint32((uint64(elapsed) * 10) / 583)

	u.distances[u.distanceIdx] = distance
	u.distanceIdx++
	if u.distanceIdx >= NumMeasurements {
		u.distanceIdx = 0
		u.distanceCM = median(u.distances)
		u.newMeasurement = true
	}

	u.port.StopEchoTimer(u.id)
	u.port.ResetEchoTicks(u.id)
}

func median(samples [NumMeasurements]uint32) uint32 {
	sorted := samples
	s := sorted[:]
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	if NumMeasurements%2 == 0 {
		mid := NumMeasurements / 2
		return (s[mid-1] + s[mid]) / 2
	}
	return s[NumMeasurements/2]
}

// Fire advances the FSM by one evaluation of its transition table.
func (u *FSM) Fire() bool {
	return u.machine.Fire()
}

// State returns the current state.
func (u *FSM) State() int {
	return u.machine.State()
}

// Start arms the sensor: it begins triggering measurements and resets the
// median window.
func (u *FSM) Start() {
	u.status = true
	u.distanceIdx = 0
	u.distanceCM = 0

	u.port.ResetEchoTicks(u.id)
	u.port.SetTriggerReady(u.id, true)
	u.port.StartNewMeasurementTimer(u.id)
}

// Stop disarms the sensor.
func (u *FSM) Stop() {
	u.status = false
	if err := u.port.StopUltrasound(u.id); err != nil {
		u.log.Errorf("stop ultrasound %d: %v", u.id, err)
	}
}

// Status reports whether the sensor is currently armed.
func (u *FSM) Status() bool {
	return u.status
}

// SetStatus forces the armed flag without touching the hardware.
func (u *FSM) SetStatus(status bool) {
	u.status = status
}

// Ready reports whether the trigger timer is due to fire.
func (u *FSM) Ready() bool {
	return u.port.TriggerReady(u.id)
}

// NewMeasurementReady reports whether a fresh median is available.
func (u *FSM) NewMeasurementReady() bool {
	return u.newMeasurement
}

// Distance returns the current median distance in cm and clears the
// new-measurement flag, mirroring the original's one-shot read.
func (u *FSM) Distance() uint32 {
	u.newMeasurement = false
	return u.distanceCM
}

// CheckActivity always reports false: the original leaves this hook
// unimplemented, since the ultrasound sensor has no notion of user
// activity distinct from the distance it reports.
func (u *FSM) CheckActivity() bool {
	return false
}
