// Package fake provides in-memory port.Clock, port.ButtonPort,
// port.UltrasoundPort, and port.DisplayPort implementations for tests,
// mirroring the role the teacher's mockHardwareIO plays for VehicleSystem
// tests.
package fake

import "github.com/librescoot/parking-assist/internal/port"

// Clock is a manually-advanced stand-in for a monotonic millisecond
// clock. Sleep is a no-op: tests advance time explicitly instead of
// blocking.
type Clock struct {
	Ms      uint32
	Slept   int
	OnSleep func()
}

func (c *Clock) NowMs() uint32 { return c.Ms }

func (c *Clock) Sleep() {
	c.Slept++
	if c.OnSleep != nil {
		c.OnSleep()
	}
}

// Advance moves the clock forward by deltaMs.
func (c *Clock) Advance(deltaMs uint32) {
	c.Ms += deltaMs
}

// Button is an in-memory port.ButtonPort backed by a raw line level and
// the mirrored edge flag a real ISR would set.
type Button struct {
	initialized map[uint32]bool
	lines       map[uint32]bool
	pressed     map[uint32]bool
}

func NewButton() *Button {
	return &Button{
		initialized: make(map[uint32]bool),
		lines:       make(map[uint32]bool),
		pressed:     make(map[uint32]bool),
	}
}

func (b *Button) Init(id uint32) { b.initialized[id] = true }

func (b *Button) Pressed(id uint32) bool { return b.pressed[id] }

func (b *Button) SetPressed(id uint32, pressed bool) { b.pressed[id] = pressed }

func (b *Button) Value(id uint32) (bool, error) { return b.lines[id], nil }

// Push sets both the raw line and the mirrored flag, as a real edge
// handler would on press.
func (b *Button) Push(id uint32, down bool) {
	b.lines[id] = down
	b.pressed[id] = down
}

// Ultrasound is an in-memory port.UltrasoundPort. Echo fields are set by
// tests the way an edge-triggered ISR would: SetEchoInitTick, then
// SetEchoEndTick, then SetEchoReceived.
type Ultrasound struct {
	initialized map[uint32]bool

	triggerReady map[uint32]bool
	triggerEnd   map[uint32]bool

	echoInitTick   map[uint32]uint32
	echoEndTick    map[uint32]uint32
	echoOverflows  map[uint32]uint32
	echoReceived   map[uint32]bool

	// lastEdge records the ordering contract an echo capture must obey:
	// init before end before received. Tests that violate it fail loudly
	// rather than silently computing a bogus distance, documenting the
	// ISR's sequencing invariant that the real adapter also depends on.
	lastEdge map[uint32]string
}

func NewUltrasound() *Ultrasound {
	return &Ultrasound{
		initialized:   make(map[uint32]bool),
		triggerReady:  make(map[uint32]bool),
		triggerEnd:    make(map[uint32]bool),
		echoInitTick:  make(map[uint32]uint32),
		echoEndTick:   make(map[uint32]uint32),
		echoOverflows: make(map[uint32]uint32),
		echoReceived:  make(map[uint32]bool),
		lastEdge:      make(map[uint32]string),
	}
}

func (u *Ultrasound) Init(id uint32) { u.initialized[id] = true }

func (u *Ultrasound) StartMeasurement(id uint32) error {
	u.triggerReady[id] = false
	u.triggerEnd[id] = true
	return nil
}

func (u *Ultrasound) StartNewMeasurementTimer(id uint32) {}
func (u *Ultrasound) StopNewMeasurementTimer(id uint32)  {}
func (u *Ultrasound) StopEchoTimer(id uint32)            {}
func (u *Ultrasound) StopTriggerTimer(id uint32)         {}

func (u *Ultrasound) StopUltrasound(id uint32) error {
	u.triggerReady[id] = false
	u.triggerEnd[id] = false
	return nil
}

func (u *Ultrasound) EchoInitTick(id uint32) uint32 { return u.echoInitTick[id] }

func (u *Ultrasound) SetEchoInitTick(id uint32, tick uint32) {
	u.echoInitTick[id] = tick
	u.lastEdge[id] = "init"
}

func (u *Ultrasound) EchoEndTick(id uint32) uint32 { return u.echoEndTick[id] }

func (u *Ultrasound) SetEchoEndTick(id uint32, tick uint32) {
	if u.lastEdge[id] != "init" {
		panic("fake: echo end tick set before echo init tick")
	}
	u.echoEndTick[id] = tick
	u.lastEdge[id] = "end"
}

func (u *Ultrasound) EchoOverflows(id uint32) uint32 { return u.echoOverflows[id] }

func (u *Ultrasound) SetEchoOverflows(id uint32, n uint32) { u.echoOverflows[id] = n }

func (u *Ultrasound) EchoReceived(id uint32) bool { return u.echoReceived[id] }

func (u *Ultrasound) SetEchoReceived(id uint32, received bool) {
	if received && u.lastEdge[id] != "end" {
		panic("fake: echo received set before echo end tick")
	}
	u.echoReceived[id] = received
}

func (u *Ultrasound) ResetEchoTicks(id uint32) {
	u.echoInitTick[id] = 0
	u.echoEndTick[id] = 0
	u.echoOverflows[id] = 0
	u.echoReceived[id] = false
	u.lastEdge[id] = ""
}

func (u *Ultrasound) TriggerEnd(id uint32) bool { return u.triggerEnd[id] }

func (u *Ultrasound) SetTriggerEnd(id uint32, done bool) { u.triggerEnd[id] = done }

func (u *Ultrasound) TriggerReady(id uint32) bool { return u.triggerReady[id] }

func (u *Ultrasound) SetTriggerReady(id uint32, ready bool) { u.triggerReady[id] = ready }

// Display is an in-memory port.DisplayPort recording the last colour set.
type Display struct {
	initialized map[uint32]bool
	colours     map[uint32]port.RGB
}

func NewDisplay() *Display {
	return &Display{
		initialized: make(map[uint32]bool),
		colours:     make(map[uint32]port.RGB),
	}
}

func (d *Display) Init(id uint32) { d.initialized[id] = true }

func (d *Display) SetRGB(id uint32, c port.RGB) error { d.colours[id] = c; return nil }

// Colour returns the last colour SetRGB recorded for id.
func (d *Display) Colour(id uint32) port.RGB { return d.colours[id] }
