package urbanite

import (
	"testing"

	"github.com/librescoot/parking-assist/internal/button"
	"github.com/librescoot/parking-assist/internal/colour"
	"github.com/librescoot/parking-assist/internal/display"
	"github.com/librescoot/parking-assist/internal/port/fake"
	"github.com/librescoot/parking-assist/internal/ultrasound"
)

const (
	onOffMs     = 1000
	pauseMs     = 250
	emergencyMs = 3000
)

type harness struct {
	clock      *fake.Clock
	buttonPort *fake.Button
	ultraPort  *fake.Ultrasound
	dispPort   *fake.Display

	button     *button.FSM
	ultrasound *ultrasound.FSM
	display    *display.FSM
	urbanite   *FSM
}

func newHarness() *harness {
	h := &harness{
		clock:      &fake.Clock{},
		buttonPort: fake.NewButton(),
		ultraPort:  fake.NewUltrasound(),
		dispPort:   fake.NewDisplay(),
	}
	h.button = button.New(0, h.buttonPort, h.clock, nil)
	h.ultrasound = ultrasound.New(0, h.ultraPort, nil)
	h.display = display.New(0, h.dispPort, nil)
	h.urbanite = New(h.clock, h.button, h.ultrasound, h.display, onOffMs, pauseMs, emergencyMs, nil)
	return h
}

// step fires all four FSMs once, in the order cmd/parking-assist's main
// loop does: leaves first, master last, so the master sees each leaf's
// freshly-updated state within the same cycle it runs in.
func (h *harness) step() {
	h.button.Fire()
	h.ultrasound.Fire()
	h.display.Fire()
	h.urbanite.Fire()
}

// press holds the button down for button.DebounceMs plus durationMs of
// simulated time, then releases it, so the button FSM classifies a press
// of DebounceMs+durationMs. The urbanite-visible step happens immediately on the
// release edge, while the button FSM is still in RELEASED_WAIT (and so
// still reports activity) — duration_ms is set on entry to that state,
// before its own debounce to RELEASED completes. A master FSM polled
// every tick, as here, observes check_on/check_off in that window,
// exactly as the original's table-scan does.
func (h *harness) press(t *testing.T, durationMs uint32) {
	t.Helper()

	h.buttonPort.Push(0, true)
	h.step()
	h.clock.Advance(button.DebounceMs)
	h.step() // PRESSED_WAIT -> PRESSED

	h.clock.Advance(durationMs)

	h.buttonPort.Push(0, false)
	h.step() // PRESSED -> RELEASED_WAIT; duration_ms set; urbanite sees it now

	h.clock.Advance(button.DebounceMs)
	h.step() // RELEASED_WAIT -> RELEASED
}

// measure drives the armed ultrasound FSM forward until a fresh median of
// distanceCM is ready, bypassing step() so the button, display, and
// urbanite FSMs are left untouched until the caller explicitly advances
// them. It feeds whatever edge the FSM's current state is waiting on
// rather than assuming a fixed starting state, since press() can leave
// the ultrasound FSM mid-cycle (its own Fire already ran once, against
// the prior cycle's stale data, inside the same step() that armed it).
// initTick is kept nonzero (checkEchoInit requires a nonzero tick), and
// endTick is offset by the same amount so endTick-initTick still yields
// distanceCM through the elapsed*10/583 formula.
func (h *harness) measure(t *testing.T, distanceCM uint32) {
	t.Helper()

	const initTick = uint32(1)
	elapsed := uint64(distanceCM) * 583 / 10
	endTick := initTick + uint32(elapsed)

	const maxFires = 8 * ultrasound.NumMeasurements
	for i := 0; !h.ultrasound.NewMeasurementReady(); i++ {
		if i >= maxFires {
			t.Fatalf("measure: median window never filled after %d fires", maxFires)
		}
		switch h.ultrasound.State() {
		case ultrasound.WaitStart, ultrasound.SetDistance:
			h.ultraPort.SetTriggerReady(0, true)
		case ultrasound.WaitEchoStart:
			h.ultraPort.SetEchoInitTick(0, initTick)
		case ultrasound.WaitEchoEnd:
			h.ultraPort.SetEchoEndTick(0, endTick)
			h.ultraPort.SetEchoReceived(0, true)
		}
		h.ultrasound.Fire()
	}
}

func TestColdStartToArm(t *testing.T) {
	h := newHarness()

	h.press(t, 1200)

	if h.urbanite.State() != Measure {
		t.Fatalf("state = %d, want Measure", h.urbanite.State())
	}
	if !h.ultrasound.Status() {
		t.Fatal("expected ultrasound armed")
	}
	if !h.display.Status() {
		t.Fatal("expected display enabled")
	}
}

func TestPauseToggle(t *testing.T) {
	h := newHarness()
	h.press(t, 1200)

	h.press(t, 300)
	if !h.urbanite.Paused() {
		t.Fatal("expected paused after first short press")
	}
	if h.display.Status() {
		t.Fatal("expected display disabled while paused")
	}

	h.press(t, 300)
	if h.urbanite.Paused() {
		t.Fatal("expected unpaused after second short press")
	}
}

func TestEmergencyInAndOut(t *testing.T) {
	h := newHarness()
	h.press(t, 1200)

	h.press(t, 3200)
	if h.urbanite.State() != Emergency {
		t.Fatalf("state = %d, want Emergency", h.urbanite.State())
	}
	if h.ultrasound.Status() {
		t.Fatal("expected ultrasound stopped during emergency")
	}

	// doContinueEmergency runs as urbanite's action, the last FSM fired
	// in step(); the distance it sets is only rendered on the display's
	// next Fire, so flush that explicitly before checking the colour.
	h.clock.Advance(EmergencyFlashPeriodMs)
	h.step()
	h.display.Fire()
	if got, want := h.dispPort.Colour(0), colour.ForDistance(0); got != want {
		t.Fatalf("emergency flash colour = %+v, want %+v (distance 0)", got, want)
	}

	h.clock.Advance(EmergencyFlashPeriodMs)
	h.step()
	h.display.Fire()
	if got, want := h.dispPort.Colour(0), colour.ForDistance(500); got != want {
		t.Fatalf("emergency flash colour = %+v, want %+v (distance 500)", got, want)
	}

	// The release edge takes the master back to Measure; on the closing
	// debounce step of press() nothing is active (the display already
	// shows its last flash colour and no sample is pending), so it sleeps.
	h.press(t, 3200)
	if h.urbanite.State() != SleepWhileOn {
		t.Fatalf("state = %d, want SleepWhileOn", h.urbanite.State())
	}
	if !h.ultrasound.Status() {
		t.Fatal("expected ultrasound restarted after leaving emergency")
	}
}

// TestPauseCollisionOverride checks the pause collision alert: a
// measurement well under WarningMinCM/2 re-enables the display even
// while the user has paused it, and normal distances leave it off.
func TestPauseCollisionOverride(t *testing.T) {
	h := newHarness()
	h.press(t, 1200) // power on
	h.press(t, 300)  // pause

	if !h.urbanite.Paused() {
		t.Fatal("expected paused")
	}

	h.measure(t, 10) // well under WarningMinCM/2 (12cm)
	h.step()         // pausing left nothing active, so this wakes the master from SleepWhileOn
	h.step()         // Measure consumes the sample and re-enables the display
	h.display.Fire() // WaitDisplay -> SetDisplay (doSetOn)
	h.display.Fire() // SetDisplay -> SetDisplay (doSetColour)

	if !h.display.Status() {
		t.Fatal("expected display re-enabled by the pause collision override")
	}
	if got, want := h.dispPort.Colour(0), colour.ForDistance(10); got != want {
		t.Fatalf("collision override colour = %+v, want %+v (distance 10)", got, want)
	}

	h.measure(t, 100) // clear of the override threshold again
	h.step()
	h.display.Fire() // SetDisplay -> WaitDisplay (doSetOff)

	if h.display.Status() {
		t.Fatal("expected display disabled again once clear of the collision threshold")
	}
}

func TestPowerOff(t *testing.T) {
	h := newHarness()
	h.press(t, 1200)

	// The release edge takes the master to Off; on the closing debounce
	// step of press() nothing is active, so it sleeps in the off state.
	h.press(t, 1500)
	if h.urbanite.State() != SleepWhileOff {
		t.Fatalf("state = %d, want SleepWhileOff", h.urbanite.State())
	}
	if h.display.Status() {
		t.Fatal("expected display disabled after power off")
	}
	if h.ultrasound.Status() {
		t.Fatal("expected ultrasound stopped after power off")
	}
}
