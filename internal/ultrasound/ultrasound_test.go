package ultrasound

import (
	"testing"

	"github.com/librescoot/parking-assist/internal/port/fake"
)

func TestDoSetDistanceWithoutWrap(t *testing.T) {
	p := fake.NewUltrasound()
	u := New(0, p, nil)

	p.SetEchoInitTick(0, 1000)
	p.SetEchoEndTick(0, 1583)
	p.SetEchoReceived(0, true)

	u.doSetDistance()

	if u.distances[0] != 10 {
		t.Fatalf("distance sample = %d, want 10", u.distances[0])
	}
}

func TestDoSetDistanceAcrossWrap(t *testing.T) {
	p := fake.NewUltrasound()
	u := New(0, p, nil)

	// Timer wraps between init and end: init near the top of the
	// counter, end just after wraparound, with one recorded overflow
	// that the wrap itself accounts for.
	p.SetEchoInitTick(0, 65500)
	p.SetEchoEndTick(0, 583)
	p.SetEchoOverflows(0, 1)
	p.SetEchoReceived(0, true)

	u.doSetDistance()

	// elapsed = (65536-65500) + 583 = 619, overflows decremented to 0
	if u.distances[0] != uint32((619*10)/583) {
		t.Fatalf("distance sample = %d, want %d", u.distances[0], uint32((619*10)/583))
	}
}

func TestMedianOfFiveSamples(t *testing.T) {
	p := fake.NewUltrasound()
	u := New(0, p, nil)

	samples := []uint32{30, 10, 50, 20, 40}
	for _, s := range samples {
		p.SetEchoInitTick(0, 0)
		elapsed := uint64(s) * 583 / 10
		p.SetEchoEndTick(0, uint32(elapsed))
		p.SetEchoReceived(0, true)
		u.doSetDistance()
		p.ResetEchoTicks(0)
	}

	if !u.NewMeasurementReady() {
		t.Fatal("expected a new measurement after filling the window")
	}
	if got, want := u.Distance(), uint32(30); got != want {
		t.Fatalf("median distance = %d, want %d", got, want)
	}
	if u.NewMeasurementReady() {
		t.Fatal("expected NewMeasurementReady to clear after Distance()")
	}
}

func TestUltrasoundTransitionTable(t *testing.T) {
	p := fake.NewUltrasound()
	u := New(0, p, nil)
	u.Start()

	if u.State() != WaitStart {
		t.Fatalf("state = %d, want WaitStart", u.State())
	}

	if !u.Fire() {
		t.Fatal("expected WAIT_START -> TRIGGER_START once trigger ready and armed")
	}
	if u.State() != TriggerStart {
		t.Fatalf("state = %d, want TriggerStart", u.State())
	}

	p.SetTriggerEnd(0, true)
	if !u.Fire() {
		t.Fatal("expected TRIGGER_START -> WAIT_ECHO_START once trigger pulse ends")
	}
	if u.State() != WaitEchoStart {
		t.Fatalf("state = %d, want WaitEchoStart", u.State())
	}

	p.SetEchoInitTick(0, 100)
	if !u.Fire() {
		t.Fatal("expected WAIT_ECHO_START -> WAIT_ECHO_END once echo rises")
	}
	if u.State() != WaitEchoEnd {
		t.Fatalf("state = %d, want WaitEchoEnd", u.State())
	}

	p.SetEchoEndTick(0, 683)
	p.SetEchoReceived(0, true)
	if !u.Fire() {
		t.Fatal("expected WAIT_ECHO_END -> SET_DISTANCE once echo falls")
	}
	if u.State() != SetDistance {
		t.Fatalf("state = %d, want SetDistance", u.State())
	}

	u.Stop()
	if !u.Fire() {
		t.Fatal("expected SET_DISTANCE -> WAIT_START once disarmed")
	}
	if u.State() != WaitStart {
		t.Fatalf("state = %d, want WaitStart", u.State())
	}
}

func TestCheckActivityAlwaysFalse(t *testing.T) {
	p := fake.NewUltrasound()
	u := New(0, p, nil)
	u.Start()
	if u.CheckActivity() {
		t.Fatal("ultrasound never reports activity, even while armed")
	}
}
