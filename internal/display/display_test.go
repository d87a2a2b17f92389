package display

import (
	"testing"

	"github.com/librescoot/parking-assist/internal/colour"
	"github.com/librescoot/parking-assist/internal/port/fake"
)

func TestDisplayTransitionTable(t *testing.T) {
	p := fake.NewDisplay()
	d := New(0, p, nil)

	if d.State() != WaitDisplay {
		t.Fatalf("state = %d, want WaitDisplay", d.State())
	}
	if d.CheckActivity() {
		t.Fatal("expected no activity before the display is active")
	}

	d.SetStatus(true)
	if !d.Fire() {
		t.Fatal("expected WAIT_DISPLAY -> SET_DISPLAY once active")
	}
	if d.State() != SetDisplay {
		t.Fatalf("state = %d, want SetDisplay", d.State())
	}
	if got := p.Colour(0); got != colour.Off {
		t.Fatalf("colour on entry = %+v, want Off", got)
	}
	if !d.CheckActivity() {
		t.Fatal("expected activity immediately after activation, before a colour has been set")
	}

	d.SetDistance(0)
	if !d.Fire() {
		t.Fatal("expected SET_DISPLAY -> SET_DISPLAY once a new colour is pending")
	}
	if got := p.Colour(0); got != colour.Red {
		t.Fatalf("colour at 0cm = %+v, want Red", got)
	}
	if d.CheckActivity() {
		t.Fatal("expected no activity once idle with a colour applied")
	}

	d.SetStatus(false)
	if !d.Fire() {
		t.Fatal("expected SET_DISPLAY -> WAIT_DISPLAY once deactivated")
	}
	if d.State() != WaitDisplay {
		t.Fatalf("state = %d, want WaitDisplay", d.State())
	}
	if got := p.Colour(0); got != colour.Off {
		t.Fatalf("colour on exit = %+v, want Off", got)
	}
}
