package button

import (
	"testing"

	"github.com/librescoot/parking-assist/internal/port/fake"
)

func TestButtonClassifiesCleanPress(t *testing.T) {
	p := fake.NewButton()
	clock := &fake.Clock{}
	b := New(0, p, clock, nil)

	if b.State() != Released {
		t.Fatalf("initial state = %d, want Released", b.State())
	}

	p.Push(0, true)
	if !b.Fire() {
		t.Fatal("expected transition to PressedWait on press")
	}
	if b.State() != PressedWait {
		t.Fatalf("state = %d, want PressedWait", b.State())
	}

	if b.Fire() {
		t.Fatal("expected no transition before debounce window elapses")
	}

	clock.Advance(DebounceMs)
	if !b.Fire() {
		t.Fatal("expected transition to Pressed once debounced")
	}
	if b.State() != Pressed {
		t.Fatalf("state = %d, want Pressed", b.State())
	}

	clock.Advance(500)
	p.Push(0, false)
	if !b.Fire() {
		t.Fatal("expected transition to ReleasedWait on release")
	}
	// The press began at the PressedWait entry, so the debounce window
	// counts towards the duration.
	if got, want := b.DurationMs(), uint32(DebounceMs+500); got != want {
		t.Fatalf("duration = %d, want %d", got, want)
	}

	clock.Advance(DebounceMs)
	if !b.Fire() {
		t.Fatal("expected transition back to Released once debounced")
	}
	if b.State() != Released {
		t.Fatalf("state = %d, want Released", b.State())
	}
	if got, want := b.DurationMs(), uint32(DebounceMs+500); got != want {
		t.Fatalf("duration after release = %d, want %d (unchanged until ResetDuration)", got, want)
	}

	b.ResetDuration()
	if b.DurationMs() != 0 {
		t.Fatal("expected duration to be zero after ResetDuration")
	}
}

func TestButtonCheckActivity(t *testing.T) {
	p := fake.NewButton()
	clock := &fake.Clock{}
	b := New(0, p, clock, nil)

	if b.CheckActivity() {
		t.Fatal("expected no activity while Released")
	}

	p.Push(0, true)
	b.Fire()
	if !b.CheckActivity() {
		t.Fatal("expected activity once debouncing a press")
	}
}
