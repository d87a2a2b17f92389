package fsm

import "testing"

const (
	stateA = iota
	stateB
	stateC
)

type counter struct {
	machine *Machine[*counter]
	open    bool
	entries int
}

func newCounter() *counter {
	c := &counter{}
	c.machine = New(stateA, Table[*counter]{
		{From: stateA, Guard: func(c *counter) bool { return c.open }, To: stateB, Action: func(c *counter) { c.entries++ }},
		{From: stateA, Guard: func(c *counter) bool { return c.open }, To: stateC},
		{From: stateB, Guard: func(c *counter) bool { return !c.open }, To: stateC},
		{From: stateC, Guard: func(c *counter) bool { return c.open }, To: stateA},
	}, c)
	return c
}

func TestFireTakesFirstMatchingRow(t *testing.T) {
	c := newCounter()
	if c.machine.Fire() {
		t.Fatal("expected no transition while closed")
	}

	c.open = true
	if !c.machine.Fire() {
		t.Fatal("expected a transition once open")
	}
	if c.machine.State() != stateB {
		t.Fatalf("state = %d, want stateB", c.machine.State())
	}
	if c.entries != 1 {
		t.Fatalf("entries = %d, want 1", c.entries)
	}
}

func TestFireNoOpWithoutMatch(t *testing.T) {
	c := newCounter()
	c.machine.SetState(stateC)
	c.open = false
	if c.machine.Fire() {
		t.Fatal("expected no transition: stateC has no row matching a closed guard")
	}
	if c.machine.State() != stateC {
		t.Fatalf("state = %d, want stateC unchanged", c.machine.State())
	}
}

func TestActionRunsBeforeStateChange(t *testing.T) {
	var seenState int
	c := &counter{}
	c.machine = New(stateA, Table[*counter]{
		{From: stateA, Guard: func(c *counter) bool { return true }, To: stateB, Action: func(c *counter) {
			seenState = c.machine.State()
		}},
	}, c)

	c.machine.Fire()
	if seenState != stateA {
		t.Fatalf("action observed state %d, want stateA (action runs before the state change it gates)", seenState)
	}
}
