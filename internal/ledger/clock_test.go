package ledger

import "testing"

func TestClockLocalAndSendEvent(t *testing.T) {
	c := NewClock()

	if v := c.LocalEvent(); v != 1 {
		t.Fatalf("LocalEvent = %d, want 1", v)
	}
	if v := c.SendEvent(); v != 2 {
		t.Fatalf("SendEvent = %d, want 2", v)
	}
	if c.Value() != 2 {
		t.Fatalf("Value = %d, want 2", c.Value())
	}
}

func TestClockRecvEventTakesMax(t *testing.T) {
	c := NewClock()
	c.SendEvent() // clock = 1

	if v := c.RecvEvent(5); v != 6 {
		t.Fatalf("RecvEvent(5) = %d, want 6 (max(1,5)+1)", v)
	}

	// A remote timestamp lower than our clock still bumps by one.
	if v := c.RecvEvent(2); v != 7 {
		t.Fatalf("RecvEvent(2) = %d, want 7 (max(6,2)+1)", v)
	}
}

func TestClockMonotonic(t *testing.T) {
	c := NewClock()
	prev := c.Value()
	ops := []func() uint64{
		c.LocalEvent,
		c.SendEvent,
		func() uint64 { return c.RecvEvent(0) },
		func() uint64 { return c.RecvEvent(100) },
	}
	for _, op := range ops {
		v := op()
		if v <= prev {
			t.Fatalf("clock did not increase: prev=%d, new=%d", prev, v)
		}
		prev = v
	}
}
