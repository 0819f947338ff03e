package looptest

import (
	"testing"
	"time"
)

func TestManual_AdvanceFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	cancel := m.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	cancel()

	m.Advance(25 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected fired timers: %v", got)
	}
	m.Advance(10 * time.Millisecond)
	if len(got) != 2 || got[1] != "c" {
		t.Fatalf("unexpected fired timers: %v", got)
	}
	if m.Now() != 35*time.Millisecond {
		t.Fatalf("unexpected clock: %s", m.Now())
	}
	if m.PendingTimers() != 0 {
		t.Fatalf("unexpected pending timers: %d", m.PendingTimers())
	}
}

func TestManual_TimerArmedFromTimer(t *testing.T) {
	m := NewManual()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			m.AfterFunc(5*time.Millisecond, tick)
		}
	}
	m.AfterFunc(5*time.Millisecond, tick)
	m.Advance(100 * time.Millisecond)
	if count != 3 {
		t.Fatalf("unexpected tick count: %d", count)
	}
}
