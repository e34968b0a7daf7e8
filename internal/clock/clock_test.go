package clock_test

import (
	"testing"
	"time"

	"savesync/internal/clock"
)

func TestAdvanceFiresTimersInDeadlineOrder(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)

	var order []string
	clk.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	clk.AfterFunc(time.Second, func() { order = append(order, "early") })

	clk.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("unexpected firing order: %v", order)
	}
	if got := clk.Now(); !got.Equal(start.Add(3 * time.Second)) {
		t.Fatalf("clock at %v", got)
	}
}

func TestAdvanceSkipsUnexpiredTimers(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	fired := false
	clk.AfterFunc(time.Minute, func() { fired = true })
	clk.Advance(30 * time.Second)
	if fired {
		t.Fatal("timer fired before its deadline")
	}
	clk.Advance(30 * time.Second)
	if !fired {
		t.Fatal("timer never fired")
	}
}

func TestStoppedTimerDoesNotFire(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	fired := false
	timer := clk.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("first Stop should report the timer was active")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report the timer was already stopped")
	}

	clk.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestAfterDeliversAdvancedTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)

	ch := clk.After(time.Second)
	clk.Advance(time.Second)

	select {
	case got := <-ch:
		if !got.Equal(start.Add(time.Second)) {
			t.Fatalf("delivered %v", got)
		}
	default:
		t.Fatal("channel not ready after advance")
	}
}
