// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"testing"
	"time"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAdvanceRunsDueTimersInOrder(t *testing.T) {
	c := Fake(start)
	var order []string
	c.AfterFunc(20*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "early") })
	c.AfterFunc(time.Minute, func() { order = append(order, "never") })

	c.Advance(9 * time.Second)
	if len(order) != 0 {
		t.Fatalf("timers ran early: %v", order)
	}
	c.Advance(11 * time.Second)
	if !slices.Equal(order, []string{"early", "late"}) {
		t.Fatalf("order = %v, want [early late]", order)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", c.PendingCount())
	}
	if got := c.Now(); !got.Equal(start.Add(20 * time.Second)) {
		t.Fatalf("Now = %v", got)
	}
}

func TestStop(t *testing.T) {
	c := Fake(start)
	ran := false
	timer := c.AfterFunc(time.Minute, func() { ran = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	c.Advance(time.Hour)
	if ran {
		t.Fatal("stopped timer ran")
	}

	fired := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	if fired.Stop() {
		t.Fatal("Stop after the timer ran returned true")
	}
}

func TestNonPositiveDelayRunsImmediately(t *testing.T) {
	c := Fake(start)
	ran := false
	timer := c.AfterFunc(0, func() { ran = true })
	if !ran {
		t.Fatal("AfterFunc(0) did not run f")
	}
	if timer.Stop() || c.PendingCount() != 0 {
		t.Fatal("AfterFunc(0) left a pending timer")
	}
}

func TestWaitForTimers(t *testing.T) {
	c := Fake(start)
	done := make(chan struct{})
	go c.AfterFunc(time.Second, func() { close(done) })

	c.WaitForTimers(1)
	c.Advance(time.Second)
	<-done
	if c.PendingCount() != 0 {
		t.Fatalf("PendingCount after firing = %d, want 0", c.PendingCount())
	}
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("real timer never fired")
	}
}
