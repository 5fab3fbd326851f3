// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Policy expiry, audit log retention, and the interactive prompt
// countdown all depend on wall-clock time. Components take a Clock in
// their config instead of calling the time package directly, so tests
// can drive expiry and timeouts deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine, _ := decision.NewEngine(decision.Config{Clock: c, ...})
//	go engine.Decide(ctx, request)
//	c.WaitForTimers(1)          // prompt countdown registered
//	c.Advance(10 * time.Second) // countdown expires
//
// Production code uses Real().
package clock
