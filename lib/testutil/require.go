// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "time"

// T is the part of testing.TB the channel helpers use, so they also
// work with a recording fake in their own tests.
type T interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch. It fails the test if
// ch is closed or nothing arrives within timeout; what names the
// awaited event in the failure.
//
//	verdict := testutil.RequireReceive(t, results, 5*time.Second, "waiting for verdict")
func RequireReceive[V any](t T, ch <-chan V, timeout time.Duration, what string) V {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", what)
		}
		return value
	case <-deadline.C:
		t.Fatalf("%s: nothing after %v", what, timeout)
	}
	var zero V
	return zero
}

// RequireClosed fails the test unless ch is closed (or delivers)
// within timeout.
func RequireClosed(t T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-ch:
	case <-deadline.C:
		t.Fatalf("%s: still open after %v", what, timeout)
	}
}

// RequireOpen fails the test if ch is ready right now.
func RequireOpen(t T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s: channel already ready", what)
	default:
	}
}
