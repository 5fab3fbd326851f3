// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type recorder struct {
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	r := &recorder{}
	if got := RequireReceive(r, ch, time.Second, "value"); got != 7 || len(r.failures) != 0 {
		t.Fatalf("RequireReceive = %d, failures %v", got, r.failures)
	}

	RequireReceive(r, ch, time.Millisecond, "verdict")
	if len(r.failures) != 1 || !strings.HasPrefix(r.failures[0], "verdict: nothing after") {
		t.Fatalf("failures = %v", r.failures)
	}

	close(ch)
	RequireReceive(r, ch, time.Second, "closed")
	if len(r.failures) != 2 || r.failures[1] != "closed: channel closed" {
		t.Fatalf("failures = %v", r.failures)
	}
}

func TestRequireClosedAndOpen(t *testing.T) {
	ch := make(chan struct{})
	r := &recorder{}
	RequireOpen(r, ch, "open")
	RequireClosed(r, ch, time.Millisecond, "pending")
	if len(r.failures) != 1 || !strings.HasPrefix(r.failures[0], "pending: still open") {
		t.Fatalf("failures = %v", r.failures)
	}

	close(ch)
	RequireClosed(r, ch, time.Second, "closed")
	RequireOpen(r, ch, "gone")
	if len(r.failures) != 2 || r.failures[1] != "gone: channel already ready" {
		t.Fatalf("failures = %v", r.failures)
	}
}
