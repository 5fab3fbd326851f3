// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for expiry checks and countdowns.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a pending AfterFunc. Stop reports whether the call
// was prevented; it returns false once f has started or after an
// earlier Stop.
type Stopper interface {
	Stop() bool
}
