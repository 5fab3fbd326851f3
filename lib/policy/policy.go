// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"time"
)

// Decision is the stored verdict for a UID.
type Decision int

const (
	// Interactive asks the user on every request.
	Interactive Decision = iota
	Deny
	Allow
)

var decisionNames = [...]string{"interactive", "deny", "allow"}

func (d Decision) String() string {
	if !d.Valid() {
		return fmt.Sprintf("decision(%d)", int(d))
	}
	return decisionNames[d]
}

// Valid reports whether d is one of the defined decisions.
func (d Decision) Valid() bool { return d >= Interactive && d <= Allow }

// ParseDecision accepts "interactive", "deny", or "allow".
func ParseDecision(text string) (Decision, error) {
	for index, name := range decisionNames {
		if name == text {
			return Decision(index), nil
		}
	}
	return 0, fmt.Errorf("policy: unknown decision %q", text)
}

// Policy is the stored authorization for one UID.
type Policy struct {
	UID         int    `cbor:"uid" json:"uid"`
	PackageName string `cbor:"package_name" json:"package_name"`

	// AppName is resolved from the package on every read and never
	// stored.
	AppName string `cbor:"app_name" json:"app_name"`

	Decision Decision `cbor:"decision" json:"decision"`

	// Until is the expiry in unix seconds. Zero never expires.
	Until int64 `cbor:"until" json:"until"`

	Logging      bool `cbor:"logging" json:"logging"`
	Notification bool `cbor:"notification" json:"notification"`
}

// Expired reports whether the policy has a deadline before now.
func (p Policy) Expired(now time.Time) bool {
	return p.Until > 0 && p.Until < now.Unix()
}

// ExpiresAt returns the expiry time, or false for a permanent policy.
func (p Policy) ExpiresAt() (time.Time, bool) {
	if p.Until == 0 {
		return time.Time{}, false
	}
	return time.Unix(p.Until, 0), true
}
