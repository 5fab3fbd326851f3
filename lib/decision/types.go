// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decision

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/suauth/lib/policy"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/sulog"
)

var (
	// ErrSelfRequest is returned for requests from the manager itself.
	ErrSelfRequest = errors.New("decision: request from the manager package")

	// ErrNoPrompter is returned when a request needs the user but no
	// Prompter is configured.
	ErrNoPrompter = errors.New("decision: no prompter configured")
)

// Source says which rule produced a verdict.
type Source int

const (
	SourceRefused Source = iota
	SourceRestricted
	SourceRoot
	SourceCached
	SourceAuto
	SourceUser
	SourceTimeout
	SourceCancelled
	SourceFailed
)

func (s Source) String() string {
	switch s {
	case SourceRefused:
		return "refused"
	case SourceRestricted:
		return "restricted"
	case SourceRoot:
		return "root"
	case SourceCached:
		return "cached"
	case SourceAuto:
		return "auto"
	case SourceUser:
		return "user"
	case SourceTimeout:
		return "timeout"
	case SourceCancelled:
		return "cancelled"
	case SourceFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Silent reports whether verdicts from this source skip auditing and
// notification.
func (s Source) Silent() bool {
	return s == SourceRestricted || s == SourceRoot
}

// Request is one root request as received from the broker.
type Request struct {
	UID     int
	PID     int
	ToUID   int
	Command string

	// Timeout reports whether the broker allows a countdown on the
	// prompt. When false the prompt waits for the user indefinitely.
	Timeout bool

	// Gone closes when the broker removes the request socket. Nil
	// means the peer is never considered gone.
	Gone <-chan struct{}
}

// Result is the verdict for a Request.
type Result struct {
	Allow  bool
	Source Source

	// Policy is the effective policy. Zero for silent verdicts and for
	// requests whose package could not be resolved.
	Policy policy.Policy

	// Err explains Refused and Failed verdicts.
	Err error
}

// PromptRequest is what the user is shown.
type PromptRequest struct {
	UID         int
	PackageName string
	AppName     string
	Command     string

	// Timeout is the countdown length, zero for none.
	Timeout time.Duration
}

// Action is the user's answer to a prompt.
type Action struct {
	Allow bool

	// Minutes selects persistence: -1 applies once, 0 remembers
	// forever, and a positive value remembers for that many minutes.
	Minutes int
}

// MinutesOnce marks an Action that is not remembered.
const MinutesOnce = -1

// RememberChoices lists the minute values offered to the user.
var RememberChoices = []int{0, MinutesOnce, 10, 20, 30, 60}

// Notification announces a verdict to the user.
type Notification struct {
	UID         int
	PackageName string
	AppName     string
	Granted     bool
	Type        sudb.NotificationType
}

// Prompter asks the user to decide a request. It must return when ctx
// is cancelled.
type Prompter interface {
	Prompt(ctx context.Context, request PromptRequest) (Action, error)
}

// Notifier presents a verdict notification.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// PolicyStore is the subset of policy.Store the engine needs.
type PolicyStore interface {
	Get(ctx context.Context, uid int) (*policy.Policy, error)
	Upsert(ctx context.Context, p policy.Policy) error
	Delete(ctx context.Context, uid int) error
}

// AuditLog receives one entry per audited verdict.
type AuditLog interface {
	Append(ctx context.Context, entry sulog.Entry) error
}

// SettingsSource supplies the settings snapshot for each request.
// *sudb.DB implements it.
type SettingsSource interface {
	LoadSettings(ctx context.Context, defaults sudb.Settings) sudb.Settings
}
