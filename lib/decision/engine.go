// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/pkginfo"
	"github.com/bureau-foundation/suauth/lib/policy"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/sulog"
)

// Config holds the collaborators of an Engine.
type Config struct {
	Policies PolicyStore
	Resolver pkginfo.Resolver
	Settings SettingsSource

	// Defaults apply to every setting the store does not override.
	Defaults sudb.Settings

	// ManagerUID is the manager's own UID. Requests from its app id
	// are refused. Zero disables the check.
	ManagerUID int

	// ManagerPackage is the manager package id. The requester string
	// setting overrides it when set.
	ManagerPackage string

	// AuditLog, Prompter, and Notifier are optional. Without a
	// Prompter every interactive request fails closed.
	AuditLog AuditLog
	Prompter Prompter
	Notifier Notifier

	Clock  clock.Clock
	Logger *slog.Logger
}

// Engine decides root requests. It is safe for concurrent use.
type Engine struct {
	policies       PolicyStore
	resolver       pkginfo.Resolver
	settings       SettingsSource
	defaults       sudb.Settings
	managerUID     int
	managerPackage string
	auditLog       AuditLog
	prompter       Prompter
	notifier       Notifier
	clock          clock.Clock
	logger         *slog.Logger

	mu      sync.Mutex
	pending map[int]*pendingDecision
	waiting int
}

type pendingDecision struct {
	done   chan struct{}
	result Result
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Policies == nil {
		return nil, errors.New("decision: Policies is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("decision: Resolver is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("decision: Settings is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		policies:       cfg.Policies,
		resolver:       cfg.Resolver,
		settings:       cfg.Settings,
		defaults:       cfg.Defaults,
		managerUID:     cfg.ManagerUID,
		managerPackage: cfg.ManagerPackage,
		auditLog:       cfg.AuditLog,
		prompter:       cfg.Prompter,
		notifier:       cfg.Notifier,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		pending:        make(map[int]*pendingDecision),
	}, nil
}

// Pending returns the number of requests currently being decided.
// Requests waiting on another request's verdict are not counted.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Waiting returns the number of requests blocked on another request's
// verdict for the same UID.
func (e *Engine) Waiting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiting
}

// Decide resolves request. It always returns a verdict; failures deny.
func (e *Engine) Decide(ctx context.Context, request Request) Result {
	settings := e.settings.LoadSettings(ctx, e.defaults)

	if request.UID == pkginfo.RootUID {
		return Result{Allow: true, Source: SourceRoot}
	}
	key, restricted := restrict(request.UID, settings)
	if restricted {
		e.logger.Info("root request restricted by settings",
			"uid", request.UID,
			"root_access", settings.RootAccess.String(),
			"multiuser_mode", settings.MultiuserMode.String(),
		)
		return Result{Source: SourceRestricted}
	}

	for {
		e.mu.Lock()
		existing, ok := e.pending[key]
		if !ok {
			owned := &pendingDecision{done: make(chan struct{})}
			e.pending[key] = owned
			e.mu.Unlock()
			return e.own(ctx, request, key, settings, owned)
		}
		e.mu.Unlock()

		result, retry := e.follow(ctx, request, existing)
		if !retry {
			e.finish(ctx, request, result, settings, false)
			return result
		}
	}
}

// own decides request on behalf of every request sharing key.
func (e *Engine) own(ctx context.Context, request Request, key int, settings sudb.Settings, owned *pendingDecision) Result {
	result := e.resolve(ctx, request, key, settings)

	e.mu.Lock()
	delete(e.pending, key)
	e.mu.Unlock()
	owned.result = result
	close(owned.done)

	e.logger.Info("root request decided",
		"uid", request.UID,
		"pid", request.PID,
		"package", result.Policy.PackageName,
		"allow", result.Allow,
		"source", result.Source.String(),
		"error", result.Err,
	)
	e.finish(ctx, request, result, settings, true)
	return result
}

// follow waits for another request's verdict. retry is true when that
// request was cancelled and this one should try to take over.
func (e *Engine) follow(ctx context.Context, request Request, existing *pendingDecision) (result Result, retry bool) {
	e.mu.Lock()
	e.waiting++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.waiting--
		e.mu.Unlock()
	}()

	select {
	case <-existing.done:
		if existing.result.Source == SourceCancelled {
			return Result{}, true
		}
		return existing.result, false
	case <-request.Gone:
		return Result{Source: SourceCancelled, Err: errors.New("decision: requester went away")}, false
	case <-ctx.Done():
		return Result{Source: SourceCancelled, Err: ctx.Err()}, false
	}
}

// restrict applies the root access and multiuser settings. It returns
// the UID policy is evaluated under, or restricted=true.
func restrict(uid int, settings sudb.Settings) (key int, restricted bool) {
	switch settings.RootAccess {
	case sudb.RootAccessDisabled:
		return 0, true
	case sudb.RootAccessAppsOnly:
		if uid == pkginfo.ShellUID {
			return 0, true
		}
	case sudb.RootAccessAdbOnly:
		if uid != pkginfo.ShellUID {
			return 0, true
		}
	}

	if settings.MultiuserMode == sudb.MultiuserOwnerOnly && pkginfo.UserID(uid) != 0 {
		return 0, true
	}
	return PolicyKey(uid, settings), false
}

// PolicyKey returns the UID a stored policy for uid is filed under:
// the app id when the owner manages every user, else uid itself.
func PolicyKey(uid int, settings sudb.Settings) int {
	if settings.MultiuserMode == sudb.MultiuserOwnerManaged {
		return pkginfo.AppID(uid)
	}
	return uid
}

func (e *Engine) managerPackageName(settings sudb.Settings) string {
	if settings.Requester != "" {
		return settings.Requester
	}
	return e.managerPackage
}

// resolve runs the self-request, package, cached, auto, and prompt
// rules for the owner of key.
func (e *Engine) resolve(ctx context.Context, request Request, key int, settings sudb.Settings) Result {
	if e.managerUID > 0 && pkginfo.AppID(request.UID) == pkginfo.AppID(e.managerUID) {
		return Result{Source: SourceRefused, Err: ErrSelfRequest}
	}

	pkg, err := e.resolver.Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, pkginfo.ErrUnknownUID) {
			if deleteErr := e.policies.Delete(ctx, key); deleteErr != nil {
				e.logger.Warn("deleting policy of unknown uid failed", "uid", key, "error", deleteErr)
			}
		}
		return Result{Source: SourceFailed, Err: fmt.Errorf("decision: resolving uid %d: %w", key, err)}
	}
	if pkg.Name == e.managerPackageName(settings) {
		return Result{Source: SourceRefused, Err: ErrSelfRequest}
	}

	cached, err := e.policies.Get(ctx, key)
	if err != nil {
		e.logger.Warn("reading policy failed, treating as absent", "uid", key, "error", err)
		cached = nil
	}

	current := policy.Policy{
		UID:          key,
		PackageName:  pkg.Name,
		AppName:      pkg.Label,
		Decision:     policy.Interactive,
		Logging:      true,
		Notification: true,
	}
	if cached != nil {
		if cached.Decision != policy.Interactive {
			return Result{Allow: cached.Decision == policy.Allow, Source: SourceCached, Policy: *cached}
		}
		current.Logging = cached.Logging
		current.Notification = cached.Notification
	}

	switch settings.AutoResponse {
	case sudb.AutoResponseDeny:
		current.Decision = policy.Deny
		return Result{Source: SourceAuto, Policy: current}
	case sudb.AutoResponseAllow:
		current.Decision = policy.Allow
		return Result{Allow: true, Source: SourceAuto, Policy: current}
	}

	return e.prompt(ctx, request, settings, current)
}

type promptOutcome struct {
	action Action
	err    error
}

// prompt asks the user and persists the answer. The prompt races the
// countdown, the requester going away, and ctx.
func (e *Engine) prompt(ctx context.Context, request Request, settings sudb.Settings, current policy.Policy) Result {
	if e.prompter == nil {
		return Result{Source: SourceFailed, Policy: current, Err: ErrNoPrompter}
	}

	var timeout time.Duration
	if request.Timeout && settings.RequestTimeout > 0 {
		timeout = time.Duration(settings.RequestTimeout) * time.Second
	}

	promptContext, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan promptOutcome, 1)
	go func() {
		action, err := e.prompter.Prompt(promptContext, PromptRequest{
			UID:         request.UID,
			PackageName: current.PackageName,
			AppName:     current.AppName,
			Command:     request.Command,
			Timeout:     timeout,
		})
		outcomes <- promptOutcome{action: action, err: err}
	}()

	expired := make(chan struct{})
	if timeout > 0 {
		timer := e.clock.AfterFunc(timeout, func() { close(expired) })
		defer timer.Stop()
	}

	select {
	case outcome := <-outcomes:
		if ctx.Err() != nil {
			return Result{Source: SourceCancelled, Policy: current, Err: ctx.Err()}
		}
		if outcome.err != nil {
			return Result{Source: SourceFailed, Policy: current, Err: fmt.Errorf("decision: prompt: %w", outcome.err)}
		}
		return e.apply(ctx, current, outcome.action)
	case <-expired:
		current.Decision = policy.Deny
		return Result{Source: SourceTimeout, Policy: current}
	case <-request.Gone:
		return Result{Source: SourceCancelled, Policy: current, Err: errors.New("decision: requester went away")}
	case <-ctx.Done():
		return Result{Source: SourceCancelled, Policy: current, Err: ctx.Err()}
	}
}

// apply turns the user's action into a verdict and persists it unless
// it applies once.
func (e *Engine) apply(ctx context.Context, current policy.Policy, action Action) Result {
	current.Decision = policy.Deny
	if action.Allow {
		current.Decision = policy.Allow
	}
	result := Result{Allow: action.Allow, Source: SourceUser, Policy: current}

	if action.Minutes < 0 {
		return result
	}
	if action.Minutes > 0 {
		current.Until = e.clock.Now().Add(time.Duration(action.Minutes) * time.Minute).Unix()
	}
	result.Policy = current
	if err := e.policies.Upsert(ctx, current); err != nil {
		e.logger.Warn("persisting policy failed", "uid", current.UID, "error", err)
	}
	return result
}

// finish audits and notifies a verdict. Followers of a shared decision
// are audited with their own pid and command but not notified again.
// A cancelled request is audited as a denial and never notified; the
// audit write outlives ctx so a shutdown still records it.
func (e *Engine) finish(ctx context.Context, request Request, result Result, settings sudb.Settings, notify bool) {
	if result.Source.Silent() || result.Policy.PackageName == "" {
		return
	}
	if result.Source == SourceCancelled {
		result.Allow = false
		notify = false
	}

	if result.Policy.Logging && e.auditLog != nil {
		err := e.auditLog.Append(context.WithoutCancel(ctx), sulog.Entry{
			FromUID:     request.UID,
			FromPID:     request.PID,
			ToUID:       request.ToUID,
			PackageName: result.Policy.PackageName,
			AppName:     result.Policy.AppName,
			Command:     request.Command,
			Granted:     result.Allow,
		})
		if err != nil {
			e.logger.Warn("writing audit entry failed", "uid", request.UID, "error", err)
		}
	}

	if notify && result.Policy.Notification && settings.Notification != sudb.NotificationNone && e.notifier != nil {
		err := e.notifier.Notify(ctx, Notification{
			UID:         request.UID,
			PackageName: result.Policy.PackageName,
			AppName:     result.Policy.AppName,
			Granted:     result.Allow,
			Type:        settings.Notification,
		})
		if err != nil {
			e.logger.Warn("notifying verdict failed", "uid", request.UID, "error", err)
		}
	}
}
