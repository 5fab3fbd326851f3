// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/config"
	"github.com/bureau-foundation/suauth/lib/decision"
	"github.com/bureau-foundation/suauth/lib/pkginfo"
	"github.com/bureau-foundation/suauth/lib/policy"
	"github.com/bureau-foundation/suauth/lib/prompt"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/sulog"
	"github.com/bureau-foundation/suauth/lib/suproto"
)

// Daemon owns the database, the stores, and the decision engine, and
// runs one worker per broker request.
type Daemon struct {
	db       *sudb.DB
	policies *policy.Store
	logs     *sulog.Store
	resolver pkginfo.Resolver
	engine   *decision.Engine

	// notifier is nil when no UI socket is configured.
	notifier decision.Notifier

	defaults         sudb.Settings
	handshakeTimeout time.Duration

	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger

	workers sync.WaitGroup
}

// newDaemon opens everything cfg names. The caller must Close the
// returned Daemon.
func newDaemon(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*Daemon, error) {
	defaults, err := cfg.Settings()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	handshakeTimeout, err := cfg.HandshakeTimeout()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	uiTimeout, err := cfg.UICallTimeout()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	resolver, err := pkginfo.NewPackagesList(pkginfo.PackagesListConfig{
		Path:   cfg.Paths.PackagesList,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	db, err := sudb.Open(ctx, sudb.Config{Path: cfg.Paths.Database, Logger: logger})
	if err != nil {
		return nil, err
	}

	policies, err := policy.NewStore(policy.Config{
		DB:       db,
		Resolver: resolver,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	logs, err := sulog.NewStore(sulog.Config{
		DB:                   db,
		DefaultRetentionDays: defaults.LogTimeoutDays,
		Location:             location,
		DayLayout:            cfg.Log.DateLayout,
		Clock:                clk,
		Logger:               logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	engineConfig := decision.Config{
		Policies:       policies,
		Resolver:       resolver,
		Settings:       db,
		Defaults:       defaults,
		ManagerUID:     cfg.Manager.UID,
		ManagerPackage: cfg.Manager.Package,
		AuditLog:       logs,
		Clock:          clk,
		Logger:         logger,
	}
	var notifier decision.Notifier
	if cfg.Paths.UISocket != "" {
		ui, err := prompt.NewClient(prompt.Config{
			SocketPath:    cfg.Paths.UISocket,
			NotifyTimeout: uiTimeout,
			Logger:        logger,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		engineConfig.Prompter = ui
		engineConfig.Notifier = ui
		notifier = ui
	} else {
		logger.Warn("no UI socket configured, interactive requests will be denied")
	}

	engine, err := decision.NewEngine(engineConfig)
	if err != nil {
		db.Close()
		return nil, err
	}

	daemon := &Daemon{
		db:               db,
		policies:         policies,
		logs:             logs,
		resolver:         resolver,
		engine:           engine,
		notifier:         notifier,
		defaults:         defaults,
		handshakeTimeout: handshakeTimeout,
		clock:            clk,
		startedAt:        clk.Now(),
		logger:           logger,
	}
	daemon.purge(ctx)
	return daemon, nil
}

// purge drops expired policies and audit entries. Failures are logged;
// both stores purge again lazily.
func (d *Daemon) purge(ctx context.Context) {
	if removed, err := d.policies.PurgeExpired(ctx); err != nil {
		d.logger.Warn("purging expired policies failed", "error", err)
	} else if removed > 0 {
		d.logger.Info("purged expired policies", "count", removed)
	}
	if removed, err := d.logs.Purge(ctx); err != nil {
		d.logger.Warn("purging audit log failed", "error", err)
	} else if removed > 0 {
		d.logger.Info("purged audit entries", "count", removed)
	}
}

// Wait blocks until every request worker has replied.
func (d *Daemon) Wait() {
	d.workers.Wait()
}

// Close closes the database. Call Wait first.
func (d *Daemon) Close() error {
	return d.db.Close()
}

// settings returns the effective settings snapshot.
func (d *Daemon) settings(ctx context.Context) sudb.Settings {
	return d.db.LoadSettings(ctx, d.defaults)
}

// startWorker decides the request waiting on the broker socket at
// socketPath. The worker runs until it has replied or ctx ends.
func (d *Daemon) startWorker(ctx context.Context, socketPath string, timeout bool) {
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		d.serveRequest(ctx, socketPath, timeout)
	}()
}

func (d *Daemon) serveRequest(ctx context.Context, socketPath string, timeout bool) {
	logger := d.logger.With("socket", socketPath)

	handshakeContext, cancel := context.WithTimeout(ctx, d.handshakeTimeout)
	defer cancel()

	conn, err := suproto.Dial(handshakeContext, socketPath)
	if err != nil {
		logger.Warn("connecting to request socket failed", "error", err)
		return
	}
	request, err := conn.ReadRequest(handshakeContext)
	if err != nil {
		logger.Warn("reading root request failed", "error", err)
		conn.Close()
		return
	}
	cancel()

	gone, stopWatch, err := suproto.WatchRemoval(socketPath)
	if err != nil {
		// Without the watch a vanished broker is only noticed when the
		// countdown ends.
		logger.Warn("watching request socket failed", "error", err)
		gone, stopWatch = nil, func() {}
	}
	defer stopWatch()

	result := d.engine.Decide(ctx, decision.Request{
		UID:     request.UID,
		PID:     request.PID,
		ToUID:   request.ToUID,
		Command: request.Command,
		Timeout: timeout,
		Gone:    gone,
	})

	if result.Source == decision.SourceCancelled && closed(gone) {
		logger.Debug("requester went away before a verdict", "uid", request.UID)
		conn.Close()
		return
	}
	if err := conn.Reply(result.Allow); err != nil {
		logger.Warn("writing verdict failed", "uid", request.UID, "error", err)
	}
}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
