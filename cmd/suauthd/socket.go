// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/suauth/lib/codec"
	"github.com/bureau-foundation/suauth/lib/decision"
	"github.com/bureau-foundation/suauth/lib/service"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/sulog"
	"github.com/bureau-foundation/suauth/lib/version"
)

// registerActions registers the control socket actions.
func (d *Daemon) registerActions(server *service.SocketServer) {
	server.Handle("request", d.handleRequest)
	server.Handle("log", d.handleLog)
	server.Handle("notify", d.handleNotify)
	server.Handle("status", d.handleStatus)
}

type requestAction struct {
	Socket string `cbor:"socket"`

	// Timeout allows a countdown on the prompt.
	Timeout bool `cbor:"timeout"`
}

// handleRequest validates the broker socket and hands it to a worker.
// The verdict travels over the broker socket, not this response.
func (d *Daemon) handleRequest(ctx context.Context, raw []byte) (any, error) {
	var action requestAction
	if err := codec.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if action.Socket == "" {
		return nil, errors.New("missing required field: socket")
	}
	if !filepath.IsAbs(action.Socket) {
		return nil, fmt.Errorf("socket path %q is not absolute", action.Socket)
	}
	info, err := os.Lstat(action.Socket)
	if err != nil {
		return nil, fmt.Errorf("request socket: %w", err)
	}
	if info.Mode().Type() != os.ModeSocket {
		return nil, fmt.Errorf("%s is not a socket", action.Socket)
	}

	d.startWorker(ctx, action.Socket, action.Timeout)
	return nil, nil
}

type logAction struct {
	FromUID int    `cbor:"from_uid"`
	FromPID int    `cbor:"from_pid"`
	ToUID   int    `cbor:"to_uid"`
	Command string `cbor:"command"`
	Granted bool   `cbor:"granted"`
}

type logResponse struct {
	Logged bool `cbor:"logged"`
}

// handleLog audits a verdict the broker reached on its own, unless the
// stored policy turned logging off.
func (d *Daemon) handleLog(ctx context.Context, raw []byte) (any, error) {
	var action logAction
	if err := codec.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	pkg, err := d.resolver.Resolve(ctx, action.FromUID)
	if err != nil {
		return nil, err
	}
	settings := d.settings(ctx)
	stored, err := d.policies.Get(ctx, decision.PolicyKey(action.FromUID, settings))
	if err != nil {
		d.logger.Warn("reading policy failed, logging anyway", "uid", action.FromUID, "error", err)
		stored = nil
	}
	if stored != nil && !stored.Logging {
		return logResponse{Logged: false}, nil
	}

	err = d.logs.Append(ctx, sulog.Entry{
		FromUID:     action.FromUID,
		FromPID:     action.FromPID,
		ToUID:       action.ToUID,
		PackageName: pkg.Name,
		AppName:     pkg.Label,
		Command:     action.Command,
		Granted:     action.Granted,
	})
	if err != nil {
		return nil, err
	}
	return logResponse{Logged: true}, nil
}

type notifyAction struct {
	FromUID int  `cbor:"from_uid"`
	Granted bool `cbor:"granted"`
}

type notifyResponse struct {
	Notified bool `cbor:"notified"`
}

// handleNotify tells the user about a verdict the broker reached on
// its own, subject to the notification setting and the stored policy.
func (d *Daemon) handleNotify(ctx context.Context, raw []byte) (any, error) {
	var action notifyAction
	if err := codec.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	settings := d.settings(ctx)
	if d.notifier == nil || settings.Notification == sudb.NotificationNone {
		return notifyResponse{Notified: false}, nil
	}
	pkg, err := d.resolver.Resolve(ctx, action.FromUID)
	if err != nil {
		return nil, err
	}
	stored, err := d.policies.Get(ctx, decision.PolicyKey(action.FromUID, settings))
	if err != nil {
		d.logger.Warn("reading policy failed, notifying anyway", "uid", action.FromUID, "error", err)
		stored = nil
	}
	if stored != nil && !stored.Notification {
		return notifyResponse{Notified: false}, nil
	}

	err = d.notifier.Notify(ctx, decision.Notification{
		UID:         action.FromUID,
		PackageName: pkg.Name,
		AppName:     pkg.Label,
		Granted:     action.Granted,
		Type:        settings.Notification,
	})
	if err != nil {
		return nil, err
	}
	return notifyResponse{Notified: true}, nil
}

type statusResponse struct {
	Version       string  `cbor:"version"`
	VersionCode   int     `cbor:"version_code"`
	UptimeSeconds float64 `cbor:"uptime_seconds"`

	// Pending counts requests being decided; Waiting counts requests
	// sharing another request's decision.
	Pending int `cbor:"pending"`
	Waiting int `cbor:"waiting"`

	Settings map[string]any `cbor:"settings"`
}

// handleStatus reports liveness, pending counts, and the effective
// settings keyed by database name.
func (d *Daemon) handleStatus(ctx context.Context, raw []byte) (any, error) {
	settings := d.settings(ctx)
	effective := make(map[string]any, len(sudb.IntKeys)+1)
	for _, key := range sudb.IntKeys {
		value, _ := settings.Int(key)
		effective[key] = value
	}
	effective[sudb.KeyRequester] = settings.Requester

	return statusResponse{
		Version:       version.Info(),
		VersionCode:   version.Code(),
		UptimeSeconds: d.clock.Now().Sub(d.startedAt).Seconds(),
		Pending:       d.engine.Pending(),
		Waiting:       d.engine.Waiting(),
		Settings:      effective,
	}, nil
}
