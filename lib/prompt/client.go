// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/suauth/lib/decision"
	"github.com/bureau-foundation/suauth/lib/service"
)

// DefaultNotifyTimeout bounds a notify call.
const DefaultNotifyTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	// SocketPath is the UI process's service socket. Required.
	SocketPath string

	// NotifyTimeout bounds each notify call. Zero selects
	// DefaultNotifyTimeout.
	NotifyTimeout time.Duration

	Logger *slog.Logger
}

// Client talks to the UI socket.
type Client struct {
	client        *service.Client
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// NewClient returns a Client for cfg.SocketPath. The socket is not
// dialed until the first call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("prompt: UI socket path is required")
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	client := service.NewClient(cfg.SocketPath)
	// Prompts are bounded by the caller's context alone.
	client.SetResponseTimeout(0)
	return &Client{
		client:        client,
		notifyTimeout: cfg.NotifyTimeout,
		logger:        cfg.Logger,
	}, nil
}

type promptResponse struct {
	Allow   bool `cbor:"allow"`
	Minutes *int `cbor:"minutes"`
}

// Prompt shows the request to the user and waits for an answer or for
// ctx to end. A response without minutes applies once.
func (c *Client) Prompt(ctx context.Context, request decision.PromptRequest) (decision.Action, error) {
	fields := map[string]any{
		"uid":             request.UID,
		"package_name":    request.PackageName,
		"app_name":        request.AppName,
		"command":         request.Command,
		"timeout_seconds": int(request.Timeout / time.Second),
	}

	c.logger.Debug("prompting user", "uid", request.UID, "package", request.PackageName, "timeout", request.Timeout)

	var response promptResponse
	if err := c.client.Call(ctx, "prompt", fields, &response); err != nil {
		return decision.Action{}, fmt.Errorf("prompt: %w", err)
	}

	action := decision.Action{Allow: response.Allow, Minutes: decision.MinutesOnce}
	if response.Minutes != nil {
		action.Minutes = *response.Minutes
		if action.Minutes < 0 {
			action.Minutes = decision.MinutesOnce
		}
	}
	return action, nil
}

// Notify sends a verdict notification. It does not wait for the user.
func (c *Client) Notify(ctx context.Context, notification decision.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()

	fields := map[string]any{
		"uid":          notification.UID,
		"package_name": notification.PackageName,
		"app_name":     notification.AppName,
		"granted":      notification.Granted,
		"type":         notification.Type.String(),
	}
	if err := c.client.Call(ctx, "notify", fields, nil); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

var (
	_ decision.Prompter = (*Client)(nil)
	_ decision.Notifier = (*Client)(nil)
)
