// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/suauth/lib/codec"
	"github.com/bureau-foundation/suauth/lib/decision"
	"github.com/bureau-foundation/suauth/lib/service"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/testutil"
)

type promptCall struct {
	UID            int    `cbor:"uid"`
	PackageName    string `cbor:"package_name"`
	AppName        string `cbor:"app_name"`
	Command        string `cbor:"command"`
	TimeoutSeconds int    `cbor:"timeout_seconds"`
}

type notifyCall struct {
	UID         int    `cbor:"uid"`
	PackageName string `cbor:"package_name"`
	AppName     string `cbor:"app_name"`
	Granted     bool   `cbor:"granted"`
	Type        string `cbor:"type"`
}

// startUI runs a fake UI socket whose actions are supplied by the test.
func startUI(t *testing.T, handlers map[string]service.ActionFunc) *Client {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "ui.sock")
	server := service.NewSocketServer(socketPath, nil)
	for action, handler := range handlers {
		server.Handle(action, handler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "UI server did not stop")
	})
	testutil.WaitForSocket(t, socketPath)

	client, err := NewClient(Config{SocketPath: socketPath, NotifyTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestPromptRoundTrip(t *testing.T) {
	calls := make(chan promptCall, 1)
	client := startUI(t, map[string]service.ActionFunc{
		"prompt": func(ctx context.Context, raw []byte) (any, error) {
			var call promptCall
			if err := codec.Unmarshal(raw, &call); err != nil {
				return nil, err
			}
			calls <- call
			return map[string]any{"allow": true, "minutes": 10}, nil
		},
	})

	action, err := client.Prompt(context.Background(), decision.PromptRequest{
		UID:         10123,
		PackageName: "com.termux",
		AppName:     "Termux",
		Command:     "id",
		Timeout:     10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if !action.Allow || action.Minutes != 10 {
		t.Fatalf("action = %+v, want allow for 10 minutes", action)
	}

	call := testutil.RequireReceive(t, calls, time.Second, "UI never saw the prompt")
	want := promptCall{UID: 10123, PackageName: "com.termux", AppName: "Termux", Command: "id", TimeoutSeconds: 10}
	if call != want {
		t.Fatalf("UI received %+v, want %+v", call, want)
	}
}

func TestPromptMinutesDefaults(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		want     decision.Action
	}{
		{"missing", map[string]any{"allow": false}, decision.Action{Allow: false, Minutes: decision.MinutesOnce}},
		{"forever", map[string]any{"allow": true, "minutes": 0}, decision.Action{Allow: true, Minutes: 0}},
		{"negative", map[string]any{"allow": true, "minutes": -5}, decision.Action{Allow: true, Minutes: decision.MinutesOnce}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := startUI(t, map[string]service.ActionFunc{
				"prompt": func(ctx context.Context, raw []byte) (any, error) {
					return test.response, nil
				},
			})
			action, err := client.Prompt(context.Background(), decision.PromptRequest{UID: 10123})
			if err != nil {
				t.Fatalf("Prompt: %v", err)
			}
			if action != test.want {
				t.Fatalf("action = %+v, want %+v", action, test.want)
			}
		})
	}
}

func TestPromptCancelled(t *testing.T) {
	release := make(chan struct{})
	client := startUI(t, map[string]service.ActionFunc{
		"prompt": func(ctx context.Context, raw []byte) (any, error) {
			<-release
			return map[string]any{"allow": true}, nil
		},
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := client.Prompt(ctx, decision.PromptRequest{UID: 10123})
		errs <- err
	}()
	cancel()

	err := testutil.RequireReceive(t, errs, 5*time.Second, "Prompt did not return after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Prompt err = %v, want context.Canceled", err)
	}
}

func TestPromptUIError(t *testing.T) {
	client := startUI(t, map[string]service.ActionFunc{
		"prompt": func(ctx context.Context, raw []byte) (any, error) {
			return nil, errors.New("dialog dismissed")
		},
	})
	_, err := client.Prompt(context.Background(), decision.PromptRequest{UID: 10123})
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Message != "dialog dismissed" {
		t.Fatalf("Prompt err = %v, want ServiceError(dialog dismissed)", err)
	}
}

func TestNotify(t *testing.T) {
	calls := make(chan notifyCall, 1)
	client := startUI(t, map[string]service.ActionFunc{
		"notify": func(ctx context.Context, raw []byte) (any, error) {
			var call notifyCall
			if err := codec.Unmarshal(raw, &call); err != nil {
				return nil, err
			}
			calls <- call
			return nil, nil
		},
	})

	err := client.Notify(context.Background(), decision.Notification{
		UID:         10123,
		PackageName: "com.termux",
		AppName:     "Termux",
		Granted:     true,
		Type:        sudb.NotificationToast,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	call := testutil.RequireReceive(t, calls, time.Second, "UI never saw the notification")
	want := notifyCall{UID: 10123, PackageName: "com.termux", AppName: "Termux", Granted: true, Type: "toast"}
	if call != want {
		t.Fatalf("UI received %+v, want %+v", call, want)
	}
}

func TestNotifyTimeout(t *testing.T) {
	release := make(chan struct{})
	client := startUI(t, map[string]service.ActionFunc{
		"notify": func(ctx context.Context, raw []byte) (any, error) {
			<-release
			return nil, nil
		},
	})
	defer close(release)
	client.notifyTimeout = 50 * time.Millisecond

	err := client.Notify(context.Background(), decision.Notification{UID: 10123})
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Notify err = %v, want a deadline error", err)
	}
}

func TestNewClientRequiresSocket(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("NewClient accepted an empty socket path")
	}
}
