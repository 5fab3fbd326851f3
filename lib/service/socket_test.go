// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/suauth/lib/codec"
	"github.com/bureau-foundation/suauth/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

func decodeData(t *testing.T, response Response, target any) {
	t.Helper()
	if len(response.Data) == 0 {
		t.Fatal("response has no data to decode")
	}
	if err := codec.Unmarshal(response.Data, target); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.SocketDir(t), "test.sock")
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startServer runs server until the test ends and waits for its socket.
func startServer(t *testing.T, server *SocketServer) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})
	waitForSocket(t, server.socketPath)
	return server.socketPath
}

func TestSocketServerStatus(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"pending": 2}, nil
	})
	socketPath := startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("expected ok=true, got error %q", response.Error)
	}
	var data map[string]any
	decodeData(t, response, &data)
	if data["pending"] != uint64(2) {
		t.Fatalf("pending = %v (%T), want 2", data["pending"], data["pending"])
	}
}

func TestSocketServerErrors(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("policy store unavailable")
	})
	socketPath := startServer(t, server)

	tests := []struct {
		name    string
		request any
		want    string
	}{
		{"unknown action", map[string]string{"action": "reboot"}, `unknown action "reboot"`},
		{"missing action", map[string]string{"socket": "/dev/null"}, "missing required field: action"},
		{"handler error", map[string]string{"action": "fail"}, "policy store unavailable"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := sendRequest(t, socketPath, test.request)
			if response.OK {
				t.Fatal("expected ok=false")
			}
			if !strings.Contains(response.Error, test.want) {
				t.Fatalf("error = %q, want it to contain %q", response.Error, test.want)
			}
		})
	}
}

func TestSocketServerNilResult(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	server.Handle("clear", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	socketPath := startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "clear"})
	if !response.OK || len(response.Data) != 0 {
		t.Fatalf("response = %+v, want bare ok", response)
	}
}

func TestSocketServerPeerCredentials(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	peers := make(chan Peer, 1)
	server.Handle("whoami", func(ctx context.Context, raw []byte) (any, error) {
		peer, ok := PeerFromContext(ctx)
		if !ok {
			return nil, errors.New("no peer in context")
		}
		peers <- peer
		return nil, nil
	})
	server.AllowUIDs(os.Getuid())
	socketPath := startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "whoami"})
	if !response.OK {
		t.Fatalf("whoami failed: %s", response.Error)
	}
	peer := testutil.RequireReceive(t, peers, time.Second, "handler did not run")
	if peer.UID != os.Getuid() || peer.PID != os.Getpid() {
		t.Fatalf("peer = %+v, want uid %d pid %d", peer, os.Getuid(), os.Getpid())
	}
}

func TestSocketServerRejectsDisallowedPeer(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	called := make(chan struct{}, 1)
	server.Handle("request", func(ctx context.Context, raw []byte) (any, error) {
		called <- struct{}{}
		return nil, nil
	})
	server.AllowUIDs(os.Getuid() + 1)
	socketPath := startServer(t, server)

	response := sendRequest(t, socketPath, map[string]string{"action": "request"})
	if response.OK || !strings.Contains(response.Error, "not allowed") {
		t.Fatalf("response = %+v, want a peer rejection", response)
	}
	testutil.RequireOpen(t, called, "handler ran for a rejected peer")
}

func TestSocketServerMode(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	server.SetMode(0o600)
	socketPath := startServer(t, server)

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("socket mode = %v, want 0600", got)
	}
}

func TestSocketServerGracefulShutdown(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, nil)

	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("slow", func(ctx context.Context, raw []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]any{"completed": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(ctx) }()
	waitForSocket(t, socketPath)

	responses := make(chan Response, 1)
	go func() {
		responses <- sendRequest(t, socketPath, map[string]string{"action": "slow"})
	}()

	<-handlerStarted
	close(handlerRelease)
	cancel()

	response := testutil.RequireReceive(t, responses, 5*time.Second, "in-flight request did not complete")
	if !response.OK {
		t.Fatalf("in-flight request failed: %s", response.Error)
	}
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatal("socket file not cleaned up after Serve returned")
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("/tmp/unused.sock", nil)
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate handler")
		}
	}()
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })
}

func TestClientCall(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			UID     int    `cbor:"uid"`
			Command string `cbor:"command"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"uid": request.UID, "command": request.Command}, nil
	})
	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("denied")
	})
	client := NewClient(startServer(t, server))

	var echoed struct {
		UID     int    `cbor:"uid"`
		Command string `cbor:"command"`
	}
	if err := client.Call(context.Background(), "echo", map[string]any{"uid": 10123, "command": "id -u"}, &echoed); err != nil {
		t.Fatalf("Call(echo): %v", err)
	}
	if echoed.UID != 10123 || echoed.Command != "id -u" {
		t.Fatalf("echoed = %+v", echoed)
	}

	err := client.Call(context.Background(), "fail", nil, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Call(fail) err = %v, want *ServiceError", err)
	}
	if serviceErr.Action != "fail" || serviceErr.Message != "denied" {
		t.Fatalf("ServiceError = %+v", serviceErr)
	}
}

func TestClientCallHonoursContext(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	release := make(chan struct{})
	server.Handle("prompt", func(ctx context.Context, raw []byte) (any, error) {
		<-release
		return nil, nil
	})
	client := NewClient(startServer(t, server))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- client.Call(ctx, "prompt", nil, nil) }()
	cancel()

	err := testutil.RequireReceive(t, errs, 5*time.Second, "Call did not return after cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Call err = %v, want context.Canceled", err)
	}
}

func TestClientCallMissingSocket(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	if err := client.Call(context.Background(), "status", nil, nil); err == nil {
		t.Fatal("Call succeeded against a missing socket")
	}
}

func TestClientResponseTimeout(t *testing.T) {
	server := NewSocketServer(testSocketPath(t), nil)
	release := make(chan struct{})
	server.Handle("prompt", func(ctx context.Context, raw []byte) (any, error) {
		<-release
		return nil, nil
	})
	client := NewClient(startServer(t, server))
	defer close(release)

	client.SetResponseTimeout(50 * time.Millisecond)
	err := client.Call(context.Background(), "prompt", nil, nil)
	if err == nil {
		t.Fatal("Call succeeded past the response timeout")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("Call err = %v, want a read timeout", err)
	}
}
