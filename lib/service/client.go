// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/suauth/lib/codec"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// defaultResponseTimeout is how long Call waits for a response when
// ctx carries no deadline.
const defaultResponseTimeout = 30 * time.Second

const maxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server responds with
// ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// Client sends CBOR requests to a service socket. Each Call opens a
// new connection, matching the server's one-request-per-connection
// model.
type Client struct {
	socketPath      string
	responseTimeout time.Duration
}

// NewClient returns a client for the socket at socketPath. No
// connection is made until Call.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, responseTimeout: defaultResponseTimeout}
}

// SetResponseTimeout changes how long Call waits when ctx has no
// deadline. Zero waits until ctx is done.
func (c *Client) SetResponseTimeout(timeout time.Duration) {
	c.responseTimeout = timeout
}

// Call sends a request and decodes the response.
//
// fields holds the action-specific request fields; Call adds "action".
// On success, if result is non-nil and the response carries data, the
// data is decoded into result. A response with ok=false returns a
// *ServiceError. A deadline on ctx bounds the whole exchange, which
// matters for actions like "prompt" that wait on a person.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if c.responseTimeout > 0 {
		conn.SetDeadline(time.Now().Add(c.responseTimeout))
	}

	// Closing the connection unblocks the read when ctx is cancelled
	// without a deadline.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
