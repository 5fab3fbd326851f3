// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package suproto

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Conn is suauth's end of one broker request socket.
type Conn struct {
	conn net.Conn
	path string
}

// Dial connects to the broker's request socket at path.
func Dial(ctx context.Context, path string) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("suproto: connecting to %s: %w", path, err)
	}
	return &Conn{conn: conn, path: path}, nil
}

// ReadRequest reads the broker's request record. The read is bounded
// by the context deadline when there is one.
func (c *Conn) ReadRequest(ctx context.Context) (*Request, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("suproto: setting read deadline on %s: %w", c.path, err)
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}
	return ReadRequest(c.conn)
}

// Reply writes the verdict and closes the connection. The broker does
// not acknowledge.
func (c *Conn) Reply(allow bool) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		c.conn.Close()
		return fmt.Errorf("suproto: setting write deadline on %s: %w", c.path, err)
	}
	writeErr := WriteVerdict(c.conn, allow)
	closeErr := c.conn.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("suproto: closing %s: %w", c.path, closeErr)
	}
	return nil
}

// Close closes the connection without a verdict. The broker treats
// that as a deny.
func (c *Conn) Close() error { return c.conn.Close() }
