// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Peer is the kernel-reported identity of the process on the other
// end of a Unix socket.
type Peer struct {
	PID int
	UID int
	GID int
}

// PeerCredentials returns the SO_PEERCRED credentials of conn.
func PeerCredentials(conn *net.UnixConn) (Peer, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Peer{}, fmt.Errorf("service: peer credentials: %w", err)
	}
	var credentials *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, fmt.Errorf("service: peer credentials: %w", err)
	}
	if sockoptErr != nil {
		return Peer{}, fmt.Errorf("service: SO_PEERCRED: %w", sockoptErr)
	}
	return Peer{
		PID: int(credentials.Pid),
		UID: int(credentials.Uid),
		GID: int(credentials.Gid),
	}, nil
}

type peerKey struct{}

func withPeer(ctx context.Context, peer Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFromContext returns the caller of the request being handled.
// ok is false outside a SocketServer handler or when the credentials
// could not be read.
func PeerFromContext(ctx context.Context) (peer Peer, ok bool) {
	peer, ok = ctx.Value(peerKey{}).(Peer)
	return peer, ok
}
