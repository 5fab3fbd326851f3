// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package suproto

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// WatchRemoval watches the socket file at path and returns a channel
// that closes once the file is deleted or moved away, plus a stop
// function that releases the watch. stop is safe to call more than
// once and must be called even after the channel closes.
//
// A bound socket keeps its inode alive after unlink, so IN_DELETE_SELF
// may arrive late. Unlink also raises IN_ATTRIB on the link count,
// which is checked against the path.
func WatchRemoval(path string) (<-chan struct{}, func(), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("suproto: inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, path, unix.IN_DELETE_SELF|unix.IN_MOVE_SELF|unix.IN_ATTRIB); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("suproto: inotify_add_watch on %s: %w", path, err)
	}

	gone := make(chan struct{})
	stopChannel := make(chan struct{})
	go watchLoop(fd, path, gone, stopChannel)

	var once sync.Once
	stop := func() { once.Do(func() { close(stopChannel) }) }

	// The file may have vanished before the watch was installed.
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		stop()
		closed := make(chan struct{})
		close(closed)
		return closed, func() {}, nil
	}
	return gone, stop, nil
}

func watchLoop(fd int, path string, gone chan struct{}, stopChannel <-chan struct{}) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-stopChannel:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		if removalSeen(eventMasks(buffer[:bytesRead]), path) {
			close(gone)
			return
		}
	}
}

func removalSeen(masks []uint32, path string) bool {
	for _, mask := range masks {
		switch {
		case mask&(unix.IN_DELETE_SELF|unix.IN_MOVE_SELF|unix.IN_IGNORED) != 0:
			return true
		case mask&unix.IN_ATTRIB != 0:
			if _, err := os.Lstat(path); os.IsNotExist(err) {
				return true
			}
		}
	}
	return false
}

// eventMasks extracts the mask of every event in a raw inotify read.
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16
//	};
func eventMasks(buffer []byte) []uint32 {
	var masks []uint32
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		mask := binary.NativeEndian.Uint32(buffer[offset+4 : offset+8])
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		masks = append(masks, mask)
		offset += unix.SizeofInotifyEvent + nameLength
	}
	return masks
}
