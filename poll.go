// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"time"

	"golang.org/x/sys/unix"
)

// waitReadable waits up to timeout for any of the fds to become readable.
//
// A negative timeout waits indefinitely, and a zero timeout polls.
// Returns the readiness of each fd, in the order provided.
func waitReadable(timeout time.Duration, fds ...int) ([]bool, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLPRI}
	}
	deadline := time.Now().Add(timeout)
	for {
		var ts *unix.Timespec
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			t := unix.NsecToTimespec(remaining.Nanoseconds())
			ts = &t
		}
		n, err := unix.Ppoll(pfds, ts, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, newSyscallError("poll", err)
		}
		ready := make([]bool, len(fds))
		if n == 0 {
			return ready, nil
		}
		for i, p := range pfds {
			if p.Revents&unix.POLLNVAL != 0 {
				return nil, newSyscallError("poll", unix.EBADF)
			}
			ready[i] = p.Revents&(unix.POLLIN|unix.POLLPRI|unix.POLLERR|unix.POLLHUP) != 0
		}
		return ready, nil
	}
}

// waitFd waits up to timeout for the fd to become readable.
func waitFd(fd int, timeout time.Duration) (bool, error) {
	ready, err := waitReadable(timeout, fd)
	if err != nil {
		return false, err
	}
	return ready[0], nil
}
