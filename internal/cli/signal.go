// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cli

import (
	"encoding/binary"
	"os"
	"os/signal"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SignalFd is an fd that becomes readable when one of its signals is
// received, so signals can be polled alongside other fds.
type SignalFd struct {
	fd   int
	sigs chan os.Signal
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSignalFd creates a SignalFd for the given signals.
func NewSignalFd(sigs ...os.Signal) (*SignalFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "eventfd")
	}
	s := &SignalFd{
		fd:   fd,
		sigs: make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(s.sigs, sigs...)
	s.wg.Add(1)
	go s.relay()
	return s, nil
}

func (s *SignalFd) relay() {
	defer s.wg.Done()
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, 1)
	for {
		select {
		case <-s.sigs:
			unix.Write(s.fd, buf)
		case <-s.done:
			return
		}
	}
}

// Fd returns the fd to poll.
func (s *SignalFd) Fd() int {
	return s.fd
}

// Close stops relaying signals and closes the fd.
func (s *SignalFd) Close() error {
	signal.Stop(s.sigs)
	close(s.done)
	s.wg.Wait()
	return unix.Close(s.fd)
}
