// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

// MaxEdgeEvents is the maximum number of edge events returned by a single
// EventReadMultiple.
//
// This matches the depth of the kernel event queue.
const MaxEdgeEvents = 16

// edgeEventSize is the size of a uAPI v1 edge event record.
var edgeEventSize = binary.Size(uapi.EventData{})

// EdgeType indicates the type of edge detected on a line.
type EdgeType int

const (
	// RisingEdge indicates an inactive to active transition.
	RisingEdge EdgeType = iota + 1

	// FallingEdge indicates an active to inactive transition.
	FallingEdge
)

func (t EdgeType) String() string {
	switch t {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	}
	return "unknown"
}

// LineEvent is an edge detected on a line requested for edge events.
type LineEvent struct {
	Type EdgeType

	// The time the edge was detected, from CLOCK_MONOTONIC.
	Timestamp time.Duration

	// The line the edge was detected on.
	Line *Line
}

// EventFd returns the fd that becomes readable when edge events are
// available on the line.
//
// The fd remains owned by the line.
func (l *Line) EventFd() (int, error) {
	if err := l.checkRequested(); err != nil {
		return -1, err
	}
	if !l.req.events {
		return -1, errors.Wrapf(ErrNotEventLine, "offset %d", l.offset)
	}
	return l.req.fd, nil
}

// EventWait waits up to timeout for an edge event on the line.
//
// Returns true if an event is available.  A negative timeout waits
// indefinitely.
func (l *Line) EventWait(timeout time.Duration) (bool, error) {
	fd, err := l.EventFd()
	if err != nil {
		return false, err
	}
	return waitFd(fd, timeout)
}

// EventRead reads a single edge event from the line.
//
// Blocks until an event is available.
func (l *Line) EventRead() (LineEvent, error) {
	evs, err := l.readEvents(1)
	if err != nil {
		return LineEvent{}, err
	}
	return evs[0], nil
}

// EventReadMultiple reads up to MaxEdgeEvents edge events from the line.
//
// Blocks until at least one event is available.
func (l *Line) EventReadMultiple() ([]LineEvent, error) {
	return l.readEvents(MaxEdgeEvents)
}

func (l *Line) readEvents(max int) ([]LineEvent, error) {
	fd, err := l.EventFd()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, max*edgeEventSize)
	n, err := readFd(fd, buf)
	if err != nil {
		return nil, newSyscallError("read edge events", err)
	}
	return l.decodeEvents(buf[:n])
}

// decodeEvents converts the raw records read from an edge event fd.
func (l *Line) decodeEvents(buf []byte) ([]LineEvent, error) {
	if len(buf) == 0 || len(buf)%edgeEventSize != 0 {
		return nil, errors.Wrapf(ErrIO, "short edge event read of %d bytes", len(buf))
	}
	r := bytes.NewReader(buf)
	evs := make([]LineEvent, 0, len(buf)/edgeEventSize)
	for r.Len() > 0 {
		var ed uapi.EventData
		if err := binary.Read(r, binary.NativeEndian, &ed); err != nil {
			return nil, errors.Wrap(ErrIO, err.Error())
		}
		ev := LineEvent{
			Timestamp: time.Duration(ed.Timestamp),
			Line:      l,
		}
		switch ed.ID {
		case 1:
			ev.Type = RisingEdge
		case 2:
			ev.Type = FallingEdge
		default:
			return nil, errors.Wrapf(ErrIO, "unknown edge event id %d", ed.ID)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

// readFd reads from the fd, retrying if interrupted.
func readFd(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err != unix.EINTR {
			return n, err
		}
	}
}
