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

// MaxWatchEvents is the maximum number of watch events returned by a single
// WatchEventReadMultiple.
const MaxWatchEvents = 32

// watchEventSize is the size of a uAPI v1 line info changed record.
var watchEventSize = binary.Size(uapi.LineInfoChanged{})

// WatchEventType indicates the type of change to a watched line.
type WatchEventType int

const (
	// LineRequested indicates the line has been requested.
	LineRequested WatchEventType = iota + 1

	// LineReleased indicates the line has been released.
	LineReleased

	// LineConfigChanged indicates the configuration of a requested line has
	// changed.
	LineConfigChanged
)

func (t WatchEventType) String() string {
	switch t {
	case LineRequested:
		return "requested"
	case LineReleased:
		return "released"
	case LineConfigChanged:
		return "config-changed"
	}
	return "unknown"
}

// WatchEvent is a change to the info of a watched line.
type WatchEvent struct {
	Type WatchEventType

	// The time the change occurred, from CLOCK_MONOTONIC.
	Timestamp time.Duration

	// The line that changed.
	Line *Line

	// The info of the line after the change.
	Info LineInfo
}

// Watch starts watching the line for changes to its info.
//
// The cached info is refreshed as a side effect.
func (l *Line) Watch() error {
	c := l.chip
	if err := c.checkOpen(); err != nil {
		return err
	}
	if l.watched {
		return errors.Wrapf(ErrAlreadyWatched, "offset %d", l.offset)
	}
	li := uapi.LineInfo{Offset: uint32(l.offset)}
	if err := uapi.WatchLineInfo(uintptr(c.fd), &li); err != nil {
		if errors.Is(err, unix.EBUSY) {
			l.watched = true
			return errors.Wrapf(ErrAlreadyWatched, "offset %d", l.offset)
		}
		return newSyscallError("watch line info", err)
	}
	l.watched = true
	l.info = newLineInfo(li)
	return nil
}

// Unwatch stops watching the line.
func (l *Line) Unwatch() error {
	c := l.chip
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !l.watched {
		return errors.Wrapf(ErrNotWatched, "offset %d", l.offset)
	}
	if err := uapi.UnwatchLineInfo(uintptr(c.fd), uint32(l.offset)); err != nil {
		if errors.Is(err, unix.EBUSY) {
			l.watched = false
			return errors.Wrapf(ErrNotWatched, "offset %d", l.offset)
		}
		return newSyscallError("unwatch line info", err)
	}
	l.watched = false
	return nil
}

// UnwatchAll stops watching all lines on the chip.
//
// Lines that are not watched are ignored.
func (c *Chip) UnwatchAll() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for o := 0; o < c.numLines; o++ {
		err := uapi.UnwatchLineInfo(uintptr(c.fd), uint32(o))
		if err != nil && !errors.Is(err, unix.EBUSY) {
			return newSyscallError("unwatch line info", err)
		}
		if l := c.lines[o]; l != nil {
			l.watched = false
		}
	}
	return nil
}

func (c *Chip) unwatchAllBestEffort() {
	if err := c.UnwatchAll(); err != nil {
		c.log.WithError(err).Warn("unwatch all failed")
	}
}

// WatchFd returns the fd that becomes readable when watch events are
// available.
//
// The fd remains owned by the chip.
func (c *Chip) WatchFd() (int, error) {
	if err := c.checkOpen(); err != nil {
		return -1, err
	}
	return c.fd, nil
}

// WatchEventWait waits up to timeout for a watch event.
//
// Returns true if an event is available.  A negative timeout waits
// indefinitely.
func (c *Chip) WatchEventWait(timeout time.Duration) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	return waitFd(c.fd, timeout)
}

// WatchEventRead reads a single watch event.
//
// Does not block, and returns ErrNoEvent if no event is available.
func (c *Chip) WatchEventRead() (WatchEvent, error) {
	evs, err := c.readWatchEvents(1)
	if err != nil {
		return WatchEvent{}, err
	}
	if len(evs) == 0 {
		return WatchEvent{}, ErrNoEvent
	}
	return evs[0], nil
}

// WatchEventReadMultiple reads up to MaxWatchEvents watch events.
//
// Does not block, and returns an empty slice if no event is available.
// If a record cannot be decoded, the events read before it are returned
// along with the error.
func (c *Chip) WatchEventReadMultiple() ([]WatchEvent, error) {
	evs, err := c.readWatchEvents(MaxWatchEvents)
	if err != nil {
		return evs, err
	}
	if evs == nil {
		evs = []WatchEvent{}
	}
	return evs, nil
}

func (c *Chip) readWatchEvents(max int) ([]WatchEvent, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	buf := make([]byte, max*watchEventSize)
	n, err := readFd(c.fd, buf)
	if err == unix.EAGAIN {
		return nil, nil
	}
	if err != nil {
		return nil, newSyscallError("read watch events", err)
	}
	return c.decodeWatchEvents(buf[:n])
}

// decodeWatchEvents converts the raw records read from the chip.
//
// The line for each event is obtained from the registry, and its cached
// info replaced with the info carried by the event.
// On a bad record the events preceding it are returned along with the error,
// as they have already been consumed from the kernel and applied to the cache.
func (c *Chip) decodeWatchEvents(buf []byte) ([]WatchEvent, error) {
	if len(buf)%watchEventSize != 0 {
		return nil, errors.Wrapf(ErrIO, "short watch event read of %d bytes", len(buf))
	}
	r := bytes.NewReader(buf)
	evs := make([]WatchEvent, 0, len(buf)/watchEventSize)
	for r.Len() > 0 {
		var lic uapi.LineInfoChanged
		if err := binary.Read(r, binary.NativeEndian, &lic); err != nil {
			return evs, errors.Wrap(ErrIO, err.Error())
		}
		ev, err := c.newWatchEvent(lic)
		if err != nil {
			return evs, err
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

func (c *Chip) newWatchEvent(lic uapi.LineInfoChanged) (WatchEvent, error) {
	ev := WatchEvent{Timestamp: time.Duration(lic.Timestamp)}
	switch lic.Type {
	case uapi.LineChangedRequested:
		ev.Type = LineRequested
	case uapi.LineChangedReleased:
		ev.Type = LineReleased
	case uapi.LineChangedConfig:
		ev.Type = LineConfigChanged
	default:
		return WatchEvent{}, errors.Wrapf(ErrIO, "unknown watch event type %d", lic.Type)
	}
	offset := int(lic.Info.Offset)
	if offset >= c.numLines {
		return WatchEvent{}, errors.Wrapf(ErrIO, "watch event for offset %d of %d", offset, c.numLines)
	}
	l := c.lines[offset]
	if l == nil {
		// only watched lines generate events
		l = newLine(c, offset)
		l.watched = true
		c.lines[offset] = l
	}
	ev.Info = newLineInfo(lic.Info)
	l.info = ev.Info
	ev.Line = l
	return ev, nil
}
