// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

// MaxBulkLines is the maximum number of lines in a Bulk.
const MaxBulkLines = uapi.HandlesMax

// Bulk is an ordered set of lines from the same chip, operated on as a group.
//
// Lines in a Bulk may be requested together, and their values read and
// written together.  Duplicates are not rejected.
type Bulk struct {
	lines []*Line
}

// NewBulk creates a Bulk containing the given lines.
func NewBulk(lines ...*Line) (*Bulk, error) {
	b := &Bulk{}
	for _, l := range lines {
		if err := b.Add(l); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add appends the line to the bulk.
//
// The line must belong to the same chip as any lines already in the bulk.
func (b *Bulk) Add(l *Line) error {
	if l == nil {
		return errors.Wrap(ErrInvalidArgument, "nil line")
	}
	if len(b.lines) >= MaxBulkLines {
		return ErrBulkFull
	}
	if len(b.lines) > 0 && b.lines[0].chip != l.chip {
		return errors.Wrapf(ErrChipMismatch, "offset %d", l.offset)
	}
	b.lines = append(b.lines, l)
	return nil
}

// Len returns the number of lines in the bulk.
func (b *Bulk) Len() int {
	return len(b.lines)
}

// Line returns the line at the given index in the bulk.
//
// Panics if the index is out of range.
func (b *Bulk) Line(i int) *Line {
	return b.lines[i]
}

// Lines returns a copy of the lines in the bulk.
func (b *Bulk) Lines() []*Line {
	return append([]*Line(nil), b.lines...)
}

// Offsets returns the offsets of the lines in the bulk.
func (b *Bulk) Offsets() []int {
	offsets := make([]int, len(b.lines))
	for i, l := range b.lines {
		offsets[i] = l.offset
	}
	return offsets
}

// Chip returns the chip the lines belong to, or nil if the bulk is empty.
func (b *Bulk) Chip() *Chip {
	if len(b.lines) == 0 {
		return nil
	}
	return b.lines[0].chip
}

func (b *Bulk) checkChip() (*Chip, error) {
	if len(b.lines) == 0 {
		return nil, ErrBulkEmpty
	}
	c := b.lines[0].chip
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c, nil
}

// Request requests all the lines in the bulk with the given config.
//
// The defaults are applied to lines requested as outputs, and may be nil,
// in which case the lines default to 0.
//
// Direction requests are atomic, as all lines are covered by one kernel
// request.  Edge event requests are made one line at a time, and any lines
// already requested are released if a later line fails.
func (b *Bulk) Request(cfg RequestConfig, defaults []int) error {
	c, err := b.checkChip()
	if err != nil {
		return err
	}
	if err = cfg.validate(); err != nil {
		return err
	}
	if defaults != nil && len(defaults) != len(b.lines) {
		return errors.Wrapf(ErrValueCount, "%d values for %d lines", len(defaults), len(b.lines))
	}
	for _, l := range b.lines {
		if l.req != nil {
			return errors.Wrapf(ErrAlreadyRequested, "offset %d", l.offset)
		}
	}
	consumer := cfg.Consumer
	if len(consumer) == 0 {
		consumer = c.options.consumer
	}
	if cfg.Type.IsEvent() {
		err = b.requestEvents(c, cfg, consumer)
	} else {
		err = b.requestValues(c, cfg, consumer, defaults)
	}
	if err != nil {
		return err
	}
	c.log.WithField("offsets", b.Offsets()).
		WithField("type", cfg.Type).
		WithField("consumer", consumer).
		Debug("requested lines")
	for _, l := range b.lines {
		l.updateBestEffort()
	}
	return nil
}

func (b *Bulk) requestValues(c *Chip, cfg RequestConfig, consumer string, defaults []int) error {
	hr := uapi.HandleRequest{
		Lines: uint32(len(b.lines)),
		Flags: handleFlags(cfg.Type, cfg.Flags),
	}
	consumerBytes(hr.Consumer[:], consumer)
	for i, l := range b.lines {
		hr.Offsets[i] = uint32(l.offset)
		if defaults != nil {
			hr.DefaultValues[i] = bit(defaults[i])
		}
	}
	if err := uapi.GetLineHandle(uintptr(c.fd), &hr); err != nil {
		return newSyscallError("request lines", err)
	}
	r := &request{
		fd:    int(hr.Fd),
		lines: b.Lines(),
		held:  len(b.lines),
	}
	for i, l := range b.lines {
		l.req = r
		l.reqType = cfg.Type
		l.reqFlags = cfg.Flags
		l.value = int(hr.DefaultValues[i])
	}
	return nil
}

func (b *Bulk) requestEvents(c *Chip, cfg RequestConfig, consumer string) error {
	reqs := make([]*request, 0, len(b.lines))
	for _, l := range b.lines {
		er := uapi.EventRequest{
			Offset:      uint32(l.offset),
			HandleFlags: handleFlags(cfg.Type, cfg.Flags),
			EventFlags:  eventFlags(cfg.Type),
		}
		consumerBytes(er.Consumer[:], consumer)
		if err := uapi.GetLineEvent(uintptr(c.fd), &er); err != nil {
			for _, r := range reqs {
				if cerr := unix.Close(r.fd); cerr != nil {
					c.log.WithError(cerr).WithField("offset", r.lines[0].offset).Warn("rollback event request failed")
				}
			}
			return newSyscallError("request edge events", err)
		}
		reqs = append(reqs, &request{
			fd:     int(er.Fd),
			lines:  []*Line{l},
			events: true,
			held:   1,
		})
	}
	for i, l := range b.lines {
		l.req = reqs[i]
		l.reqType = cfg.Type
		l.reqFlags = cfg.Flags
		l.value = 0
	}
	return nil
}

// RequestInput requests all the lines in the bulk as inputs.
func (b *Bulk) RequestInput(consumer string) error {
	return b.Request(RequestConfig{Consumer: consumer, Type: RequestDirectionInput}, nil)
}

// RequestOutput requests all the lines in the bulk as outputs, set to the
// given defaults.
func (b *Bulk) RequestOutput(consumer string, defaults []int) error {
	return b.Request(RequestConfig{Consumer: consumer, Type: RequestDirectionOutput}, defaults)
}

// RequestEvents requests all the lines in the bulk for edge events of the
// given type.
func (b *Bulk) RequestEvents(consumer string, t RequestType) error {
	if !t.IsEvent() {
		return errors.Wrapf(ErrInvalidConfig, "request type %s is not an edge event", t)
	}
	return b.Request(RequestConfig{Consumer: consumer, Type: t}, nil)
}

// Release releases all the lines in the bulk.
//
// Fails with ErrReleased, without releasing anything, if any line is not
// requested.
func (b *Bulk) Release() error {
	if _, err := b.checkChip(); err != nil {
		return err
	}
	for _, l := range b.lines {
		if l.req == nil {
			return errors.Wrapf(ErrReleased, "offset %d", l.offset)
		}
	}
	var err error
	for _, l := range b.lines {
		if l.req == nil {
			// duplicate already released
			continue
		}
		if rerr := l.release(true); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// Values returns the current logical values of the lines in the bulk.
//
// Lines may be spread across several requests, in which case each request
// is read once.
func (b *Bulk) Values() ([]int, error) {
	if _, err := b.checkChip(); err != nil {
		return nil, err
	}
	for _, l := range b.lines {
		if err := l.checkRequested(); err != nil {
			return nil, err
		}
	}
	data := make(map[*request]*uapi.HandleData)
	values := make([]int, len(b.lines))
	for i, l := range b.lines {
		hd, ok := data[l.req]
		if !ok {
			hd = &uapi.HandleData{}
			if err := uapi.GetLineValues(uintptr(l.req.fd), hd); err != nil {
				return nil, newSyscallError("get line values", err)
			}
			data[l.req] = hd
		}
		values[i] = int(hd[l.req.index(l)])
	}
	return values, nil
}

// SetValues sets the logical values of the output lines in the bulk.
//
// Any non-zero value is treated as 1.  Lines sharing a request with lines
// not in the bulk leave those other lines at their last set value.
func (b *Bulk) SetValues(values []int) error {
	if _, err := b.checkChip(); err != nil {
		return err
	}
	if len(values) != len(b.lines) {
		return errors.Wrapf(ErrValueCount, "%d values for %d lines", len(values), len(b.lines))
	}
	for _, l := range b.lines {
		if err := l.checkOutput(); err != nil {
			return err
		}
	}
	var order []*request
	data := make(map[*request]*uapi.HandleData)
	for i, l := range b.lines {
		r := l.req
		hd, ok := data[r]
		if !ok {
			hd = &uapi.HandleData{}
			for j, m := range r.lines {
				hd[j] = uint8(m.value)
			}
			data[r] = hd
			order = append(order, r)
		}
		hd[r.index(l)] = bit(values[i])
	}
	for _, r := range order {
		hd := data[r]
		if err := uapi.SetLineValues(uintptr(r.fd), *hd); err != nil {
			return newSyscallError("set line values", err)
		}
		for j, m := range r.lines {
			m.value = int(hd[j])
		}
	}
	return nil
}

// SetConfig reconfigures the lines in the bulk.
//
// The bulk must contain exactly the lines of one request, in the order they
// were requested, and that request must not be for edge events.
// The values apply to outputs and may be nil.
func (b *Bulk) SetConfig(t RequestType, flags RequestFlag, values []int) error {
	if _, err := b.checkChip(); err != nil {
		return err
	}
	if !t.IsDirection() {
		return errors.Wrapf(ErrInvalidConfig, "request type %s cannot be set", t)
	}
	if err := validateFlags(t, flags); err != nil {
		return err
	}
	if values != nil && len(values) != len(b.lines) {
		return errors.Wrapf(ErrValueCount, "%d values for %d lines", len(values), len(b.lines))
	}
	for _, l := range b.lines {
		if err := l.checkRequested(); err != nil {
			return err
		}
	}
	r := b.lines[0].req
	if r.events {
		return errors.Wrap(ErrInvalidConfig, "edge event lines cannot be reconfigured")
	}
	if r.held != len(r.lines) || len(r.lines) != len(b.lines) {
		return ErrSharedHandle
	}
	for i, l := range b.lines {
		if r.lines[i] != l {
			return ErrSharedHandle
		}
	}
	hc := uapi.HandleConfig{Flags: handleFlags(t, flags)}
	if values != nil {
		for i, v := range values {
			hc.DefaultValues[i] = bit(v)
		}
	}
	if err := uapi.SetLineConfig(uintptr(r.fd), &hc); err != nil {
		return newSyscallError("set line config", err)
	}
	for i, l := range b.lines {
		l.reqType = t
		l.reqFlags = flags
		if t == RequestDirectionOutput {
			l.value = int(hc.DefaultValues[i])
		}
		l.updateBestEffort()
	}
	return nil
}

// Watch starts watching all the lines in the bulk.
//
// If any line cannot be watched then the lines watched by this call are
// unwatched.
func (b *Bulk) Watch() error {
	if _, err := b.checkChip(); err != nil {
		return err
	}
	for i, l := range b.lines {
		if err := l.Watch(); err != nil {
			for _, w := range b.lines[:i] {
				if uerr := w.Unwatch(); uerr != nil {
					w.chip.log.WithError(uerr).WithField("offset", w.offset).Warn("rollback watch failed")
				}
			}
			return err
		}
	}
	return nil
}

// Unwatch stops watching all the lines in the bulk.
//
// Stops at the first line that fails to unwatch.
func (b *Bulk) Unwatch() error {
	if _, err := b.checkChip(); err != nil {
		return err
	}
	for _, l := range b.lines {
		if err := l.Unwatch(); err != nil {
			return err
		}
	}
	return nil
}

// EventWait waits up to timeout for edge events on any of the lines in the
// bulk.
//
// Returns the lines with events pending, which is empty if the timeout
// expired.  A negative timeout waits indefinitely.
func (b *Bulk) EventWait(timeout time.Duration) (*Bulk, error) {
	if _, err := b.checkChip(); err != nil {
		return nil, err
	}
	fds := make([]int, len(b.lines))
	for i, l := range b.lines {
		fd, err := l.EventFd()
		if err != nil {
			return nil, err
		}
		fds[i] = fd
	}
	ready, err := waitReadable(timeout, fds...)
	if err != nil {
		return nil, err
	}
	pending := &Bulk{}
	for i, r := range ready {
		if r {
			pending.lines = append(pending.lines, b.lines[i])
		}
	}
	return pending, nil
}
