// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

// Direction is the direction of a line.
type Direction int

const (
	// DirectionInput indicates the line is an input.
	DirectionInput Direction = iota + 1

	// DirectionOutput indicates the line is an output.
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	}
	return "unknown"
}

// ActiveState indicates the logical level corresponding to a physical high.
type ActiveState int

const (
	// ActiveHigh indicates a physical high is logical 1.
	ActiveHigh ActiveState = iota + 1

	// ActiveLow indicates a physical low is logical 1.
	ActiveLow
)

func (a ActiveState) String() string {
	switch a {
	case ActiveHigh:
		return "active-high"
	case ActiveLow:
		return "active-low"
	}
	return "unknown"
}

// Bias is the internal bias applied to a line.
type Bias int

const (
	// BiasAsIs indicates the bias is not reported, and is whatever the
	// hardware defaults to.
	BiasAsIs Bias = iota + 1

	// BiasDisabled indicates the internal bias is disabled.
	BiasDisabled

	// BiasPullUp indicates the line is pulled up.
	BiasPullUp

	// BiasPullDown indicates the line is pulled down.
	BiasPullDown
)

func (b Bias) String() string {
	switch b {
	case BiasAsIs:
		return "as-is"
	case BiasDisabled:
		return "disabled"
	case BiasPullUp:
		return "pull-up"
	case BiasPullDown:
		return "pull-down"
	}
	return "unknown"
}

// LineInfo is a snapshot of the kernel's view of a line.
type LineInfo struct {
	Offset     int
	Name       string
	Consumer   string
	Used       bool
	Direction  Direction
	Active     ActiveState
	Bias       Bias
	OpenDrain  bool
	OpenSource bool
}

func newLineInfo(li uapi.LineInfo) LineInfo {
	info := LineInfo{
		Offset:     int(li.Offset),
		Name:       uapi.BytesToString(li.Name[:]),
		Consumer:   uapi.BytesToString(li.Consumer[:]),
		Used:       li.Flags.IsUsed(),
		Direction:  DirectionInput,
		Active:     ActiveHigh,
		Bias:       BiasAsIs,
		OpenDrain:  li.Flags.IsOpenDrain(),
		OpenSource: li.Flags.IsOpenSource(),
	}
	if li.Flags.IsOut() {
		info.Direction = DirectionOutput
	}
	if li.Flags.IsActiveLow() {
		info.Active = ActiveLow
	}
	switch {
	case li.Flags.IsBiasDisable():
		info.Bias = BiasDisabled
	case li.Flags.IsPullUp():
		info.Bias = BiasPullUp
	case li.Flags.IsPullDown():
		info.Bias = BiasPullDown
	}
	return info
}

// request is a kernel request fd shared by the lines it covers.
type request struct {
	fd int

	// The lines in the order known to the kernel.
	lines []*Line

	// True if the fd reports edge events.
	events bool

	// The number of lines still holding the request.
	//
	// The fd is closed when this drops to zero.
	held int
}

// index returns the position of the line within the kernel request.
func (r *request) index(l *Line) int {
	for i, m := range r.lines {
		if m == l {
			return i
		}
	}
	return -1
}

// Line is a single GPIO line on a chip.
//
// Lines are owned by their Chip, and there is only ever one Line for a given
// offset on a given Chip.  Lines become unusable once the Chip is closed.
type Line struct {
	chip   *Chip
	offset int

	// The cached info, as of the last Update, request or watch event.
	info LineInfo

	watched bool

	// The kernel request currently holding the line, if any.
	req *request

	// How the line was last requested or reconfigured.
	reqType  RequestType
	reqFlags RequestFlag

	// The last value written to the line.
	value int
}

func newLine(c *Chip, offset int) *Line {
	return &Line{
		chip:   c,
		offset: offset,
		info:   LineInfo{Offset: offset},
	}
}

// Offset returns the offset of the line on its chip.
func (l *Line) Offset() int {
	return l.offset
}

// Chip returns the chip the line belongs to.
func (l *Line) Chip() *Chip {
	return l.chip
}

// Info returns the cached line info.
func (l *Line) Info() LineInfo {
	return l.info
}

// Name returns the cached name of the line, which may be empty.
func (l *Line) Name() string {
	return l.info.Name
}

// Consumer returns the cached consumer of the line, which may be empty.
func (l *Line) Consumer() string {
	return l.info.Consumer
}

// Direction returns the cached direction of the line.
func (l *Line) Direction() Direction {
	return l.info.Direction
}

// ActiveState returns the cached active state of the line.
func (l *Line) ActiveState() ActiveState {
	return l.info.Active
}

// Bias returns the cached bias of the line.
func (l *Line) Bias() Bias {
	return l.info.Bias
}

// IsUsed returns true if the line was in use, by this or any other process,
// as of the last update.
func (l *Line) IsUsed() bool {
	return l.info.Used
}

// IsOpenDrain returns true if the line was configured open drain as of the
// last update.
func (l *Line) IsOpenDrain() bool {
	return l.info.OpenDrain
}

// IsOpenSource returns true if the line was configured open source as of the
// last update.
func (l *Line) IsOpenSource() bool {
	return l.info.OpenSource
}

// IsRequested returns true if the line is currently requested by this chip.
func (l *Line) IsRequested() bool {
	return l.req != nil
}

// IsWatched returns true if the line info is being watched.
func (l *Line) IsWatched() bool {
	return l.watched
}

// RequestType returns how the line was requested, or RequestNone if it is not
// requested.
func (l *Line) RequestType() RequestType {
	return l.reqType
}

// Update refreshes the cached line info from the kernel.
func (l *Line) Update() error {
	if err := l.chip.checkOpen(); err != nil {
		return err
	}
	li, err := uapi.GetLineInfo(uintptr(l.chip.fd), l.offset)
	if err != nil {
		return newSyscallError("get line info", err)
	}
	l.info = newLineInfo(li)
	return nil
}

// updateBestEffort refreshes the cached info, logging rather than returning
// any failure.
func (l *Line) updateBestEffort() {
	if err := l.Update(); err != nil {
		l.chip.log.WithError(err).WithField("offset", l.offset).Debug("update line info failed")
	}
}

// Request requests the line with the given config.
//
// The defaultValue is applied to lines requested as outputs.
func (l *Line) Request(cfg RequestConfig, defaultValue int) error {
	b := Bulk{lines: []*Line{l}}
	return b.Request(cfg, []int{defaultValue})
}

// RequestInput requests the line as an input.
func (l *Line) RequestInput(consumer string) error {
	return l.Request(RequestConfig{Consumer: consumer, Type: RequestDirectionInput}, 0)
}

// RequestOutput requests the line as an output, initially set to
// defaultValue.
func (l *Line) RequestOutput(consumer string, defaultValue int) error {
	return l.Request(RequestConfig{Consumer: consumer, Type: RequestDirectionOutput}, defaultValue)
}

// RequestRisingEdgeEvents requests the line as an input reporting rising
// edges.
func (l *Line) RequestRisingEdgeEvents(consumer string) error {
	return l.Request(RequestConfig{Consumer: consumer, Type: RequestEventRisingEdge}, 0)
}

// RequestFallingEdgeEvents requests the line as an input reporting falling
// edges.
func (l *Line) RequestFallingEdgeEvents(consumer string) error {
	return l.Request(RequestConfig{Consumer: consumer, Type: RequestEventFallingEdge}, 0)
}

// RequestBothEdgesEvents requests the line as an input reporting both rising
// and falling edges.
func (l *Line) RequestBothEdgesEvents(consumer string) error {
	return l.Request(RequestConfig{Consumer: consumer, Type: RequestEventBothEdges}, 0)
}

// Release releases the line.
//
// Returns ErrReleased if the line is not requested.
func (l *Line) Release() error {
	if err := l.chip.checkOpen(); err != nil {
		return err
	}
	if l.req == nil {
		return errors.Wrapf(ErrReleased, "offset %d", l.offset)
	}
	return l.release(true)
}

// release detaches the line from its request, closing the request fd if
// this was the last line holding it.
func (l *Line) release(refresh bool) error {
	r := l.req
	l.req = nil
	l.reqType = RequestNone
	l.reqFlags = 0
	r.held--
	var err error
	if r.held == 0 {
		err = newSyscallError("close request", unix.Close(r.fd))
	}
	if refresh {
		l.updateBestEffort()
	}
	return err
}

func (l *Line) checkRequested() error {
	if err := l.chip.checkOpen(); err != nil {
		return err
	}
	if l.req == nil {
		return errors.Wrapf(ErrNotRequested, "offset %d", l.offset)
	}
	return nil
}

// checkOutput checks the line may be set.
func (l *Line) checkOutput() error {
	if err := l.checkRequested(); err != nil {
		return err
	}
	switch {
	case l.req.events, l.reqType == RequestDirectionInput:
		return errors.Wrapf(ErrNotOutput, "offset %d", l.offset)
	case l.reqType == RequestDirectionAsIs && l.info.Direction != DirectionOutput:
		return errors.Wrapf(ErrNotOutput, "offset %d", l.offset)
	}
	return nil
}

// Value returns the current logical value of the line.
func (l *Line) Value() (int, error) {
	if err := l.checkRequested(); err != nil {
		return 0, err
	}
	var hd uapi.HandleData
	if err := uapi.GetLineValues(uintptr(l.req.fd), &hd); err != nil {
		return 0, newSyscallError("get line values", err)
	}
	return int(hd[l.req.index(l)]), nil
}

// SetValue sets the logical value of an output line.
//
// Any non-zero value is treated as 1.
func (l *Line) SetValue(value int) error {
	b := Bulk{lines: []*Line{l}}
	return b.SetValues([]int{value})
}

// SetConfig reconfigures the line.
//
// The line must be the only line held by its request, and must not be
// requested for edge events.  The value applies to outputs.
func (l *Line) SetConfig(t RequestType, flags RequestFlag, value int) error {
	b := Bulk{lines: []*Line{l}}
	return b.SetConfig(t, flags, []int{value})
}

// SetFlags changes the flags of the line, retaining its direction.
func (l *Line) SetFlags(flags RequestFlag) error {
	t := RequestDirectionInput
	if l.info.Direction == DirectionOutput {
		t = RequestDirectionOutput
	}
	return l.SetConfig(t, flags, l.value)
}

// SetDirectionInput switches the line to an input.
//
// Drive flags, which only apply to outputs, are cleared.
func (l *Line) SetDirectionInput() error {
	return l.SetConfig(RequestDirectionInput, l.reqFlags&^driveFlags, 0)
}

// SetDirectionOutput switches the line to an output set to value.
func (l *Line) SetDirectionOutput(value int) error {
	return l.SetConfig(RequestDirectionOutput, l.reqFlags, value)
}

func bit(v int) uint8 {
	if v != 0 {
		return 1
	}
	return 0
}
