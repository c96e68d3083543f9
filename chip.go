// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

const (
	// The directory containing the GPIO character devices.
	devDir = "/dev/"

	// The name prefix shared by all GPIO character devices.
	chipPrefix = "gpiochip"
)

// OpenMode indicates how the descriptor passed to Open identifies the chip.
type OpenMode int

const (
	// ModeLookup tries, in order, the descriptor as a chip number, a label,
	// and then either a name or a path.
	ModeLookup OpenMode = iota

	// ModeByPath treats the descriptor as the path to the device,
	// e.g. "/dev/gpiochip0".
	ModeByPath

	// ModeByName treats the descriptor as the name of the device in /dev,
	// e.g. "gpiochip0".
	ModeByName

	// ModeByLabel treats the descriptor as the label of the chip.
	ModeByLabel

	// ModeByNumber treats the descriptor as the number of the chip,
	// e.g. "0" for gpiochip0.
	ModeByNumber
)

func (m OpenMode) String() string {
	switch m {
	case ModeLookup:
		return "lookup"
	case ModeByPath:
		return "path"
	case ModeByName:
		return "name"
	case ModeByLabel:
		return "label"
	case ModeByNumber:
		return "number"
	}
	return "unknown"
}

// Chip is an open GPIO character device.
//
// The Chip owns the device descriptor, which also carries the queue of watch
// events, and the registry of the Lines derived from it.
//
// A Chip is not safe for concurrent use.
type Chip struct {
	// The open character device.
	fd int

	// The path used to open the device.
	path string

	// The system name for the chip, e.g. "gpiochip0".
	name string

	// The identifying label added by the driver.
	label string

	// The number of lines on the chip.
	numLines int

	// The lines obtained from the chip, indexed by offset.
	//
	// Populated on demand.
	lines []*Line

	options chipOptions

	log logrus.FieldLogger

	closed bool
}

// Open opens the GPIO chip identified by descr, interpreted according to mode.
func Open(descr string, mode OpenMode, options ...ChipOption) (*Chip, error) {
	co := newChipOptions(options)
	if mode == ModeLookup {
		return openLookup(descr, co)
	}
	return openStep(lookupStep{mode, descr}, co)
}

// OpenByPath opens the GPIO chip at the given path.
func OpenByPath(path string, options ...ChipOption) (*Chip, error) {
	return Open(path, ModeByPath, options...)
}

// OpenByName opens the GPIO chip with the given name, e.g. "gpiochip0".
func OpenByName(name string, options ...ChipOption) (*Chip, error) {
	return Open(name, ModeByName, options...)
}

// OpenByLabel opens the first GPIO chip with the given label.
func OpenByLabel(label string, options ...ChipOption) (*Chip, error) {
	return Open(label, ModeByLabel, options...)
}

// OpenByNumber opens the GPIO chip with the given number.
func OpenByNumber(num uint, options ...ChipOption) (*Chip, error) {
	return Open(strconv.FormatUint(uint64(num), 10), ModeByNumber, options...)
}

// OpenLookup opens the GPIO chip identified by descr, which may be a chip
// number, label, name or path.
func OpenLookup(descr string, options ...ChipOption) (*Chip, error) {
	return Open(descr, ModeLookup, options...)
}

// lookupStep is one attempt to resolve a chip.
type lookupStep struct {
	mode  OpenMode
	descr string
}

// lookupPlan returns the ordered attempts used to resolve descr for
// OpenLookup.
//
// An unsigned integer is a chip number. Anything else is tried as a label,
// then as a path if it starts with /dev/, else as a name.
func lookupPlan(descr string) []lookupStep {
	if isUint(descr) {
		return []lookupStep{{ModeByNumber, descr}}
	}
	steps := []lookupStep{{ModeByLabel, descr}}
	if strings.HasPrefix(descr, devDir) {
		return append(steps, lookupStep{ModeByPath, descr})
	}
	return append(steps, lookupStep{ModeByName, descr})
}

func isUint(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// openLookup follows the lookupPlan for descr.
func openLookup(descr string, co chipOptions) (*Chip, error) {
	return followPlan(lookupPlan(descr), func(s lookupStep) (*Chip, error) {
		return openStep(s, co)
	})
}

// followPlan tries each step in turn until one succeeds.
//
// A failed step falls through to the next, whatever the error, and the
// error from the last step is returned if none succeed.
func followPlan(plan []lookupStep, open func(lookupStep) (*Chip, error)) (*Chip, error) {
	err := errors.Wrap(ErrNotFound, "empty lookup plan")
	for _, s := range plan {
		var c *Chip
		c, err = open(s)
		if err == nil {
			return c, nil
		}
	}
	return nil, err
}

func openStep(s lookupStep, co chipOptions) (*Chip, error) {
	switch s.mode {
	case ModeByPath:
		return openPath(s.descr, co)
	case ModeByName:
		return openPath(devDir+s.descr, co)
	case ModeByLabel:
		return openLabel(s.descr, co)
	case ModeByNumber:
		num, err := strconv.ParseUint(s.descr, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "chip number %q", s.descr)
		}
		return openPath(fmt.Sprintf("%s%s%d", devDir, chipPrefix, num), co)
	}
	return nil, errors.Wrapf(ErrInvalidArgument, "open mode %d", s.mode)
}

// openLabel opens each chip in turn until one with a matching label is found.
func openLabel(label string, co chipOptions) (*Chip, error) {
	names, err := chipCandidates()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		c, err := openPath(devDir+name, co)
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if c.label == label {
			return c, nil
		}
		c.Close()
	}
	return nil, errors.Wrapf(ErrNotFound, "no chip with label %q", label)
}

func openPath(path string, co chipOptions) (*Chip, error) {
	if err := isChip(path); err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, newSyscallError("open "+path, err)
	}
	ci, err := uapi.GetChipInfo(uintptr(fd))
	if err != nil {
		unix.Close(fd)
		return nil, newSyscallError("get chip info", err)
	}
	c := Chip{
		fd:       fd,
		path:     path,
		name:     uapi.BytesToString(ci.Name[:]),
		label:    uapi.BytesToString(ci.Label[:]),
		numLines: int(ci.Lines),
		lines:    make([]*Line, ci.Lines),
		options:  co,
	}
	if len(c.label) == 0 {
		c.label = "unknown"
	}
	c.log = co.log.WithField("chip", c.name)
	c.log.WithFields(logrus.Fields{
		"path":  path,
		"label": c.label,
		"lines": c.numLines,
	}).Debug("opened chip")
	return &c, nil
}

// isChip checks that the path refers to a GPIO character device.
//
// The device numbers of the (symlink resolved) path must match those the
// gpio bus reports in sysfs for a device of that name.
func isChip(path string) error {
	rpath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return newSyscallError("resolve "+path, err)
	}
	var stat unix.Stat_t
	if err = unix.Stat(rpath, &stat); err != nil {
		return newSyscallError("stat "+rpath, err)
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFCHR {
		return errors.Wrap(ErrNotCharacterDevice, path)
	}
	sysfsPath := fmt.Sprintf("/sys/bus/gpio/devices/%s/dev", filepath.Base(rpath))
	sysfsDev, err := os.ReadFile(sysfsPath)
	if err != nil {
		return errors.Wrap(ErrNotCharacterDevice, path)
	}
	dev := fmt.Sprintf("%d:%d", unix.Major(uint64(stat.Rdev)), unix.Minor(uint64(stat.Rdev)))
	if strings.TrimSpace(string(sysfsDev)) != dev {
		return errors.Wrap(ErrNotCharacterDevice, path)
	}
	return nil
}

// chipCandidates returns the names of the potential gpiochips in /dev, sorted
// by name.
//
// Does not check that they are valid.
func chipCandidates() ([]string, error) {
	ee, err := os.ReadDir(devDir)
	if err != nil {
		return nil, newSyscallError("read "+devDir, err)
	}
	var names []string
	for _, e := range ee {
		if strings.HasPrefix(e.Name(), chipPrefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (c *Chip) checkOpen() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Name returns the system name of the chip, e.g. "gpiochip0".
func (c *Chip) Name() (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	return c.name, nil
}

// Label returns the label of the chip, or "unknown" if the driver provides
// none.
func (c *Chip) Label() (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	return c.label, nil
}

// NumLines returns the number of lines on the chip.
func (c *Chip) NumLines() (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	return c.numLines, nil
}

// Path returns the path used to open the chip.
func (c *Chip) Path() string {
	return c.path
}

// GetLine returns the line at the given offset.
//
// The same Line is returned for the same offset for the lifetime of the
// chip.  The cached line info is refreshed from the kernel on each call.
func (c *Chip) GetLine(offset int) (*Line, error) {
	return c.getLine(offset, false)
}

// GetLineWatched returns the line at the given offset and starts watching it.
//
// Fails with ErrAlreadyWatched if the line is already watched.
func (c *Chip) GetLineWatched(offset int) (*Line, error) {
	return c.getLine(offset, true)
}

func (c *Chip) getLine(offset int, watched bool) (*Line, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if offset < 0 || offset >= c.numLines {
		return nil, errors.Wrapf(ErrInvalidOffset, "offset %d of %d", offset, c.numLines)
	}
	l := c.lines[offset]
	if l == nil {
		l = newLine(c, offset)
	}
	if err := l.Update(); err != nil {
		return nil, err
	}
	c.lines[offset] = l
	if watched {
		if err := l.Watch(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// GetLines returns the lines at the given offsets as a Bulk, in the order
// provided.
func (c *Chip) GetLines(offsets []int) (*Bulk, error) {
	return c.getLines(offsets, false)
}

// GetLinesWatched returns the lines at the given offsets as a Bulk, and
// starts watching them.
//
// If any line cannot be watched then all lines on the chip are unwatched.
func (c *Chip) GetLinesWatched(offsets []int) (*Bulk, error) {
	return c.getLines(offsets, true)
}

func (c *Chip) getLines(offsets []int, watched bool) (*Bulk, error) {
	b := &Bulk{}
	for _, o := range offsets {
		l, err := c.getLine(o, watched)
		if err == nil {
			err = b.Add(l)
		}
		if err != nil {
			if watched {
				c.unwatchAllBestEffort()
			}
			return nil, err
		}
	}
	return b, nil
}

// GetAllLines returns all the lines of the chip as a Bulk.
//
// Fails with ErrBulkFull for chips with more than MaxBulkLines lines.
func (c *Chip) GetAllLines() (*Bulk, error) {
	return c.getLines(c.allOffsets(), false)
}

// GetAllLinesWatched returns all the lines of the chip as a Bulk, and starts
// watching them.
func (c *Chip) GetAllLinesWatched() (*Bulk, error) {
	return c.getLines(c.allOffsets(), true)
}

func (c *Chip) allOffsets() []int {
	offsets := make([]int, c.numLines)
	for i := range offsets {
		offsets[i] = i
	}
	return offsets
}

// FindLine returns the first line on the chip with the given name.
//
// Returns nil, and no error, if no line has that name.
func (c *Chip) FindLine(name string) (*Line, error) {
	return c.findLine(name, false)
}

// FindLineWatched returns the first line on the chip with the given name,
// and starts watching it.
func (c *Chip) FindLineWatched(name string) (*Line, error) {
	return c.findLine(name, true)
}

func (c *Chip) findLine(name string, watched bool) (*Line, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	it := c.Lines()
	for it.Next() {
		l := it.Line()
		if l.info.Name != name {
			continue
		}
		if watched {
			if err := l.Watch(); err != nil {
				return nil, err
			}
		}
		return l, nil
	}
	return nil, it.Err()
}

// FindLines returns the lines with the given names as a Bulk, in the order
// provided.
//
// Returns nil, and no error, if any of the names is not found.
func (c *Chip) FindLines(names []string) (*Bulk, error) {
	return c.findLines(names, false)
}

// FindLinesWatched returns the lines with the given names as a Bulk, and
// starts watching them.
//
// If any name is not found, or any line cannot be watched, then all lines on
// the chip are unwatched.
func (c *Chip) FindLinesWatched(names []string) (*Bulk, error) {
	return c.findLines(names, true)
}

func (c *Chip) findLines(names []string, watched bool) (*Bulk, error) {
	b := &Bulk{}
	for _, name := range names {
		l, err := c.findLine(name, watched)
		if err == nil && l != nil {
			err = b.Add(l)
		}
		if err != nil || l == nil {
			if watched {
				c.unwatchAllBestEffort()
			}
			return nil, err
		}
	}
	return b, nil
}

// Close releases the chip.
//
// Any lines still requested are released, and all watches are dropped.
// Lines obtained from the chip are unusable once it is closed.
//
// Returns ErrClosed if the chip is already closed.
func (c *Chip) Close() error {
	if c.closed {
		return ErrClosed
	}
	var err error
	for _, l := range c.lines {
		if l == nil {
			continue
		}
		if l.req != nil {
			c.log.WithField("offset", l.offset).Debug("releasing line on close")
			if rerr := l.release(false); rerr != nil && err == nil {
				err = rerr
			}
		}
		l.watched = false
	}
	c.closed = true
	if cerr := unix.Close(c.fd); cerr != nil && err == nil {
		err = newSyscallError("close chip", cerr)
	}
	c.log.Debug("closed chip")
	return err
}
