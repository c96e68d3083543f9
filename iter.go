// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"github.com/pkg/errors"
)

// ChipNames returns the names of the GPIO chips in /dev, sorted by name.
//
// Only character devices confirmed to be GPIO chips are included.
func ChipNames() ([]string, error) {
	cc, err := chipCandidates()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range cc {
		if isChip(devDir+name) == nil {
			names = append(names, name)
		}
	}
	return names, nil
}

// ChipIter iterates over the GPIO chips on the system, in name order.
//
// Chips that cannot be opened due to permissions, or that turn out not to be
// GPIO chips, are skipped.  Each chip returned is owned by the caller, who
// must close it.
//
//	it, err := gpiochar.NewChipIter()
//	...
//	for it.Next() {
//		c := it.Chip()
//		...
//		c.Close()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type ChipIter struct {
	names   []string
	next    int
	options []ChipOption
	chip    *Chip
	err     error
}

// NewChipIter creates an iterator over the GPIO chips on the system.
//
// The options are applied to each chip opened.
func NewChipIter(options ...ChipOption) (*ChipIter, error) {
	names, err := chipCandidates()
	if err != nil {
		return nil, err
	}
	return &ChipIter{names: names, options: options}, nil
}

// Next opens the next chip.
//
// Returns false when there are no more chips, or an error occurred.
func (it *ChipIter) Next() bool {
	it.chip = nil
	for it.err == nil && it.next < len(it.names) {
		name := it.names[it.next]
		it.next++
		c, err := OpenByName(name, it.options...)
		if err == nil {
			it.chip = c
			return true
		}
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) {
			continue
		}
		it.err = err
	}
	return false
}

// Chip returns the chip opened by the last successful Next.
func (it *ChipIter) Chip() *Chip {
	return it.chip
}

// Err returns the error that terminated the iteration, if any.
func (it *ChipIter) Err() error {
	return it.err
}

// Reset restarts the iteration from the first chip.
func (it *ChipIter) Reset() {
	it.next = 0
	it.chip = nil
	it.err = nil
}

// LineIter iterates over the lines of a chip, in offset order.
type LineIter struct {
	chip *Chip
	next int
	line *Line
	err  error
}

// Lines returns an iterator over the lines of the chip.
func (c *Chip) Lines() *LineIter {
	return &LineIter{chip: c}
}

// Next gets the next line.
//
// Returns false when there are no more lines, or an error occurred.
func (it *LineIter) Next() bool {
	it.line = nil
	if it.err != nil || it.next >= it.chip.numLines {
		return false
	}
	l, err := it.chip.GetLine(it.next)
	if err != nil {
		it.err = err
		return false
	}
	it.next++
	it.line = l
	return true
}

// Line returns the line obtained by the last successful Next.
func (it *LineIter) Line() *Line {
	return it.line
}

// Err returns the error that terminated the iteration, if any.
func (it *LineIter) Err() error {
	return it.err
}

// Reset restarts the iteration from offset 0.
func (it *LineIter) Reset() {
	it.next = 0
	it.line = nil
	it.err = nil
}

// FindLine searches all the chips on the system for the first line with the
// given name.
//
// Returns nil, and no error, if no line has that name.  The chip containing
// a found line is left open and must be closed by the caller via
// line.Chip().Close().
func FindLine(name string, options ...ChipOption) (*Line, error) {
	it, err := NewChipIter(options...)
	if err != nil {
		return nil, err
	}
	for it.Next() {
		c := it.Chip()
		l, err := c.FindLine(name)
		if l != nil {
			return l, nil
		}
		c.Close()
		if err != nil {
			return nil, err
		}
	}
	return nil, it.Err()
}

// OpenLine opens the chip identified by descr, as per OpenLookup, and
// returns the line at the given offset.
//
// The chip must be closed by the caller via line.Chip().Close().
func OpenLine(descr string, offset int, options ...ChipOption) (*Line, error) {
	c, err := OpenLookup(descr, options...)
	if err != nil {
		return nil, err
	}
	l, err := c.GetLine(offset)
	if err != nil {
		c.Close()
		return nil, err
	}
	return l, nil
}
