// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Chip is a live simulated chip.
type Chip struct {
	bank Bank

	// The name of the gpiochip, e.g. "gpiochip3".
	name string

	// The path of the device in /dev.
	devPath string

	// The directory of the chip's line attributes in sysfs.
	sysfsPath string
}

// Name returns the name of the gpiochip, e.g. "gpiochip3".
func (c *Chip) Name() string {
	return c.name
}

// Number returns the number of the gpiochip, e.g. 3 for "gpiochip3".
func (c *Chip) Number() uint {
	n, _ := strconv.ParseUint(strings.TrimPrefix(c.name, "gpiochip"), 10, 32)
	return uint(n)
}

// Path returns the path to the gpiochip device, e.g. "/dev/gpiochip3".
func (c *Chip) Path() string {
	return c.devPath
}

// Label returns the label of the chip.
func (c *Chip) Label() string {
	return c.bank.Label
}

// NumLines returns the number of lines on the chip.
func (c *Chip) NumLines() int {
	return c.bank.NumLines
}

// Bank returns the configuration of the chip.
func (c *Chip) Bank() Bank {
	return c.bank
}

// Pull returns the pull applied to the line, 1 for pull-up and 0 for
// pull-down.
func (c *Chip) Pull(offset int) (int, error) {
	v, err := c.lineAttr(offset, "pull")
	if err != nil {
		return 0, err
	}
	switch v {
	case "pull-down":
		return 0, nil
	case "pull-up":
		return 1, nil
	}
	return 0, errors.Errorf("line %d: unexpected pull %q", offset, v)
}

// SetPull pulls the line up, for a non-zero level, or down.
//
// This sets the level read from an input line.
func (c *Chip) SetPull(offset int, level int) error {
	pull := "pull-down"
	if level != 0 {
		pull = "pull-up"
	}
	return c.setLineAttr(offset, "pull", pull)
}

// Toggle inverts the pull of the line.
func (c *Chip) Toggle(offset int) error {
	p, err := c.Pull(offset)
	if err != nil {
		return err
	}
	return c.SetPull(offset, p^1)
}

// Level returns the level of the line.
//
// For an output this is the level userspace is driving the line to.
func (c *Chip) Level(offset int) (int, error) {
	v, err := c.lineAttr(offset, "value")
	if err != nil {
		return 0, err
	}
	switch v {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, errors.Errorf("line %d: unexpected value %q", offset, v)
}

func (c *Chip) linePath(offset int) string {
	return path.Join(c.sysfsPath, fmt.Sprintf("sim_gpio%d", offset))
}

func (c *Chip) lineAttr(offset int, name string) (string, error) {
	return readAttr(c.linePath(offset), name)
}

func (c *Chip) setLineAttr(offset int, name, value string) error {
	return writeAttr(c.linePath(offset), name, value)
}
