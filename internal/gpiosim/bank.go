// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

// Bank describes a chip to be simulated.
type Bank struct {
	// The label reported for the chip.
	Label string

	// The number of lines on the chip.
	NumLines int

	// Names assigned to lines, keyed by offset.
	//
	// Names do not need to be unique.
	Names map[int]string

	// Lines held by a kernel consumer, keyed by offset.
	Hogs map[int]Hog
}

// NewBank creates a Bank with the given label and number of lines.
//
// The available options are [WithLineName] and [WithHog].
func NewBank(label string, numLines int, options ...BankOption) *Bank {
	b := &Bank{Label: label, NumLines: numLines}
	for _, o := range options {
		o.applyBankOption(b)
	}
	return b
}

// BankOption modifies a Bank.
type BankOption interface {
	applyBankOption(*Bank)
}

// Hog is a line held by a consumer inside the kernel.
//
// A hogged line appears requested to userspace and cannot be requested.
type Hog struct {
	Consumer  string
	Direction HogDirection
}

// HogDirection is the direction a hogged line is held in.
type HogDirection int

const (
	// HogInput holds the line as an input.
	HogInput HogDirection = iota

	// HogOutputLow holds the line as an output driven low.
	HogOutputLow

	// HogOutputHigh holds the line as an output driven high.
	HogOutputHigh
)

// String returns the direction as written to configfs.
func (d HogDirection) String() string {
	switch d {
	case HogOutputLow:
		return "output-low"
	case HogOutputHigh:
		return "output-high"
	}
	return "input"
}

type lineNameOption struct {
	offset int
	name   string
}

// WithLineName names the line at the offset.
func WithLineName(offset int, name string) BankOption {
	return lineNameOption{offset, name}
}

func (o lineNameOption) applyBankOption(b *Bank) {
	if b.Names == nil {
		b.Names = make(map[int]string)
	}
	b.Names[o.offset] = o.name
}

type hogOption struct {
	offset int
	hog    Hog
}

// WithHog hogs the line at the offset.
func WithHog(offset int, consumer string, direction HogDirection) BankOption {
	return hogOption{offset, Hog{consumer, direction}}
}

func (o hogOption) applyBankOption(b *Bank) {
	if b.Hogs == nil {
		b.Hogs = make(map[int]Hog)
	}
	b.Hogs[o.offset] = o.hog
}
