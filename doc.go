// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpiochar provides access to GPIO lines via the Linux GPIO character
device uAPI (v1).

A [Chip] is an open GPIO character device, located by path, name, label or
number using [Open] and its variants.  Lines are obtained from the chip by
offset or name, and are owned by it.  There is only ever one [Line] for a
given offset on a chip, so lines may be compared by identity.

Lines are requested as inputs, outputs, or for edge events.  A [Bulk] groups
lines from one chip so they can be requested, read and written together.

The chip can also watch lines for changes to their info, such as being
requested or released by other processes, and report those as
[WatchEvent]s.

Chips and the lines obtained from them are not safe for concurrent use.

# Example Usage

Read a line:

	c, err := gpiochar.OpenLookup("gpiochip0")
	...
	defer c.Close()
	l, err := c.GetLine(4)
	...
	err = l.RequestInput("myapp")
	...
	v, err := l.Value()

Drive a group of lines:

	b, err := c.GetLines([]int{2, 3, 5})
	...
	err = b.RequestOutput("myapp", []int{1, 0, 1})
	...
	err = b.SetValues([]int{0, 1, 0})

Watch a line for other users:

	l, err := c.GetLineWatched(7)
	...
	for {
		ok, err := c.WatchEventWait(time.Second)
		...
		if ok {
			ev, err := c.WatchEventRead()
			...
		}
	}

All errors returned by the package are of one of a small set of kinds,
identified by [Kind], and those from the kernel also match their errno:

	err := l.RequestInput("myapp")
	if errors.Is(err, gpiochar.ErrBusy) {
		// line held by someone else
	}
*/
package gpiochar
