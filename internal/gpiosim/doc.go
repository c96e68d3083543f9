// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package gpiosim builds simulated GPIO chips for testing gpiochar against a
real kernel.

The simulators are provided by the Linux [gpio-sim] kernel module, which
requires kernel 5.19 or later built with CONFIG_GPIO_SIM.  Building one
involves configfs and driving the lines involves sysfs, so root permissions
are typically required.  Where either is unavailable [New] fails with
[ErrUnavailable], and [ForTest] skips the test.

Each [Bank] passed to [New] becomes a [Chip] once the simulator is live.
Pulls applied to a Chip line, via [Chip.SetPull], determine the level read
by userspace from an input, and [Chip.Level] reports the level userspace is
driving an output to.

	s := gpiosim.ForTest(t,
		gpiosim.NewBank("left", 8,
			gpiosim.WithLineName(3, "LED0"),
			gpiosim.WithHog(2, "piggy", gpiosim.HogOutputLow),
		),
	)
	c := s.Chips[0]
	c.SetPull(5, 1)

[gpio-sim]: https://www.kernel.org/doc/html/latest/admin-guide/gpio/gpio-sim.html
*/
package gpiosim
