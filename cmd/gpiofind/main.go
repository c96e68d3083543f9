// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// gpiofind finds a GPIO line by name, printing the chip name and offset in a
// form usable by gpioget.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiochar"
	"github.com/warthog618/go-gpiochar/internal/cli"
)

func main() {
	fs := flag.NewFlagSet("gpiofind", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [OPTIONS] <name>\n\nFind a GPIO line by name.\n\nOptions:\n", fs.Name())
		fs.PrintDefaults()
	}
	level := cli.LogLevelFlag(fs)
	fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one GPIO line name must be specified")
		os.Exit(1)
	}
	log := cli.NewLogger(logrus.Level(*level))

	l, err := gpiochar.FindLine(fs.Arg(0), gpiochar.WithLogger(log))
	if err != nil {
		cli.Fatal(log, err, "error performing the line lookup")
	}
	if l == nil {
		os.Exit(1)
	}
	c := l.Chip()
	name, _ := c.Name()
	fmt.Printf("%s %d\n", name, l.Offset())
	c.Close()
}
