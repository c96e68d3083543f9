// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// gpiodetect lists the GPIO chips on the system, with their labels and
// number of lines.
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
	fs := flag.NewFlagSet("gpiodetect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [OPTIONS]\n\nList all GPIO chips, print their labels and number of GPIO lines.\n\nOptions:\n", fs.Name())
		fs.PrintDefaults()
	}
	level := cli.LogLevelFlag(fs)
	fs.Parse(os.Args[1:])
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "unrecognized argument:", fs.Arg(0))
		os.Exit(1)
	}
	log := cli.NewLogger(logrus.Level(*level))

	it, err := gpiochar.NewChipIter(gpiochar.WithLogger(log))
	if err != nil {
		cli.Fatal(log, err, "unable to access GPIO chips")
	}
	for it.Next() {
		c := it.Chip()
		name, _ := c.Name()
		label, _ := c.Label()
		n, _ := c.NumLines()
		fmt.Printf("%s [%s] (%d lines)\n", name, label, n)
		c.Close()
	}
	if err = it.Err(); err != nil {
		cli.Fatal(log, err, "unable to access GPIO chips")
	}
}
