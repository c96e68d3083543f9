// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// gpioget reads the values of lines on a GPIO chip.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiochar"
	"github.com/warthog618/go-gpiochar/internal/cli"
)

func main() {
	fs := flag.NewFlagSet("gpioget", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [OPTIONS] <chip name/number> <offset 1> <offset 2> ...\n\nRead line value(s) from a GPIO chip.\n\nOptions:\n", fs.Name())
		fs.PrintDefaults()
	}
	activeLow := fs.Bool("l", false, "set the line active state to low")
	asIs := fs.Bool("n", false, "don't force-reconfigure line direction")
	bias := fs.String("B", "as-is", "set the line bias [as-is|disable|pull-down|pull-up]")
	level := cli.LogLevelFlag(fs)
	fs.Parse(os.Args[1:])
	log := cli.NewLogger(logrus.Level(*level))

	if fs.NArg() < 1 {
		log.Fatal("gpiochip must be specified")
	}
	offsets, err := cli.ParseOffsets(fs.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg := gpiochar.RequestConfig{
		Consumer: "gpioget",
		Type:     gpiochar.RequestDirectionInput,
	}
	if *asIs {
		cfg.Type = gpiochar.RequestDirectionAsIs
	}
	if *activeLow {
		cfg.Flags |= gpiochar.RequestFlagActiveLow
	}
	bf, err := cli.ParseBias(*bias)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Flags |= bf

	c, err := gpiochar.OpenLookup(fs.Arg(0), gpiochar.WithLogger(log))
	if err != nil {
		cli.Fatal(log, err, "unable to open "+fs.Arg(0))
	}
	defer c.Close()
	lines, err := c.GetLines(offsets)
	if err != nil {
		cli.Fatal(log, err, "unable to retrieve GPIO lines from chip")
	}
	if err = lines.Request(cfg, nil); err != nil {
		cli.Fatal(log, err, "unable to request lines")
	}
	values, err := lines.Values()
	if err != nil {
		cli.Fatal(log, err, "error reading GPIO values")
	}
	vv := make([]string, len(values))
	for i, v := range values {
		vv[i] = fmt.Sprint(v)
	}
	fmt.Println(strings.Join(vv, " "))
}
