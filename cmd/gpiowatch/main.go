// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// gpiowatch monitors lines on a GPIO chip for requests, releases and
// changes of configuration.
package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiochar"
	"github.com/warthog618/go-gpiochar/internal/cli"
	"golang.org/x/sys/unix"
)

// pollTimeout is the poll period, in milliseconds.
const pollTimeout = 10000

func main() {
	fs := flag.NewFlagSet("gpiowatch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [OPTIONS] <chip name/number> <offset 1> <offset 2> ...\n\nMonitor state changes of GPIO lines (request, release and config operations).\n\nOptions:\n", fs.Name())
		fs.PrintDefaults()
	}
	numEvents := fs.Uint("n", 0, "exit after processing NUM events")
	silent := fs.Bool("s", false, "don't print event info")
	verbose := fs.Bool("V", false, "print previous and new line info on every event")
	filterList := fs.String("f", "", "comma-separated list of event types to display [request,release,config]")
	level := cli.LogLevelFlag(fs)
	fs.Parse(os.Args[1:])
	log := cli.NewLogger(logrus.Level(*level))

	if fs.NArg() < 1 {
		log.Fatal("gpiochip must be specified")
	}
	if *silent && *verbose {
		log.Fatal("-s and -V must not be used at the same time")
	}
	offsets, err := cli.ParseOffsets(fs.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}
	filter, err := cli.ParseWatchFilter(*filterList)
	if err != nil {
		log.Fatal(err)
	}

	c, err := gpiochar.OpenLookup(fs.Arg(0), gpiochar.WithLogger(log))
	if err != nil {
		cli.Fatal(log, err, "unable to access the GPIO chip "+fs.Arg(0))
	}
	defer c.Close()
	lines, err := c.GetLinesWatched(offsets)
	if err != nil {
		cli.Fatal(log, err, "unable to retrieve GPIO lines")
	}
	prev := make(map[int]gpiochar.LineInfo)
	for _, l := range lines.Lines() {
		prev[l.Offset()] = l.Info()
	}

	sfd, err := cli.NewSignalFd(syscall.SIGINT, syscall.SIGTERM)
	if err != nil {
		log.WithError(err).Fatal("unable to create signal fd")
	}
	defer sfd.Close()
	wfd, err := c.WatchFd()
	if err != nil {
		cli.Fatal(log, err, "unable to get watch fd")
	}
	pfd := []unix.PollFd{
		{Fd: int32(wfd), Events: unix.POLLIN | unix.POLLPRI},
		{Fd: int32(sfd.Fd()), Events: unix.POLLIN | unix.POLLPRI},
	}

	var processed uint
	for {
		n, err := unix.Poll(pfd, pollTimeout)
		if err == unix.EINTR || n == 0 {
			continue
		}
		if err != nil {
			log.WithError(err).Fatal("poll error")
		}
		if pfd[1].Revents != 0 {
			return
		}
		evs, rerr := c.WatchEventReadMultiple()
		for _, ev := range evs {
			if !filter[ev.Type] {
				continue
			}
			if !*silent {
				fmt.Println(cli.FormatWatchEvent(ev))
			}
			if *verbose {
				o := ev.Line.Offset()
				fmt.Printf("%s -> %s\n", cli.FormatLineInfo(prev[o]), cli.FormatLineInfo(ev.Info))
				prev[o] = ev.Info
			}
			if *numEvents > 0 {
				processed++
				if processed == *numEvents {
					return
				}
			}
		}
		if rerr != nil {
			cli.Fatal(log, rerr, "error reading line state change events")
		}
	}
}
