// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cli provides the plumbing shared by the gpiochar tools.
package cli

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiochar"
)

// LogLevelFlag registers the -loglevel flag on the flag set.
func LogLevelFlag(fs *flag.FlagSet) *int {
	return fs.Int("loglevel", int(logrus.WarnLevel),
		"The loglevel to use, from 0 (panic) to 6 (trace)")
}

// NewLogger creates a logger writing prefixed text entries to stderr.
func NewLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	f := new(prefixed.TextFormatter)
	f.TimestampFormat = "2006-01-02 15:04:05"
	f.FullTimestamp = true
	f.PrefixPadding = 20
	f.SpacePadding = 50
	log.SetFormatter(f)
	return log
}

// Describe returns a short description of the kind of the error.
func Describe(err error) string {
	switch gpiochar.Kind(err) {
	case gpiochar.ErrNotFound:
		return "not found"
	case gpiochar.ErrBusy:
		return "busy"
	case gpiochar.ErrInvalidArgument:
		return "invalid argument"
	case gpiochar.ErrPermissionDenied:
		return "permission denied"
	case gpiochar.ErrIO:
		return "i/o error"
	case gpiochar.ErrInvalidState:
		return "invalid state"
	}
	if err == nil {
		return "success"
	}
	return "other"
}

// Fatal logs the error and exits.
func Fatal(log logrus.FieldLogger, err error, msg string) {
	log.WithError(err).WithField("kind", Describe(err)).Fatal(msg)
}

// ParseOffsets converts the arguments to line offsets.
func ParseOffsets(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one GPIO line offset must be specified")
	}
	offsets := make([]int, len(args))
	for i, a := range args {
		o, err := strconv.ParseUint(a, 10, 64)
		if err != nil || o > math.MaxInt32 {
			return nil, errors.Errorf("invalid GPIO offset: %s", a)
		}
		offsets[i] = int(o)
	}
	return offsets, nil
}

// ParseBias converts a bias name to the corresponding request flag.
func ParseBias(bias string) (gpiochar.RequestFlag, error) {
	switch bias {
	case "as-is", "":
		return 0, nil
	case "disable":
		return gpiochar.RequestFlagBiasDisable, nil
	case "pull-down":
		return gpiochar.RequestFlagBiasPullDown, nil
	case "pull-up":
		return gpiochar.RequestFlagBiasPullUp, nil
	}
	return 0, errors.Errorf("invalid bias: %s", bias)
}

// ParseWatchFilter converts a comma separated list of request, release and
// config into the set of watch event types to report.
//
// An empty list reports all types.
func ParseWatchFilter(list string) (map[gpiochar.WatchEventType]bool, error) {
	filter := map[gpiochar.WatchEventType]bool{}
	if len(list) == 0 {
		filter[gpiochar.LineRequested] = true
		filter[gpiochar.LineReleased] = true
		filter[gpiochar.LineConfigChanged] = true
		return filter, nil
	}
	for _, f := range strings.Split(list, ",") {
		switch strings.TrimSpace(f) {
		case "request":
			filter[gpiochar.LineRequested] = true
		case "release":
			filter[gpiochar.LineReleased] = true
		case "config":
			filter[gpiochar.LineConfigChanged] = true
		default:
			return nil, errors.Errorf("invalid filter: %s", f)
		}
	}
	return filter, nil
}

// FormatWatchEvent describes the watch event on a single line.
func FormatWatchEvent(ev gpiochar.WatchEvent) string {
	var kind string
	switch ev.Type {
	case gpiochar.LineRequested:
		kind = "REQUESTED"
	case gpiochar.LineReleased:
		kind = "RELEASED"
	case gpiochar.LineConfigChanged:
		kind = "CONFIG CHANGED"
	}
	sec := int64(ev.Timestamp / 1e9)
	nsec := int64(ev.Timestamp % 1e9)
	return fmt.Sprintf("event: %14s offset: %3d timestamp: [%8d.%09d]",
		kind, ev.Line.Offset(), sec, nsec)
}

// FormatLineInfo describes the line info on a single line.
func FormatLineInfo(li gpiochar.LineInfo) string {
	var sb strings.Builder
	sb.WriteString("{")
	if len(li.Name) > 0 {
		fmt.Fprintf(&sb, "%q ", li.Name)
	} else {
		sb.WriteString("unnamed ")
	}
	if li.Used {
		fmt.Fprintf(&sb, "%q ", li.Consumer)
	} else {
		sb.WriteString("unused ")
	}
	sb.WriteString(li.Direction.String())
	sb.WriteString(" ")
	sb.WriteString(li.Active.String())
	var attrs []string
	if li.Used {
		attrs = append(attrs, "used")
	}
	if li.OpenDrain {
		attrs = append(attrs, "open-drain")
	}
	if li.OpenSource {
		attrs = append(attrs, "open-source")
	}
	switch li.Bias {
	case gpiochar.BiasPullUp:
		attrs = append(attrs, "pull-up")
	case gpiochar.BiasPullDown:
		attrs = append(attrs, "pull-down")
	case gpiochar.BiasDisabled:
		attrs = append(attrs, "bias-disabled")
	}
	if len(attrs) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(attrs, " "))
	}
	sb.WriteString("}")
	return sb.String()
}
