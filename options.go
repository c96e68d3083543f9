// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ChipOption defines the interface required to provide an option to Open and
// related functions.
type ChipOption interface {
	applyChipOption(*chipOptions)
}

// chipOptions contains the options applied to a chip and the lines derived
// from it.
type chipOptions struct {
	// The consumer used for requests that do not provide one.
	consumer string

	// The logger for debug and cleanup reporting.
	log logrus.FieldLogger
}

func defaultChipOptions() chipOptions {
	return chipOptions{
		consumer: fmt.Sprintf("gpiochar-%d", os.Getpid()),
		log:      logrus.StandardLogger(),
	}
}

func newChipOptions(options []ChipOption) chipOptions {
	co := defaultChipOptions()
	for _, o := range options {
		o.applyChipOption(&co)
	}
	return co
}

// ConsumerOption defines the default consumer for line requests.
type ConsumerOption string

// WithConsumer returns an option that sets the consumer label applied to
// requests whose RequestConfig does not provide one.
//
// The default is "gpiochar-<pid>".
func WithConsumer(consumer string) ConsumerOption {
	return ConsumerOption(consumer)
}

func (o ConsumerOption) applyChipOption(co *chipOptions) {
	co.consumer = string(o)
}

// LoggerOption defines the logger used by a chip.
type LoggerOption struct {
	log logrus.FieldLogger
}

// WithLogger returns an option that sets the logger used to report the
// chip's debug information and best-effort cleanup failures.
//
// The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyChipOption(co *chipOptions) {
	if o.log != nil {
		co.log = o.log
	}
}
