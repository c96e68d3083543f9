// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev/uapi"
)

// RequestType indicates how a line is to be requested.
type RequestType int

const (
	// RequestNone indicates the line is not requested.
	RequestNone RequestType = iota

	// RequestDirectionAsIs requests the line without changing its direction.
	RequestDirectionAsIs

	// RequestDirectionInput requests the line as an input.
	RequestDirectionInput

	// RequestDirectionOutput requests the line as an output.
	RequestDirectionOutput

	// RequestEventFallingEdge requests the line as an input reporting falling
	// edge events.
	RequestEventFallingEdge

	// RequestEventRisingEdge requests the line as an input reporting rising
	// edge events.
	RequestEventRisingEdge

	// RequestEventBothEdges requests the line as an input reporting both
	// rising and falling edge events.
	RequestEventBothEdges
)

// IsEvent returns true if the request is for edge events.
func (t RequestType) IsEvent() bool {
	switch t {
	case RequestEventFallingEdge, RequestEventRisingEdge, RequestEventBothEdges:
		return true
	}
	return false
}

// IsDirection returns true if the request is for line values.
func (t RequestType) IsDirection() bool {
	switch t {
	case RequestDirectionAsIs, RequestDirectionInput, RequestDirectionOutput:
		return true
	}
	return false
}

func (t RequestType) String() string {
	switch t {
	case RequestNone:
		return "none"
	case RequestDirectionAsIs:
		return "as-is"
	case RequestDirectionInput:
		return "input"
	case RequestDirectionOutput:
		return "output"
	case RequestEventFallingEdge:
		return "falling-edge"
	case RequestEventRisingEdge:
		return "rising-edge"
	case RequestEventBothEdges:
		return "both-edges"
	}
	return "unknown"
}

// RequestFlag modifies the configuration of a requested line.
type RequestFlag uint32

const (
	// RequestFlagOpenDrain requests the output be open drain.
	RequestFlagOpenDrain RequestFlag = 1 << iota

	// RequestFlagOpenSource requests the output be open source.
	RequestFlagOpenSource

	// RequestFlagActiveLow requests the line be active low.
	RequestFlagActiveLow

	// RequestFlagBiasDisable requests the line bias be disabled.
	RequestFlagBiasDisable

	// RequestFlagBiasPullDown requests the line be pulled down.
	RequestFlagBiasPullDown

	// RequestFlagBiasPullUp requests the line be pulled up.
	RequestFlagBiasPullUp
)

const (
	driveFlags = RequestFlagOpenDrain | RequestFlagOpenSource
	biasFlags  = RequestFlagBiasDisable | RequestFlagBiasPullDown | RequestFlagBiasPullUp
	allFlags   = driveFlags | biasFlags | RequestFlagActiveLow
)

// RequestConfig contains the configuration for a line request.
type RequestConfig struct {
	// The label identifying the requester.
	//
	// If empty the chip's default consumer is used.
	// Truncated to 31 bytes.
	Consumer string

	// How the line is to be requested.
	Type RequestType

	// Modifiers for the requested line.
	Flags RequestFlag
}

// validate checks the config is something the kernel could accept.
func (c RequestConfig) validate() error {
	if !c.Type.IsDirection() && !c.Type.IsEvent() {
		return errors.Wrapf(ErrInvalidConfig, "request type %d", c.Type)
	}
	return validateFlags(c.Type, c.Flags)
}

func validateFlags(t RequestType, flags RequestFlag) error {
	if flags&^allFlags != 0 {
		return errors.Wrapf(ErrInvalidConfig, "unknown flags 0x%x", uint32(flags&^allFlags))
	}
	if flags&driveFlags == driveFlags {
		return errors.Wrap(ErrInvalidConfig, "open-drain and open-source are mutually exclusive")
	}
	if flags&driveFlags != 0 && t != RequestDirectionOutput {
		return errors.Wrap(ErrInvalidConfig, "open-drain and open-source require an output")
	}
	if bias := flags & biasFlags; bias&(bias-1) != 0 {
		return errors.Wrap(ErrInvalidConfig, "only one bias may be selected")
	}
	return nil
}

// handleFlags maps the type and flags to the uAPI v1 handle flags.
func handleFlags(t RequestType, flags RequestFlag) uapi.HandleFlag {
	var hf uapi.HandleFlag
	switch {
	case t == RequestDirectionOutput:
		hf |= uapi.HandleRequestOutput
	case t == RequestDirectionInput, t.IsEvent():
		hf |= uapi.HandleRequestInput
	}
	if flags&RequestFlagActiveLow != 0 {
		hf |= uapi.HandleRequestActiveLow
	}
	if flags&RequestFlagOpenDrain != 0 {
		hf |= uapi.HandleRequestOpenDrain
	}
	if flags&RequestFlagOpenSource != 0 {
		hf |= uapi.HandleRequestOpenSource
	}
	switch {
	case flags&RequestFlagBiasDisable != 0:
		hf |= uapi.HandleRequestBiasDisable
	case flags&RequestFlagBiasPullDown != 0:
		hf |= uapi.HandleRequestPullDown
	case flags&RequestFlagBiasPullUp != 0:
		hf |= uapi.HandleRequestPullUp
	}
	return hf
}

// eventFlags maps the type to the uAPI v1 event flags.
func eventFlags(t RequestType) uapi.EventFlag {
	switch t {
	case RequestEventRisingEdge:
		return uapi.EventRequestRisingEdge
	case RequestEventFallingEdge:
		return uapi.EventRequestFallingEdge
	case RequestEventBothEdges:
		return uapi.EventRequestBothEdges
	}
	return 0
}

// consumerBytes fills a uAPI consumer field, truncating to leave room for
// the terminating NUL.
func consumerBytes(dst []byte, consumer string) {
	copy(dst[:len(dst)-1], consumer)
}
