// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The error kinds.
//
// Every error returned by the package matches, via errors.Is, at most one of
// these.  Errors that match none of them are of the "other" kind.
var (
	// ErrNotFound indicates no matching chip, line or device exists.
	ErrNotFound = errors.New("not found")

	// ErrBusy indicates the resource is already requested or watched, or that
	// an attempt was made to release or unwatch a resource that is not held.
	ErrBusy = errors.New("resource busy")

	// ErrInvalidArgument indicates a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPermissionDenied indicates the caller lacks the permissions required
	// for the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIO indicates an opaque kernel or system failure.
	ErrIO = errors.New("i/o error")

	// ErrInvalidState indicates the operation is not valid in the current
	// state of the chip or line.
	ErrInvalidState = errors.New("invalid state")
)

// Errors returned by the package, each of which is of one of the kinds above.
var (
	// ErrClosed indicates the chip has been closed.
	ErrClosed = kindError{"chip closed", ErrInvalidState}

	// ErrInvalidOffset indicates a line offset is out of range for the chip.
	ErrInvalidOffset = kindError{"offset out of range", ErrInvalidArgument}

	// ErrInvalidConfig indicates the request configuration is invalid.
	ErrInvalidConfig = kindError{"invalid request config", ErrInvalidArgument}

	// ErrNotRequested indicates the line has not been requested.
	ErrNotRequested = kindError{"line not requested", ErrInvalidState}

	// ErrNotOutput indicates the line is not requested as an output.
	ErrNotOutput = kindError{"line not requested as output", ErrInvalidState}

	// ErrNotEventLine indicates the line is not requested for edge events.
	ErrNotEventLine = kindError{"line not requested for edge events", ErrInvalidState}

	// ErrReleased indicates an attempt to release a line that is not
	// requested.
	ErrReleased = kindError{"line already released", ErrBusy}

	// ErrAlreadyRequested indicates the line is already requested.
	ErrAlreadyRequested = kindError{"line already requested", ErrBusy}

	// ErrAlreadyWatched indicates the line is already being watched.
	ErrAlreadyWatched = kindError{"line already watched", ErrBusy}

	// ErrNotWatched indicates the line is not being watched.
	ErrNotWatched = kindError{"line not watched", ErrBusy}

	// ErrNoEvent indicates no event was available to be read.
	ErrNoEvent = kindError{"no event available", ErrIO}

	// ErrBulkFull indicates a bulk set already holds MaxBulkLines lines.
	ErrBulkFull = kindError{"bulk set is full", ErrInvalidArgument}

	// ErrBulkEmpty indicates a grouped operation was attempted on an empty
	// bulk set.
	ErrBulkEmpty = kindError{"bulk set is empty", ErrInvalidArgument}

	// ErrChipMismatch indicates lines from different chips were combined.
	ErrChipMismatch = kindError{"lines belong to different chips", ErrInvalidArgument}

	// ErrValueCount indicates the number of values does not match the number
	// of lines.
	ErrValueCount = kindError{"value count does not match line count", ErrInvalidArgument}

	// ErrSharedHandle indicates the lines do not cover exactly one kernel
	// request, as required to reconfigure it.
	ErrSharedHandle = kindError{"lines do not match a single request", ErrInvalidArgument}

	// ErrNotCharacterDevice indicates the path is not a GPIO character device.
	ErrNotCharacterDevice = kindError{"not a GPIO character device", ErrNotFound}
)

// kindError is an error that is also of one of the error kinds.
type kindError struct {
	msg  string
	kind error
}

func (e kindError) Error() string {
	return e.msg
}

func (e kindError) Unwrap() error {
	return e.kind
}

// SyscallError is a failed system call, carrying the errno returned by the
// kernel.
//
// The error matches both the errno and the corresponding error kind, so
// errors.Is(err, unix.EBUSY) and errors.Is(err, ErrBusy) both hold for a
// request of a line held by another consumer.
type SyscallError struct {
	// The operation being performed.
	Op string

	// The errno returned by the kernel.
	Errno unix.Errno
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
}

// Unwrap returns the errno.
func (e *SyscallError) Unwrap() error {
	return e.Errno
}

// Is matches the error kind corresponding to the errno.
func (e *SyscallError) Is(target error) bool {
	k := errnoKind(e.Errno)
	return k != nil && k == target
}

func errnoKind(errno unix.Errno) error {
	switch errno {
	case unix.EACCES, unix.EPERM:
		return ErrPermissionDenied
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		return ErrNotFound
	case unix.EBUSY:
		return ErrBusy
	case unix.EINVAL:
		return ErrInvalidArgument
	case unix.EIO, unix.EFAULT, unix.EBADF, unix.EAGAIN:
		return ErrIO
	}
	return nil
}

// newSyscallError wraps the error returned by a system call.
//
// Errors carrying an errno become a SyscallError, anything else, such as the
// short reads reported by io.ReadFull, is an ErrIO.
func newSyscallError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &SyscallError{Op: op, Errno: errno}
	}
	return errors.Wrapf(ErrIO, "%s: %v", op, err)
}

var kinds = []error{
	ErrNotFound,
	ErrBusy,
	ErrInvalidArgument,
	ErrPermissionDenied,
	ErrIO,
	ErrInvalidState,
}

// Kind returns the kind of the error, i.e. one of ErrNotFound, ErrBusy,
// ErrInvalidArgument, ErrPermissionDenied, ErrIO or ErrInvalidState.
//
// Returns nil if err is nil or of none of those kinds.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
