// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar

import (
	"io"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestKind(t *testing.T) {
	patterns := []struct {
		name string
		err  error
		kind error
	}{
		{"nil", nil, nil},
		{"closed", ErrClosed, ErrInvalidState},
		{"offset", ErrInvalidOffset, ErrInvalidArgument},
		{"config", ErrInvalidConfig, ErrInvalidArgument},
		{"not requested", ErrNotRequested, ErrInvalidState},
		{"not output", ErrNotOutput, ErrInvalidState},
		{"not event", ErrNotEventLine, ErrInvalidState},
		{"released", ErrReleased, ErrBusy},
		{"requested", ErrAlreadyRequested, ErrBusy},
		{"watched", ErrAlreadyWatched, ErrBusy},
		{"not watched", ErrNotWatched, ErrBusy},
		{"no event", ErrNoEvent, ErrIO},
		{"bulk full", ErrBulkFull, ErrInvalidArgument},
		{"bulk empty", ErrBulkEmpty, ErrInvalidArgument},
		{"chip mismatch", ErrChipMismatch, ErrInvalidArgument},
		{"value count", ErrValueCount, ErrInvalidArgument},
		{"shared handle", ErrSharedHandle, ErrInvalidArgument},
		{"not chardev", ErrNotCharacterDevice, ErrNotFound},
		{"wrapped", errors.Wrapf(ErrInvalidOffset, "offset %d", 9), ErrInvalidArgument},
		{"foreign", errors.New("whatever"), nil},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			assert.Equal(t, p.kind, Kind(p.err))
		}
		t.Run(p.name, tf)
	}
}

func TestSyscallError(t *testing.T) {
	patterns := []struct {
		errno unix.Errno
		kind  error
	}{
		{unix.EACCES, ErrPermissionDenied},
		{unix.EPERM, ErrPermissionDenied},
		{unix.ENOENT, ErrNotFound},
		{unix.ENODEV, ErrNotFound},
		{unix.ENXIO, ErrNotFound},
		{unix.EBUSY, ErrBusy},
		{unix.EINVAL, ErrInvalidArgument},
		{unix.EIO, ErrIO},
		{unix.EFAULT, ErrIO},
		{unix.EBADF, ErrIO},
		{unix.EAGAIN, ErrIO},
		{unix.ENOMEM, nil},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			err := newSyscallError("request lines", p.errno)
			assert.True(t, errors.Is(err, p.errno))
			assert.Equal(t, p.kind, Kind(err))
			assert.Equal(t, "request lines: "+p.errno.Error(), err.Error())
			var se *SyscallError
			assert.True(t, errors.As(err, &se))
			assert.Equal(t, p.errno, se.Errno)
		}
		t.Run(p.errno.Error(), tf)
	}
}

func TestNewSyscallError(t *testing.T) {
	assert.Nil(t, newSyscallError("close", nil))

	// errno buried in a PathError
	_, err := os.Open("/nonexistent/gpiochar")
	err = newSyscallError("open", err)
	assert.True(t, errors.Is(err, ErrNotFound))

	// no errno
	err = newSyscallError("read", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
}
