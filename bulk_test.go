// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiochar"
	"github.com/warthog618/go-gpiochar/internal/gpiosim"
)

func getLines(t *testing.T, c *gpiochar.Chip, offsets ...int) *gpiochar.Bulk {
	t.Helper()
	b, err := c.GetLines(offsets)
	require.Nil(t, err)
	return b
}

func checkLevels(t *testing.T, sc *gpiosim.Chip, offsets []int, levels []int) {
	t.Helper()
	for i, o := range offsets {
		level, err := sc.Level(o)
		require.Nil(t, err)
		assert.Equal(t, levels[i], level, "offset %d", o)
	}
}

// checkFree checks the kernel considers the lines unused.
func checkFree(t *testing.T, sc *gpiosim.Chip, offsets ...int) {
	t.Helper()
	cc, err := gpiocdev.NewChip(sc.Path())
	require.Nil(t, err)
	defer cc.Close()
	for _, o := range offsets {
		li, err := cc.LineInfo(o)
		require.Nil(t, err)
		assert.False(t, li.Used, "offset %d", o)
	}
}

func TestBulkOutput(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulkout", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)
	offsets := []int{2, 3, 5}
	b := getLines(t, c, offsets...)

	require.Nil(t, b.RequestOutput("bulk", []int{1, 0, 1}))
	checkLevels(t, sc, offsets, []int{1, 0, 1})
	for _, l := range b.Lines() {
		assert.True(t, l.IsRequested())
		assert.True(t, l.IsUsed())
		assert.Equal(t, "bulk", l.Consumer())
	}

	vv, err := b.Values()
	require.Nil(t, err)
	assert.Equal(t, []int{1, 0, 1}, vv)

	require.Nil(t, b.SetValues([]int{0, 1, 0}))
	checkLevels(t, sc, offsets, []int{0, 1, 0})
	vv, err = b.Values()
	require.Nil(t, err)
	assert.Equal(t, []int{0, 1, 0}, vv)

	err = b.SetValues([]int{1})
	assert.True(t, errors.Is(err, gpiochar.ErrValueCount), err)

	require.Nil(t, b.Release())
	checkFree(t, sc, offsets...)
}

func TestBulkOutputNilDefaults(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulknil", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)
	b := getLines(t, c, 1, 4)

	require.Nil(t, b.RequestOutput("bulk", nil))
	checkLevels(t, sc, []int{1, 4}, []int{0, 0})
}

func TestBulkInput(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulkin", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)
	b := getLines(t, c, 7, 0, 4)

	require.Nil(t, sc.SetPull(0, 1))
	require.Nil(t, b.RequestInput("bulk"))
	vv, err := b.Values()
	require.Nil(t, err)
	assert.Equal(t, []int{0, 1, 0}, vv)

	require.Nil(t, sc.SetPull(7, 1))
	require.Nil(t, sc.SetPull(0, 0))
	vv, err = b.Values()
	require.Nil(t, err)
	assert.Equal(t, []int{1, 0, 0}, vv)
}

func TestBulkPartiallyRequested(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("partial", 8))
	c := openSim(t, s.Chips[0])

	require.Nil(t, getLines(t, c, 2, 3, 5).RequestInput("partial"))
	b := getLines(t, c, 2, 3, 5, 7)

	vv, err := b.Values()
	assert.True(t, errors.Is(err, gpiochar.ErrNotRequested), err)
	assert.Nil(t, vv)

	err = b.Release()
	assert.True(t, errors.Is(err, gpiochar.ErrReleased), err)
	assert.True(t, b.Line(0).IsRequested())

	err = b.RequestInput("partial")
	assert.True(t, errors.Is(err, gpiochar.ErrAlreadyRequested), err)
	assert.False(t, b.Line(3).IsRequested())
}

func TestBulkRequestAtomic(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("atomic", 8,
		gpiosim.WithHog(7, "piggy", gpiosim.HogOutputLow),
	))
	sc := s.Chips[0]
	c := openSim(t, sc)
	b := getLines(t, c, 2, 3, 5, 7)

	err := b.RequestOutput("atomic", []int{1, 1, 1, 1})
	assert.True(t, errors.Is(err, gpiochar.ErrBusy), err)
	for _, l := range b.Lines() {
		assert.False(t, l.IsRequested())
	}
	checkFree(t, sc, 2, 3, 5)

	err = b.RequestInput("atomic")
	assert.True(t, errors.Is(err, gpiochar.ErrBusy), err)
	checkFree(t, sc, 2, 3, 5)
}

func TestBulkEventRequestAtomic(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("eventatomic", 8,
		gpiosim.WithHog(7, "piggy", gpiosim.HogInput),
	))
	sc := s.Chips[0]
	c := openSim(t, sc)
	b := getLines(t, c, 2, 3, 7)

	err := b.RequestEvents("atomic", gpiochar.RequestEventBothEdges)
	assert.True(t, errors.Is(err, gpiochar.ErrBusy), err)
	for _, l := range b.Lines() {
		assert.False(t, l.IsRequested())
	}
	// lines requested before the failure were rolled back
	checkFree(t, sc, 2, 3)
	for _, o := range []int{2, 3} {
		requestOther(t, sc.Path(), o, gpiocdev.AsInput)
	}
}

func TestBulkRequestInvalidOffset(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("badoffset", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)

	b, err := c.GetLines([]int{2, 9})
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidOffset), err)
	assert.Nil(t, b)
	l := getLine(t, c, 2)
	assert.False(t, l.IsRequested())
	checkFree(t, sc, 2)
}

func TestBulkMixedRequests(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("mixed", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)

	shared := getLines(t, c, 1, 2)
	require.Nil(t, shared.RequestOutput("shared", []int{0, 1}))
	single := getLine(t, c, 3)
	require.Nil(t, single.RequestOutput("single", 0))
	input := getLine(t, c, 4)
	require.Nil(t, input.RequestInput("input"))
	require.Nil(t, sc.SetPull(4, 1))

	b := getLines(t, c, 3, 1)
	require.Nil(t, b.SetValues([]int{1, 1}))
	// line 2 shares a request with line 1 but keeps its value
	checkLevels(t, sc, []int{1, 2, 3}, []int{1, 1, 1})

	require.Nil(t, b.SetValues([]int{0, 1}))
	checkLevels(t, sc, []int{1, 2, 3}, []int{1, 1, 0})

	b = getLines(t, c, 4, 2, 3, 1)
	vv, err := b.Values()
	require.Nil(t, err)
	assert.Equal(t, []int{1, 1, 0, 1}, vv)

	// an input in the bulk prevents setting any line
	err = b.SetValues([]int{0, 0, 0, 0})
	assert.True(t, errors.Is(err, gpiochar.ErrNotOutput), err)
	checkLevels(t, sc, []int{1, 2, 3}, []int{1, 1, 0})
}

func TestBulkPartialRelease(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("partrel", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)

	b := getLines(t, c, 1, 2)
	require.Nil(t, b.RequestOutput("shared", []int{1, 0}))

	require.Nil(t, b.Line(0).Release())
	assert.False(t, b.Line(0).IsRequested())
	assert.True(t, b.Line(1).IsRequested())

	// the request is held by the remaining line
	require.Nil(t, b.Line(1).SetValue(1))
	checkLevels(t, sc, []int{2}, []int{1})

	// cannot reconfigure a partially released request
	err := b.Line(1).SetDirectionInput()
	assert.True(t, errors.Is(err, gpiochar.ErrSharedHandle), err)

	require.Nil(t, b.Line(1).Release())
	checkFree(t, sc, 1, 2)
}

func TestBulkSetConfig(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulkconfig", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)

	b := getLines(t, c, 5, 6)
	require.Nil(t, b.RequestInput("config"))

	require.Nil(t, b.SetConfig(gpiochar.RequestDirectionOutput, 0, []int{1, 0}))
	checkLevels(t, sc, []int{5, 6}, []int{1, 0})
	for _, l := range b.Lines() {
		assert.Equal(t, gpiochar.DirectionOutput, l.Direction())
	}

	require.Nil(t, b.SetConfig(gpiochar.RequestDirectionInput, gpiochar.RequestFlagActiveLow, nil))
	for _, l := range b.Lines() {
		assert.Equal(t, gpiochar.DirectionInput, l.Direction())
		assert.Equal(t, gpiochar.ActiveLow, l.ActiveState())
	}

	// must be in request order
	err := getLines(t, c, 6, 5).SetConfig(gpiochar.RequestDirectionInput, 0, nil)
	assert.True(t, errors.Is(err, gpiochar.ErrSharedHandle), err)
}

func TestBulkEvents(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulkevents", 8))
	sc := s.Chips[0]
	c := openSim(t, sc)

	b := getLines(t, c, 2, 3, 4)
	require.Nil(t, b.RequestEvents("events", gpiochar.RequestEventRisingEdge))

	pending, err := b.EventWait(0)
	require.Nil(t, err)
	assert.Zero(t, pending.Len())

	require.Nil(t, sc.SetPull(3, 1))
	pending, err = b.EventWait(eventTimeout)
	require.Nil(t, err)
	require.Equal(t, 1, pending.Len())
	l := pending.Line(0)
	assert.Equal(t, 3, l.Offset())
	ev, err := l.EventRead()
	require.Nil(t, err)
	assert.Equal(t, gpiochar.RisingEdge, ev.Type)
	assert.Same(t, l, ev.Line)

	// each line has its own fd
	fds := make(map[int]bool)
	for _, l := range b.Lines() {
		fd, err := l.EventFd()
		require.Nil(t, err)
		fds[fd] = true
	}
	assert.Len(t, fds, 3)

	err = b.SetConfig(gpiochar.RequestDirectionInput, 0, nil)
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidConfig), err)

	require.Nil(t, b.Release())
	checkFree(t, sc, 2, 3, 4)
}

func TestBulkWatch(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("bulkwatch", 8))
	c := openSim(t, s.Chips[0])

	b := getLines(t, c, 1, 2)
	require.Nil(t, b.Watch())
	for _, l := range b.Lines() {
		assert.True(t, l.IsWatched())
	}

	// rolled back if any line is already watched
	b2 := getLines(t, c, 3, 2)
	err := b2.Watch()
	assert.True(t, errors.Is(err, gpiochar.ErrAlreadyWatched), err)
	assert.False(t, b2.Line(0).IsWatched())
	assert.True(t, b2.Line(1).IsWatched())

	require.Nil(t, b.Unwatch())
	for _, l := range b.Lines() {
		assert.False(t, l.IsWatched())
	}
	err = b.Unwatch()
	assert.True(t, errors.Is(err, gpiochar.ErrNotWatched), err)
}
