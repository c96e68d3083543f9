// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiochar_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiochar"
	"github.com/warthog618/go-gpiochar/internal/gpiosim"
)

// uniqueLabel returns a chip label unlikely to clash with other sims.
func uniqueLabel(name string) string {
	return fmt.Sprintf("%s-%d", name, os.Getpid())
}

// requestOther requests the line from a second, independent, consumer.
func requestOther(t *testing.T, path string, offset int, options ...gpiocdev.LineReqOption) *gpiocdev.Line {
	t.Helper()
	cc, err := gpiocdev.NewChip(path, gpiocdev.WithConsumer("other"))
	require.Nil(t, err)
	l, err := cc.RequestLine(offset, options...)
	require.Nil(t, err)
	t.Cleanup(func() {
		l.Close()
		cc.Close()
	})
	return l
}

func openSim(t *testing.T, sc *gpiosim.Chip) *gpiochar.Chip {
	t.Helper()
	c, err := gpiochar.OpenByPath(sc.Path())
	require.Nil(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func checkChip(t *testing.T, c *gpiochar.Chip, sc *gpiosim.Chip) {
	t.Helper()
	require.NotNil(t, c)
	name, err := c.Name()
	assert.Nil(t, err)
	assert.Equal(t, sc.Name(), name)
	label, err := c.Label()
	assert.Nil(t, err)
	assert.Equal(t, sc.Label(), label)
	n, err := c.NumLines()
	assert.Nil(t, err)
	assert.Equal(t, sc.NumLines(), n)
	assert.Nil(t, c.Close())
}

func TestOpen(t *testing.T) {
	label := uniqueLabel("gpiochar-open")
	s := gpiosim.ForTest(t, gpiosim.NewBank(label, 8))
	sc := s.Chips[0]

	c, err := gpiochar.OpenByPath(sc.Path())
	assert.Nil(t, err)
	checkChip(t, c, sc)
	assert.Equal(t, sc.Path(), c.Path())

	c, err = gpiochar.OpenByName(sc.Name())
	assert.Nil(t, err)
	checkChip(t, c, sc)

	c, err = gpiochar.OpenByNumber(sc.Number())
	assert.Nil(t, err)
	checkChip(t, c, sc)

	c, err = gpiochar.OpenByLabel(label)
	assert.Nil(t, err)
	checkChip(t, c, sc)

	for _, descr := range []string{
		fmt.Sprint(sc.Number()),
		label,
		sc.Name(),
		sc.Path(),
	} {
		c, err = gpiochar.OpenLookup(descr)
		assert.Nil(t, err, descr)
		checkChip(t, c, sc)
	}
}

func TestOpenNotFound(t *testing.T) {
	patterns := []struct {
		name  string
		descr string
		mode  gpiochar.OpenMode
	}{
		{"path", "/dev/gpiochar-nonexistent", gpiochar.ModeByPath},
		{"name", "gpiochar-nonexistent", gpiochar.ModeByName},
		{"label", uniqueLabel("gpiochar-nonexistent"), gpiochar.ModeByLabel},
		{"number", "999999", gpiochar.ModeByNumber},
		{"lookup name", "gpiochar-nonexistent", gpiochar.ModeLookup},
		{"lookup path", "/dev/gpiochar-nonexistent", gpiochar.ModeLookup},
		{"lookup number", "999999", gpiochar.ModeLookup},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			c, err := gpiochar.Open(p.descr, p.mode)
			assert.True(t, errors.Is(err, gpiochar.ErrNotFound), err)
			assert.Equal(t, gpiochar.ErrNotFound, gpiochar.Kind(err))
			assert.Nil(t, c)
		}
		t.Run(p.name, tf)
	}
}

func TestChipClose(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("close", 4))
	c, err := gpiochar.OpenByPath(s.Chips[0].Path())
	require.Nil(t, err)

	assert.Nil(t, c.Close())
	assert.Equal(t, gpiochar.ErrClosed, c.Close())
	_, err = c.Name()
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidState), err)
	_, err = c.GetLine(0)
	assert.Equal(t, gpiochar.ErrClosed, err)
}

func TestChipCloseReleasesLines(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("close", 8))
	sc := s.Chips[0]
	c, err := gpiochar.OpenByPath(sc.Path())
	require.Nil(t, err)

	b, err := c.GetLines([]int{1, 2})
	require.Nil(t, err)
	require.Nil(t, b.RequestOutput("closer", []int{1, 1}))
	l, err := c.GetLineWatched(3)
	require.Nil(t, err)
	require.Nil(t, l.RequestRisingEdgeEvents("closer"))

	require.Nil(t, c.Close())
	assert.False(t, b.Line(0).IsRequested())
	assert.False(t, l.IsRequested())
	assert.False(t, l.IsWatched())
	assert.Equal(t, gpiochar.ErrClosed, l.Release())

	// lines are available to others
	for _, o := range []int{1, 2, 3} {
		requestOther(t, sc.Path(), o, gpiocdev.AsInput)
	}
}

func TestGetLine(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("getline", 8,
		gpiosim.WithLineName(3, "LED0"),
		gpiosim.WithHog(6, "piggy", gpiosim.HogOutputHigh),
	))
	sc := s.Chips[0]
	c := openSim(t, sc)

	for o := 0; o < sc.NumLines(); o++ {
		l, err := c.GetLine(o)
		require.Nil(t, err)
		assert.Equal(t, o, l.Offset())
		assert.Equal(t, c, l.Chip())
		assert.False(t, l.IsRequested())
		assert.False(t, l.IsWatched())

		// same line for the same offset
		l2, err := c.GetLine(o)
		require.Nil(t, err)
		assert.Same(t, l, l2)
	}

	l, err := c.GetLine(3)
	require.Nil(t, err)
	assert.Equal(t, "LED0", l.Name())
	assert.False(t, l.IsUsed())
	assert.Equal(t, gpiochar.DirectionInput, l.Direction())
	assert.Equal(t, gpiochar.ActiveHigh, l.ActiveState())

	l, err = c.GetLine(6)
	require.Nil(t, err)
	assert.True(t, l.IsUsed())
	assert.Equal(t, "piggy", l.Consumer())
	assert.Equal(t, gpiochar.DirectionOutput, l.Direction())
	assert.Equal(t, "", l.Name())

	_, err = c.GetLine(8)
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidOffset), err)
	_, err = c.GetLine(-1)
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidArgument), err)
}

func TestGetLines(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("getlines", 8))
	c := openSim(t, s.Chips[0])

	b, err := c.GetLines([]int{5, 1, 3})
	require.Nil(t, err)
	assert.Equal(t, []int{5, 1, 3}, b.Offsets())
	assert.Equal(t, c, b.Chip())
	l, err := c.GetLine(1)
	require.Nil(t, err)
	assert.Same(t, l, b.Line(1))

	b, err = c.GetLines([]int{1, 8})
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidOffset), err)
	assert.Nil(t, b)

	b, err = c.GetAllLines()
	require.Nil(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, b.Offsets())
}

func TestGetAllLinesTooMany(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("toomany", gpiochar.MaxBulkLines+1))
	c := openSim(t, s.Chips[0])

	b, err := c.GetAllLines()
	assert.Equal(t, gpiochar.ErrBulkFull, err)
	assert.Nil(t, b)
}

func TestFindLine(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("findline", 8,
		gpiosim.WithLineName(1, "BUTTON"),
		gpiosim.WithLineName(3, "LED0"),
		gpiosim.WithLineName(5, "LED0"),
	))
	c, err := gpiochar.OpenByPath(s.Chips[0].Path())
	require.Nil(t, err)

	l, err := c.FindLine("LED0")
	require.Nil(t, err)
	require.NotNil(t, l)
	// first match
	assert.Equal(t, 3, l.Offset())

	l, err = c.FindLine("nonexistent")
	assert.Nil(t, err)
	assert.Nil(t, l)

	b, err := c.FindLines([]string{"LED0", "BUTTON"})
	require.Nil(t, err)
	require.NotNil(t, b)
	assert.Equal(t, []int{3, 1}, b.Offsets())

	b, err = c.FindLines([]string{"BUTTON", "nonexistent"})
	assert.Nil(t, err)
	assert.Nil(t, b)

	require.Nil(t, c.Close())
	l, err = c.FindLine("LED0")
	assert.True(t, errors.Is(err, gpiochar.ErrInvalidState), err)
	assert.Nil(t, l)
}

func TestFindLinesWatchedUnwatchesOnFailure(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("findwatched", 8,
		gpiosim.WithLineName(1, "BUTTON"),
		gpiosim.WithLineName(3, "LED0"),
	))
	c := openSim(t, s.Chips[0])

	b, err := c.FindLinesWatched([]string{"BUTTON", "nonexistent"})
	assert.Nil(t, err)
	assert.Nil(t, b)
	l, err := c.GetLine(1)
	require.Nil(t, err)
	assert.False(t, l.IsWatched())
	// kernel agrees
	assert.Nil(t, l.Watch())

	l, err = c.FindLineWatched("LED0")
	require.Nil(t, err)
	require.NotNil(t, l)
	assert.True(t, l.IsWatched())
}

func TestGetLinesWatchedUnwatchesOnFailure(t *testing.T) {
	s := gpiosim.ForTest(t, gpiosim.NewBank("getwatched", 8))
	c := openSim(t, s.Chips[0])

	b, err := c.GetLinesWatched([]int{2, 4, 2})
	assert.True(t, errors.Is(err, gpiochar.ErrAlreadyWatched), err)
	assert.Nil(t, b)
	for _, o := range []int{2, 4} {
		l, err := c.GetLine(o)
		require.Nil(t, err)
		assert.False(t, l.IsWatched())
	}

	b, err = c.GetLinesWatched([]int{2, 4})
	require.Nil(t, err)
	for _, l := range b.Lines() {
		assert.True(t, l.IsWatched())
	}
}
