// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable indicates gpio-sim cannot be used on this system, either as
// it is not supported by the kernel or due to insufficient permissions.
var ErrUnavailable = errors.New("gpio-sim unavailable")

// Sim is a live gpio-sim simulator.
type Sim struct {
	// The name of the simulator in configfs.
	Name string

	// The simulated chips, in the order their banks were provided to New.
	Chips []*Chip

	configfsPath string

	log logrus.FieldLogger
}

// New builds a simulator containing a chip for each of the banks, and takes
// it live.
func New(banks ...*Bank) (*Sim, error) {
	if len(banks) == 0 {
		return nil, errors.New("no banks defined")
	}
	root, err := findConfigfsPath()
	if err != nil {
		return nil, err
	}
	name := uniqueName()
	s := &Sim{
		Name:         name,
		configfsPath: path.Join(root, name),
		log:          logrus.WithField("sim", name),
	}
	for _, b := range banks {
		s.Chips = append(s.Chips, &Chip{bank: *b})
	}
	if err = s.live(); err != nil {
		s.removeConfigfs()
		if errors.Is(err, fs.ErrPermission) {
			err = errors.Wrap(ErrUnavailable, err.Error())
		}
		return nil, err
	}
	return s, nil
}

// ForTest builds a simulator for the duration of the test.
//
// The test is skipped if gpio-sim is unavailable, and fails if the
// simulator cannot otherwise be built.
func ForTest(t testing.TB, banks ...*Bank) *Sim {
	t.Helper()
	s, err := New(banks...)
	if errors.Is(err, ErrUnavailable) {
		t.Skip(err)
	}
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Close takes the simulator down, removing its chips.
func (s *Sim) Close() error {
	if s.Chips == nil {
		return nil
	}
	err := s.removeConfigfs()
	s.Chips = nil
	s.log.Debug("closed sim")
	return err
}

func (s *Sim) live() error {
	if err := s.writeConfigfs(); err != nil {
		return err
	}
	if err := writeAttr(s.configfsPath, "live", "1"); err != nil {
		return err
	}
	devName, err := readAttr(s.configfsPath, "dev_name")
	if err != nil {
		return err
	}
	for i, c := range s.Chips {
		chipName, err := readAttr(bankPath(s.configfsPath, i), "chip_name")
		if err != nil {
			return err
		}
		devPath := path.Join("/dev", chipName)
		stat, err := os.Lstat(devPath)
		if err != nil {
			return err
		}
		if stat.Mode()&fs.ModeSymlink != 0 {
			return errors.Errorf("symlink %s is masking GPIO device %s", devPath, chipName)
		}
		c.name = chipName
		c.devPath = devPath
		c.sysfsPath = path.Join("/sys/devices/platform", devName, chipName)
		s.log.WithFields(logrus.Fields{
			"chip":  chipName,
			"label": c.bank.Label,
			"lines": c.bank.NumLines,
		}).Debug("chip live")
	}
	return nil
}

func bankPath(root string, i int) string {
	return path.Join(root, fmt.Sprintf("bank%d", i))
}

// writeConfigfs creates the configfs tree describing the banks.
func (s *Sim) writeConfigfs() error {
	for i, c := range s.Chips {
		bp := bankPath(s.configfsPath, i)
		if err := os.MkdirAll(bp, 0755); err != nil {
			return err
		}
		if err := writeAttr(bp, "label", c.bank.Label); err != nil {
			return err
		}
		if err := writeAttr(bp, "num_lines", fmt.Sprintf("%d", c.bank.NumLines)); err != nil {
			return err
		}
		for o, n := range c.bank.Names {
			lp := path.Join(bp, fmt.Sprintf("line%d", o))
			if err := os.MkdirAll(lp, 0755); err != nil {
				return err
			}
			if err := writeAttr(lp, "name", n); err != nil {
				return err
			}
		}
		for o, h := range c.bank.Hogs {
			hp := path.Join(bp, fmt.Sprintf("line%d", o), "hog")
			if err := os.MkdirAll(hp, 0755); err != nil {
				return err
			}
			if err := writeAttr(hp, "name", h.Consumer); err != nil {
				return err
			}
			if err := writeAttr(hp, "direction", h.Direction.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeConfigfs tears down the configfs tree, innermost first.
func (s *Sim) removeConfigfs() error {
	if _, err := os.Stat(s.configfsPath); err != nil {
		return nil
	}
	err := writeAttr(s.configfsPath, "live", "0")
	for i, c := range s.Chips {
		bp := bankPath(s.configfsPath, i)
		for o := range c.bank.Hogs {
			os.Remove(path.Join(bp, fmt.Sprintf("line%d", o), "hog"))
		}
		for o := 0; o < c.bank.NumLines; o++ {
			os.Remove(path.Join(bp, fmt.Sprintf("line%d", o)))
		}
		os.Remove(bp)
	}
	if rerr := os.Remove(s.configfsPath); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// findConfigfsPath locates the gpio-sim directory in configfs, loading the
// module and mounting configfs if necessary.
func findConfigfsPath() (string, error) {
	const configfs = "/sys/kernel/config/gpio-sim"
	if _, err := os.Stat(configfs); err == nil {
		return configfs, nil
	}
	if err := exec.Command("modprobe", "gpio-sim").Run(); err == nil {
		if _, err := os.Stat(configfs); err == nil {
			return configfs, nil
		}
	}
	if mp, err := configfsMountPoint(); err == nil {
		p := path.Join(mp, "gpio-sim")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Wrap(ErrUnavailable, "gpio-sim module not loaded")
}

func configfsMountPoint() (string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) >= 6 && words[2] == "configfs" {
			return words[1], nil
		}
	}
	const mp = "/sys/kernel/config"
	if err = exec.Command("mount", "-t", "configfs", "configfs", mp).Run(); err == nil {
		return mp, nil
	}
	return "", errors.New("configfs not mounted")
}

var simCounter uint32

// uniqueName combines the executable name, PID and a counter.
func uniqueName() string {
	app := "gpiosim"
	if exe, err := os.Executable(); err == nil {
		app = path.Base(exe)
	}
	return fmt.Sprintf("%s-p%d-%d", app, os.Getpid(), atomic.AddUint32(&simCounter, 1))
}

func readAttr(dir, attr string) (string, error) {
	data, err := os.ReadFile(path.Join(dir, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeAttr(dir, attr, value string) error {
	return os.WriteFile(path.Join(dir, attr), []byte(value), 0644)
}
