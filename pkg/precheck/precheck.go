// Package precheck verifies the live environment before anything
// destructive runs: superuser privilege, UEFI firmware, network, and
// block devices. Every failure is a PRECONDITION error and ends the run.
package precheck

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/runner"
)

const (
	DefaultEFIVarsPath = "/sys/firmware/efi/efivars"
	DefaultAttempts    = 5
)

// Options contains the probes a Checker uses
type Options struct {
	Runner runner.Runner
	// Logger defaults to the "precheck" component logger
	Logger *zerolog.Logger

	// Geteuid defaults to os.Geteuid
	Geteuid func() int
	// EFIVarsPath defaults to DefaultEFIVarsPath
	EFIVarsPath string
	// Stat defaults to os.Stat
	Stat func(string) (os.FileInfo, error)
	// ProbeTimeout is passed to ping -W
	ProbeTimeout time.Duration
	// Interval is the pause between failed probes
	Interval time.Duration
}

// Checker runs the environment gates
type Checker struct {
	runner       runner.Runner
	logger       zerolog.Logger
	geteuid      func() int
	efivarsPath  string
	stat         func(string) (os.FileInfo, error)
	probeTimeout time.Duration
	interval     time.Duration
}

// New creates a Checker
func New(opts Options) *Checker {
	c := &Checker{
		runner:       opts.Runner,
		logger:       logging.ComponentLogger(opts.Logger, "precheck"),
		geteuid:      opts.Geteuid,
		efivarsPath:  opts.EFIVarsPath,
		stat:         opts.Stat,
		probeTimeout: opts.ProbeTimeout,
		interval:     opts.Interval,
	}
	if c.geteuid == nil {
		c.geteuid = os.Geteuid
	}
	if c.efivarsPath == "" {
		c.efivarsPath = DefaultEFIVarsPath
	}
	if c.stat == nil {
		c.stat = os.Stat
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = 3 * time.Second
	}
	return c
}

// CheckRoot fails unless the effective uid is 0
func (c *Checker) CheckRoot() error {
	euid := c.geteuid()
	if euid != 0 {
		return errors.Newf(errors.ErrPrecondition,
			"archstrap must be run as root (effective uid is %d)", euid)
	}
	c.logger.Debug().Msg("Running as root")
	return nil
}

// CheckFirmwareMode succeeds only on UEFI systems
func (c *Checker) CheckFirmwareMode() error {
	info, err := c.stat(c.efivarsPath)
	if err != nil || !info.IsDir() {
		return errors.Newf(errors.ErrPrecondition,
			"system is not booted in UEFI mode (%s not found); legacy BIOS is not supported", c.efivarsPath).
			WithDetail(errors.DetailPath, c.efivarsPath)
	}
	c.logger.Debug().Str("path", c.efivarsPath).Msg("UEFI firmware detected")
	return nil
}

// CheckNetwork probes host up to attempts times and succeeds on the first
// reply
func (c *Checker) CheckNetwork(ctx context.Context, host string, attempts int) error {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	timeout := strconv.Itoa(int(c.probeTimeout.Round(time.Second) / time.Second))

	for i := 1; i <= attempts; i++ {
		_, err := c.runner.Run(ctx, runner.Command{
			Name:  "ping",
			Args:  []string{"-c", "1", "-W", timeout, host},
			Quiet: true,
		})
		if err == nil {
			c.logger.Info().Str("host", host).Int("attempt", i).Msg("Network reachable")
			return nil
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.ErrOperatorAbort, "network check interrupted")
		}
		c.logger.Warn().Str("host", host).Int("attempt", i).Int("attempts", attempts).Msg("Network probe failed")

		if i < attempts && c.interval > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrOperatorAbort, "network check interrupted")
			case <-time.After(c.interval):
			}
		}
	}

	return errors.Newf(errors.ErrPrecondition,
		"no network connectivity to %s after %d attempts; connect with iwctl or an ethernet cable and run archstrap again",
		host, attempts)
}

// CheckAll runs root, firmware and network checks in that order
func (c *Checker) CheckAll(ctx context.Context, host string, attempts int) error {
	if err := c.CheckRoot(); err != nil {
		return err
	}
	if err := c.CheckFirmwareMode(); err != nil {
		return err
	}
	return c.CheckNetwork(ctx, host, attempts)
}

// CheckBlockDevice fails unless path exists and is block-special
func CheckBlockDevice(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return errors.Wrapf(err, errors.ErrPrecondition, "cannot stat %s", path).
			WithDetail(errors.DetailPath, path)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return errors.Newf(errors.ErrPrecondition, "%s is not a block device", path).
			WithDetail(errors.DetailPath, path)
	}
	return nil
}
