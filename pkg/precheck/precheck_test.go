package precheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/testutil"
)

var nopLogger = zerolog.Nop()

func newChecker(t *testing.T, euid int, efi bool, r runner.Runner) *Checker {
	t.Helper()
	dir := t.TempDir()
	efivars := filepath.Join(dir, "efivars")
	if efi {
		require.NoError(t, os.Mkdir(efivars, 0755))
	}
	return New(Options{
		Runner:      r,
		Logger:      &nopLogger,
		Geteuid:     func() int { return euid },
		EFIVarsPath: efivars,
	})
}

func TestCheckRoot(t *testing.T) {
	assert.NoError(t, newChecker(t, 0, true, nil).CheckRoot())

	err := newChecker(t, 1000, true, nil).CheckRoot()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	assert.Contains(t, err.Error(), "1000")
}

func TestCheckFirmwareMode(t *testing.T) {
	assert.NoError(t, newChecker(t, 0, true, nil).CheckFirmwareMode())

	err := newChecker(t, 0, false, nil).CheckFirmwareMode()
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	assert.Contains(t, err.Error(), "UEFI")
}

func TestCheckNetwork(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		attempts  int
		wantErr   bool
		wantPings int
	}{
		{name: "first probe succeeds", failFirst: 0, attempts: 5, wantPings: 1},
		{name: "fourth probe succeeds", failFirst: 3, attempts: 5, wantPings: 4},
		{name: "last probe succeeds", failFirst: 4, attempts: 5, wantPings: 5},
		{name: "all probes fail", failFirst: 5, attempts: 5, wantErr: true, wantPings: 5},
		{name: "zero attempts means default", failFirst: 10, attempts: 0, wantErr: true, wantPings: DefaultAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeRunner()
			remaining := tt.failFirst
			fake.OnPrefix("ping", func(runner.Command) (runner.Result, error) {
				if remaining > 0 {
					remaining--
					return runner.Result{ExitCode: 1}, errors.New(errors.ErrStepFailed, "unreachable")
				}
				return runner.Result{}, nil
			})

			err := newChecker(t, 0, true, fake).CheckNetwork(context.Background(), "archlinux.org", tt.attempts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
				assert.Contains(t, err.Error(), "archlinux.org")
			} else {
				require.NoError(t, err)
			}

			pings := fake.CommandLines()
			assert.Len(t, pings, tt.wantPings)
			assert.Equal(t, "ping -c 1 -W 3 archlinux.org", pings[0])
		})
	}
}

func TestCheckAllOrder(t *testing.T) {
	fake := testutil.NewFakeRunner()

	// not root: nothing else is probed
	err := newChecker(t, 1000, true, fake).CheckAll(context.Background(), "archlinux.org", 5)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	assert.Empty(t, fake.CommandLines())

	// BIOS: no network probe either
	err = newChecker(t, 0, false, fake).CheckAll(context.Background(), "archlinux.org", 5)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition))
	assert.Empty(t, fake.CommandLines())

	assert.NoError(t, newChecker(t, 0, true, fake).CheckAll(context.Background(), "archlinux.org", 5))
	assert.Len(t, fake.CommandLines(), 1)
}

func TestCheckBlockDevice(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "disk.img")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0644))

	for name, path := range map[string]string{
		"regular file": regular,
		"directory":    dir,
		"missing path": filepath.Join(dir, "missing"),
	} {
		err := CheckBlockDevice(path)
		require.Error(t, err, name)
		assert.True(t, errors.IsErrorCode(err, errors.ErrPrecondition), name)
		assert.Equal(t, path, errors.GetErrorDetails(err)[errors.DetailPath], name)
	}
	if _, err := os.Stat("/dev/null"); err == nil {
		assert.Error(t, CheckBlockDevice("/dev/null"), "character device")
	}

	for _, candidate := range []string{"/dev/loop0", "/dev/sda", "/dev/vda", "/dev/nvme0n1"} {
		if fi, err := os.Stat(candidate); err == nil && fi.Mode()&os.ModeDevice != 0 && fi.Mode()&os.ModeCharDevice == 0 {
			assert.NoError(t, CheckBlockDevice(candidate))
			return
		}
	}
	t.Log("no block device available, positive case skipped")
}
