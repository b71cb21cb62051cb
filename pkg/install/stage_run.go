package install

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

// StageOptions configures the chroot stage
type StageOptions struct {
	Config    *config.Config
	Runner    runner.Runner
	Collector Collector
	Display   Display
	Logger    *zerolog.Logger

	// Root is the new system's root filesystem
	Root filesystem.FS
	// Cleanup lists files removed from Root when the stage ends, whatever
	// the outcome: the staged binary and its hand-off
	Cleanup []string
}

// RunChrootStage collects the system identity and runs the chroot plan with
// its own sequencer. The caller's exit status reports the outcome to the
// outer step.
func RunChrootStage(ctx context.Context, opts StageOptions) error {
	logger := logging.ComponentLogger(opts.Logger, "chroot")

	defer func() {
		for _, name := range opts.Cleanup {
			if err := opts.Root.Remove(name); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("path", name).Msg("Failed to remove staged file")
			}
		}
	}()

	opts.Display.Banner("Configure the new system")
	id, err := CollectIdentity(opts.Collector)
	if err != nil {
		return err
	}
	logger.Info().
		Str("hostname", string(id.Hostname)).
		Str("username", string(id.Username)).
		Msg("Identity collected")

	seq := sequence.New(sequence.Options{
		Runner:   opts.Runner,
		Gate:     opts.Collector,
		Reporter: opts.Display,
		Logger:   &logger,
	})
	if _, err := seq.Run(ctx, ChrootPlan(opts.Config, id, opts.Root)); err != nil {
		return err
	}

	opts.Display.Success("New system configured")
	return nil
}
