package install

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/prompt"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

// Collector gathers operator input and answers confirmation gates
type Collector interface {
	CollectField(label string) (prompt.Field, error)
	CollectSecret(label string) (prompt.Secret, error)
	CollectValidatedDevice(label, description string) (prompt.Device, error)
	Confirm(action string, details ...string) (bool, error)
	Require(action string, details ...string) error
	Acknowledge(message string) error
}

// Display shows progress and reviews to the operator
type Display interface {
	sequence.Reporter
	Banner(title string)
	Notice(message string)
	Warn(message string)
	Success(message string)
	Markdown(content string)
}

// Prechecker gates entry into the destructive stages
type Prechecker interface {
	CheckAll(ctx context.Context, host string, attempts int) error
}

// Options contains configuration for the installer
type Options struct {
	Config    *config.Config
	Runner    runner.Runner
	Collector Collector
	Checker   Prechecker
	Display   Display
	Logger    *zerolog.Logger

	// Target is rooted at the target root; defaults to the live target
	Target filesystem.FS
	// Source holds the running executable; defaults to the live system
	Source filesystem.FS
	// Executable defaults to os.Executable
	Executable string
	// StageArgs are appended to the chroot stage command line
	StageArgs []string

	DryRun   bool
	NoReboot bool
}

// Installer runs the outer installation from the live medium
type Installer struct {
	opts      Options
	cfg       *config.Config
	sequencer *sequence.Sequencer
	logger    zerolog.Logger
	stage     Stage
	layout    Layout
}

// New creates an installer
func New(opts Options) *Installer {
	logger := logging.ComponentLogger(opts.Logger, "install")
	if opts.Target == nil {
		opts.Target = filesystem.NewRooted(opts.Config.Target.Root)
	}
	if opts.Source == nil {
		opts.Source = filesystem.NewOS()
	}

	return &Installer{
		opts:   opts,
		cfg:    opts.Config,
		logger: logger,
		sequencer: sequence.New(sequence.Options{
			Runner:   opts.Runner,
			Gate:     opts.Collector,
			Reporter: opts.Display,
			Logger:   &logger,
		}),
	}
}

// Stage returns the current position of the state machine
func (i *Installer) Stage() Stage {
	return i.stage
}

// Layout returns the partition assignment once collected
func (i *Installer) Layout() Layout {
	return i.layout
}

func (i *Installer) enter(next Stage) error {
	if next <= i.stage || i.stage.Terminal() {
		return errors.Newf(errors.ErrInternal, "invalid stage transition %s -> %s", i.stage, next)
	}
	i.logger.Info().Str("from", i.stage.String()).Str("to", next.String()).Msg("Entering stage")
	i.stage = next
	return nil
}

// Run walks every stage in order. The first error aborts the run.
func (i *Installer) Run(ctx context.Context) error {
	stages := []struct {
		stage Stage
		run   func(context.Context) error
	}{
		{StagePreconditions, i.runPreconditions},
		{StageDiskSelection, i.runDiskSelection},
		{StagePartitioning, i.runSequence(func() sequence.Sequence { return PartitionSequence(i.cfg, i.layout) })},
		{StagePartitionAssignment, i.runPartitionAssignment},
		{StageFormat, i.runSequence(func() sequence.Sequence { return FormatSequence(i.layout) })},
		{StageMount, i.runSequence(func() sequence.Sequence { return MountSequence(i.cfg, i.layout) })},
		{StageBaseInstall, i.runSequence(func() sequence.Sequence { return BaseInstallSequence(i.cfg) })},
		{StageFstab, i.runSequence(func() sequence.Sequence {
			return FstabSequence(i.cfg, i.opts.Runner, i.opts.Target, i.opts.DryRun)
		})},
		{StageChroot, i.runSequence(i.chrootSequence)},
		{StageUnmount, i.runSequence(func() sequence.Sequence { return UnmountSequence(i.cfg) })},
		{StageReboot, i.runReboot},
	}

	done := logging.LogOperationStart(i.logger, "installation")
	defer done()

	for _, s := range stages {
		if err := i.enter(s.stage); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			i.abort(err)
			return errors.Wrapf(err, errors.ErrOperatorAbort, "interrupted before %s", s.stage)
		}
		if err := s.run(ctx); err != nil {
			i.abort(err)
			return err
		}
	}

	i.stage = StageDone
	return nil
}

func (i *Installer) abort(err error) {
	i.logger.Error().Err(err).Str("stage", i.stage.String()).Msg("Installation aborted")
	i.stage = StageAborted
}

func (i *Installer) runSequence(build func() sequence.Sequence) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := i.sequencer.Run(ctx, build())
		return err
	}
}

func (i *Installer) runPreconditions(ctx context.Context) error {
	i.opts.Display.Banner("Checking the live environment")
	err := i.opts.Checker.CheckAll(ctx, i.cfg.Network.Host, i.cfg.Network.Attempts)
	if err != nil && i.opts.DryRun {
		i.opts.Display.Warn("dry run: continuing despite failed precondition: " + err.Error())
		return nil
	}
	return err
}

func (i *Installer) runDiskSelection(ctx context.Context) error {
	i.opts.Display.Banner("Select the installation disk")
	if _, err := i.sequencer.Run(ctx, DiskListSequence(i.cfg)); err != nil {
		return err
	}
	disk, err := i.opts.Collector.CollectValidatedDevice("Disk to install to (e.g. /dev/sda)", "disk")
	if err != nil {
		return err
	}
	i.layout.Disk = disk
	i.opts.Display.Notice(fmt.Sprintf("Selected disk [device]%s[/device]", disk))
	return nil
}

// runPartitionAssignment asks for the partitions until the operator accepts
// a layout with three distinct devices
func (i *Installer) runPartitionAssignment(context.Context) error {
	i.opts.Display.Banner("Assign partitions")
	for {
		l := Layout{Disk: i.layout.Disk}
		var err error
		if l.EFI, err = i.opts.Collector.CollectValidatedDevice("EFI partition (e.g. /dev/sda1)", "EFI partition"); err != nil {
			return err
		}
		if l.Swap, err = i.opts.Collector.CollectValidatedDevice("Swap partition (e.g. /dev/sda2)", "swap partition"); err != nil {
			return err
		}
		if l.Root, err = i.opts.Collector.CollectValidatedDevice("Root partition (e.g. /dev/sda3)", "root partition"); err != nil {
			return err
		}

		if msg := l.conflict(); msg != "" {
			i.logger.Warn().Str("reason", msg).Msg("Rejected partition layout")
			i.opts.Display.Warn(msg + ", please assign the partitions again")
			continue
		}

		i.opts.Display.Markdown(l.Summary(i.cfg))
		ok, err := i.opts.Collector.Confirm("Use this partition layout")
		if err != nil {
			return err
		}
		if ok {
			i.layout = l
			i.logger.Info().
				Str("disk", string(l.Disk)).
				Str("efi", string(l.EFI)).
				Str("swap", string(l.Swap)).
				Str("root", string(l.Root)).
				Msg("Partition layout accepted")
			return nil
		}
		i.opts.Display.Notice("Layout discarded, assign the partitions again.")
	}
}

func (i *Installer) chrootSequence() sequence.Sequence {
	exe := i.opts.Executable
	if exe == "" {
		exe, _ = os.Executable()
	}
	return sequence.Sequence{Name: "chroot", Steps: []sequence.Step{ChrootStep(ChrootStepOptions{
		Config:     i.cfg,
		Runner:     i.opts.Runner,
		Target:     i.opts.Target,
		Source:     i.opts.Source,
		Executable: exe,
		ExtraArgs:  i.opts.StageArgs,
		DryRun:     i.opts.DryRun,
	})}}
}

func (i *Installer) runReboot(ctx context.Context) error {
	if i.opts.NoReboot {
		i.opts.Display.Success("Installation complete. Reboot when ready.")
		return nil
	}
	i.opts.Display.Success("Installation complete. Rebooting.")
	_, err := i.sequencer.Run(ctx, RebootSequence())
	return err
}
