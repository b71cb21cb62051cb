package archstrap

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/install"
	"github.com/arthur-debert/archstrap/pkg/precheck"
	"github.com/arthur-debert/archstrap/pkg/prompt"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/style"
)

func newInstallCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "install",
		Short:   MsgInstallShort,
		Long:    MsgInstallLong,
		Example: MsgInstallExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, flags)
		},
	}
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	return config.Load(config.Options{Path: flags.configPath})
}

// newDisplay picks the rendering format from the command's output stream
func newDisplay(cmd *cobra.Command) *style.Reporter {
	out := cmd.OutOrStdout()
	format := style.FormatText
	if f, ok := out.(*os.File); ok {
		format = style.DetectFormat(f)
	}
	return style.NewReporter(out, format)
}

func newRunner(cmd *cobra.Command, flags *globalFlags) *runner.ExecRunner {
	return runner.New(runner.Options{
		DryRun: flags.dryRun,
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
}

func newCollector(cmd *cobra.Command) *prompt.Collector {
	return prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
}

func verbosityArgs(verbosity int) []string {
	if verbosity <= 0 {
		return nil
	}
	return []string{"-" + strings.Repeat("v", verbosity)}
}

func runInstall(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	display := newDisplay(cmd)
	if flags.dryRun {
		display.Warn(MsgDryRunNotice)
	}

	r := newRunner(cmd, flags)
	checker := precheck.New(precheck.Options{
		Runner:       r,
		EFIVarsPath:  cfg.Firmware.EFIVarsPath,
		ProbeTimeout: time.Duration(cfg.Network.TimeoutSeconds) * time.Second,
		Interval:     time.Second,
	})

	inst := install.New(install.Options{
		Config:    cfg,
		Runner:    r,
		Collector: newCollector(cmd),
		Checker:   checker,
		Display:   display,
		StageArgs: verbosityArgs(flags.verbosity),
		DryRun:    flags.dryRun,
		NoReboot:  flags.noReboot,
	})
	return inst.Run(cmd.Context())
}
