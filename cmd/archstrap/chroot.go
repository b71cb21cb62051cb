package archstrap

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/install"
)

func newChrootCmd(flags *globalFlags) *cobra.Command {
	var handoff string

	cmd := &cobra.Command{
		Use:    "chroot",
		Short:  MsgChrootShort,
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(handoff)
			if err != nil {
				return err
			}

			cleanup := []string{handoff}
			if exe, err := os.Executable(); err == nil {
				if filepath.Base(exe) == install.StageBinaryName {
					cleanup = append(cleanup, exe)
				}
			}

			return install.RunChrootStage(cmd.Context(), install.StageOptions{
				Config:    cfg,
				Runner:    newRunner(cmd, flags),
				Collector: newCollector(cmd),
				Display:   newDisplay(cmd),
				Root:      filesystem.NewOS(),
				Cleanup:   cleanup,
			})
		},
	}

	cmd.Flags().StringVar(&handoff, "handoff", "", MsgFlagHandoff)
	_ = cmd.MarkFlagRequired("handoff")
	return cmd
}
