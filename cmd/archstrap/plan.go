package archstrap

import (
	"github.com/spf13/cobra"

	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/install"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

func newPlanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "plan",
		Short:   MsgPlanShort,
		Long:    MsgPlanLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			display := newDisplay(cmd)
			display.Banner(MsgPlanOuter)
			for _, seq := range install.OuterPlan(cfg, install.PlaceholderLayout(), !flags.noReboot) {
				display.Plan(seq.Name, sequence.Describe(seq))
			}

			display.Banner(MsgPlanChroot)
			chroot := install.ChrootPlan(cfg, install.PlaceholderIdentity(), filesystem.NewMemory())
			display.Plan(chroot.Name, sequence.Describe(chroot))
			return nil
		},
	}
}
