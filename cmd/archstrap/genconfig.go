package archstrap

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/errors"
)

func newGenConfigCmd() *cobra.Command {
	var write bool
	var target string

	cmd := &cobra.Command{
		Use:     "genconfig",
		Short:   MsgGenConfigShort,
		Long:    MsgGenConfigLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.GenerateConfigContent()
			if !write {
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			}

			if _, err := os.Stat(target); err == nil {
				return errors.Newf(errors.ErrInvalidInput, MsgErrConfigExists, target).
					WithDetail(errors.DetailPath, target)
			}
			if err := os.WriteFile(target, []byte(content+"\n"), 0644); err != nil {
				return errors.Wrapf(err, errors.ErrInternal, MsgErrWriteConfig, target).
					WithDetail(errors.DetailPath, target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), MsgConfigWritten, target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, MsgFlagWrite)
	cmd.Flags().StringVar(&target, "path", config.SystemConfigPath, "")
	_ = cmd.Flags().MarkHidden("path")
	return cmd
}
