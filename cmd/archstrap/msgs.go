package archstrap

import (
	_ "embed"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/config"
)

// Short messages (one-liners)
const (
	MsgRootShort       = "Install Arch Linux on UEFI with a Btrfs root"
	MsgInstallShort    = "Run the interactive installation"
	MsgPlanShort       = "Print the installation steps"
	MsgGenConfigShort  = "Print the default configuration"
	MsgChrootShort     = "Configure the new system from inside arch-chroot"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	MsgGenConfigLong = "Output the default configuration as commented TOML.\n\nWith -w, write it to " + config.SystemConfigPath + " instead of stdout."

	MsgPlanOuter     = "Live system"
	MsgPlanChroot    = "Inside arch-chroot"
	MsgConfigWritten = "Wrote %s\n"
	MsgDryRunNotice  = "DRY RUN: commands are printed, not executed"
	MsgVersionFormat = "archstrap version %s\n  commit: %s\n  built:  %s\n"
	MsgSeeLog        = "See %s for the full log.\n"

	// Error messages
	MsgErrConfigExists = "%s already exists"
	MsgErrWriteConfig  = "failed to write %s"

	// Flag descriptions
	MsgFlagVerbose  = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagDryRun   = "Print commands instead of executing them"
	MsgFlagConfig   = "Configuration file (TOML or YAML) layered over the defaults"
	MsgFlagNoReboot = "Do not reboot when the installation finishes"
	MsgFlagHandoff  = "Configuration handed over by the outer installer"
	MsgFlagWrite    = "Write the configuration to " + config.SystemConfigPath
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/install-long.txt
	msgInstallLongRaw string
	MsgInstallLong    = strings.TrimSpace(msgInstallLongRaw)

	//go:embed msgs/install-example.txt
	msgInstallExampleRaw string
	MsgInstallExample    = strings.TrimRight(msgInstallExampleRaw, "\n")

	//go:embed msgs/plan-long.txt
	msgPlanLongRaw string
	MsgPlanLong    = strings.TrimSpace(msgPlanLongRaw)
)
