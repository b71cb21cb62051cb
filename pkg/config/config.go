package config

import (
	"fmt"
	"path"
)

// Config is the fully layered installer configuration
type Config struct {
	Target     TargetConfig     `koanf:"target" toml:"target" validate:"required"`
	Network    NetworkConfig    `koanf:"network" toml:"network" validate:"required"`
	Firmware   FirmwareConfig   `koanf:"firmware" toml:"firmware" validate:"required"`
	Disk       DiskConfig       `koanf:"disk" toml:"disk" validate:"required"`
	Btrfs      BtrfsConfig      `koanf:"btrfs" toml:"btrfs" validate:"required"`
	Install    InstallConfig    `koanf:"install" toml:"install" validate:"required"`
	System     SystemConfig     `koanf:"system" toml:"system" validate:"required"`
	Bootloader BootloaderConfig `koanf:"bootloader" toml:"bootloader" validate:"required"`
}

// TargetConfig locates the system being installed
type TargetConfig struct {
	Root     string `koanf:"root" toml:"root" validate:"required,startswith=/"`
	StageDir string `koanf:"stage_dir" toml:"stage_dir" validate:"required,startswith=/"`
}

type NetworkConfig struct {
	Host           string `koanf:"host" toml:"host" validate:"required,hostname_rfc1123|ip"`
	Attempts       int    `koanf:"attempts" toml:"attempts" validate:"min=1,max=100"`
	TimeoutSeconds int    `koanf:"timeout_seconds" toml:"timeout_seconds" validate:"min=1,max=60"`
}

type FirmwareConfig struct {
	EFIVarsPath string `koanf:"efivars_path" toml:"efivars_path" validate:"required,startswith=/"`
}

type DiskConfig struct {
	ListTool        string `koanf:"list_tool" toml:"list_tool" validate:"required"`
	PartitionEditor string `koanf:"partition_editor" toml:"partition_editor" validate:"required"`
}

// Subvolume is one Btrfs subvolume and where it is mounted in the target
type Subvolume struct {
	Name       string `koanf:"name" toml:"name" validate:"required,startswith=@"`
	MountPoint string `koanf:"mountpoint" toml:"mountpoint" validate:"required,startswith=/"`
}

type BtrfsConfig struct {
	MountOptions string      `koanf:"mount_options" toml:"mount_options" validate:"required"`
	Subvolumes   []Subvolume `koanf:"subvolumes" toml:"subvolumes" validate:"required,min=1,dive"`
}

type InstallConfig struct {
	Packages []string `koanf:"packages" toml:"packages" validate:"required,min=1,dive,required"`
}

type SystemConfig struct {
	Timezone   string   `koanf:"timezone" toml:"timezone" validate:"required,timezone"`
	Locale     string   `koanf:"locale" toml:"locale" validate:"required"`
	Keymap     string   `koanf:"keymap" toml:"keymap" validate:"required"`
	UserGroups []string `koanf:"user_groups" toml:"user_groups" validate:"dive,required"`
	UserShell  string   `koanf:"user_shell" toml:"user_shell" validate:"required,startswith=/"`
	Services   []string `koanf:"services" toml:"services" validate:"dive,required"`
}

type BootloaderConfig struct {
	Target       string `koanf:"target" toml:"target" validate:"required"`
	ID           string `koanf:"id" toml:"id" validate:"required"`
	EFIDirectory string `koanf:"efi_directory" toml:"efi_directory" validate:"required,startswith=/"`
}

// RootSubvolume returns the subvolume mounted at "/"
func (b BtrfsConfig) RootSubvolume() (Subvolume, bool) {
	for _, sv := range b.Subvolumes {
		if sv.MountPoint == "/" {
			return sv, true
		}
	}
	return Subvolume{}, false
}

// MountedSubvolumes returns every subvolume except the root one, in order
func (b BtrfsConfig) MountedSubvolumes() []Subvolume {
	var out []Subvolume
	for _, sv := range b.Subvolumes {
		if sv.MountPoint != "/" {
			out = append(out, sv)
		}
	}
	return out
}

// checkLayout enforces the rules the struct tags cannot express
func (c *Config) checkLayout() error {
	seen := make(map[string]bool)
	roots := 0
	for _, sv := range c.Btrfs.Subvolumes {
		mp := path.Clean(sv.MountPoint)
		if seen[mp] {
			return fmt.Errorf("subvolume mountpoint %s is used twice", mp)
		}
		seen[mp] = true
		if mp == "/" {
			roots++
		}
		if mp == path.Clean(c.Bootloader.EFIDirectory) {
			return fmt.Errorf("subvolume %s collides with the EFI directory %s", sv.Name, mp)
		}
	}
	if roots != 1 {
		return fmt.Errorf("exactly one subvolume must be mounted at /, found %d", roots)
	}
	return nil
}
