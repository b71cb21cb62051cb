package install

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/prompt"
)

// Layout is the operator's disk and partition assignment
type Layout struct {
	Disk prompt.Device
	EFI  prompt.Device
	Swap prompt.Device
	Root prompt.Device
}

// PlaceholderLayout is used when rendering plans before any input
func PlaceholderLayout() Layout {
	return Layout{Disk: "<disk>", EFI: "<efi-partition>", Swap: "<swap-partition>", Root: "<root-partition>"}
}

// conflict names the first device assigned twice, or returns ""
func (l Layout) conflict() string {
	seen := map[prompt.Device]string{l.Disk: "disk"}
	for _, p := range []struct {
		role string
		dev  prompt.Device
	}{{"EFI", l.EFI}, {"swap", l.Swap}, {"root", l.Root}} {
		if prev, ok := seen[p.dev]; ok {
			return fmt.Sprintf("%s partition %s is already used as the %s", p.role, p.dev, prev)
		}
		seen[p.dev] = p.role + " partition"
	}
	return ""
}

// Summary renders the assignment as markdown for review before formatting
func (l Layout) Summary(cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Partition layout for %s\n\n", l.Disk)
	b.WriteString("| Role | Device | Filesystem | Mounted at |\n")
	b.WriteString("|------|--------|------------|------------|\n")
	fmt.Fprintf(&b, "| EFI system | %s | FAT32 | %s |\n", l.EFI, targetPath(cfg, cfg.Bootloader.EFIDirectory))
	fmt.Fprintf(&b, "| Swap | %s | swap | - |\n", l.Swap)
	for _, sv := range cfg.Btrfs.Subvolumes {
		fmt.Fprintf(&b, "| Root (%s) | %s | Btrfs | %s |\n", sv.Name, l.Root, targetPath(cfg, sv.MountPoint))
	}
	fmt.Fprintf(&b, "\nAll data on **%s**, **%s** and **%s** will be erased.\n", l.EFI, l.Swap, l.Root)
	return b.String()
}
