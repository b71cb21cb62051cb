package install

import (
	"context"
	"path"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

func targetPath(cfg *config.Config, p string) string {
	return path.Join(cfg.Target.Root, p)
}

func cmd(name string, args ...string) runner.Command {
	return runner.Command{Name: name, Args: args}
}

// DiskListSequence shows the attached disks
func DiskListSequence(cfg *config.Config) sequence.Sequence {
	return sequence.Sequence{Name: "disks", Steps: []sequence.Step{{
		Name:        "list-disks",
		Description: "List attached disks",
		Command:     cmd(cfg.Disk.ListTool, "-l"),
	}}}
}

// PartitionSequence opens the interactive partition editor on disk. The
// editor's exit status is not meaningful and is ignored.
func PartitionSequence(cfg *config.Config, l Layout) sequence.Sequence {
	editor := cmd(cfg.Disk.PartitionEditor, string(l.Disk))
	editor.Interactive = true
	return sequence.Sequence{Name: "partition", Steps: []sequence.Step{{
		Name:         "partition",
		Description:  "Partition " + string(l.Disk) + " with " + cfg.Disk.PartitionEditor,
		Command:      editor,
		Policy:       sequence.IgnoreExit,
		Irreversible: true,
	}}}
}

// FormatSequence creates the EFI, swap and Btrfs filesystems
func FormatSequence(l Layout) sequence.Sequence {
	return sequence.Sequence{Name: "format", Steps: []sequence.Step{
		{
			Name:         "format-efi",
			Description:  "Format " + string(l.EFI) + " as FAT32",
			Command:      cmd("mkfs.fat", "-F32", string(l.EFI)),
			Irreversible: true,
		},
		{
			Name:         "format-swap",
			Description:  "Format " + string(l.Swap) + " as swap",
			Command:      cmd("mkswap", string(l.Swap)),
			Irreversible: true,
		},
		{
			Name:         "format-root",
			Description:  "Format " + string(l.Root) + " as Btrfs",
			Command:      cmd("mkfs.btrfs", "-f", string(l.Root)),
			Irreversible: true,
		},
	}}
}

// MountSequence creates the subvolumes and mounts the target tree
func MountSequence(cfg *config.Config, l Layout) sequence.Sequence {
	root := cfg.Target.Root
	opts := cfg.Btrfs.MountOptions
	steps := []sequence.Step{{
		Name:        "mount-top-level",
		Description: "Mount the Btrfs top level",
		Command:     cmd("mount", string(l.Root), root),
	}}

	for _, sv := range cfg.Btrfs.Subvolumes {
		steps = append(steps, sequence.Step{
			Name:        "create-subvolume-" + sv.Name,
			Description: "Create subvolume " + sv.Name,
			Command:     cmd("btrfs", "subvolume", "create", path.Join(root, sv.Name)),
		})
	}

	rootVol, _ := cfg.Btrfs.RootSubvolume()
	steps = append(steps,
		sequence.Step{
			Name:        "unmount-top-level",
			Description: "Unmount the Btrfs top level",
			Command:     cmd("umount", root),
		},
		sequence.Step{
			Name:        "mount-root",
			Description: "Mount subvolume " + rootVol.Name + " at " + root,
			Command:     cmd("mount", "-o", opts+",subvol="+rootVol.Name, string(l.Root), root),
		},
	)

	mkdir := []string{"-p"}
	for _, sv := range cfg.Btrfs.MountedSubvolumes() {
		mkdir = append(mkdir, targetPath(cfg, sv.MountPoint))
	}
	mkdir = append(mkdir, targetPath(cfg, cfg.Bootloader.EFIDirectory))
	steps = append(steps, sequence.Step{
		Name:        "create-mountpoints",
		Description: "Create mount points",
		Command:     cmd("mkdir", mkdir...),
	})

	for _, sv := range cfg.Btrfs.MountedSubvolumes() {
		steps = append(steps, sequence.Step{
			Name:        "mount-subvolume-" + sv.Name,
			Description: "Mount subvolume " + sv.Name + " at " + targetPath(cfg, sv.MountPoint),
			Command:     cmd("mount", "-o", opts+",subvol="+sv.Name, string(l.Root), targetPath(cfg, sv.MountPoint)),
		})
	}

	steps = append(steps,
		sequence.Step{
			Name:        "mount-efi",
			Description: "Mount the EFI partition",
			Command:     cmd("mount", string(l.EFI), targetPath(cfg, cfg.Bootloader.EFIDirectory)),
		},
		sequence.Step{
			Name:        "enable-swap",
			Description: "Enable swap on " + string(l.Swap),
			Command:     cmd("swapon", string(l.Swap)),
		},
	)

	return sequence.Sequence{Name: "mount", Steps: steps}
}

// BaseInstallSequence bootstraps the package set into the target
func BaseInstallSequence(cfg *config.Config) sequence.Sequence {
	args := append([]string{"-K", cfg.Target.Root}, cfg.Install.Packages...)
	return sequence.Sequence{Name: "base-install", Steps: []sequence.Step{{
		Name:        "pacstrap",
		Description: "Install " + strings.Join(cfg.Install.Packages, " "),
		Command:     cmd("pacstrap", args...),
	}}}
}

// FstabSequence generates fstab entries, appends them to the target's
// /etc/fstab and shows them for review. target is rooted at the target
// root. In dry runs nothing is written.
func FstabSequence(cfg *config.Config, r runner.Runner, target filesystem.FS, dryRun bool) sequence.Sequence {
	gen := cmd("genfstab", "-U", cfg.Target.Root)
	gen.Quiet = true

	return sequence.Sequence{Name: "fstab", Steps: []sequence.Step{{
		Name:        "generate-fstab",
		Description: "Generate " + targetPath(cfg, "/etc/fstab"),
		Verify:      true,
		Shows:       gen,
		Action: func(ctx context.Context) (string, error) {
			res, err := r.Run(ctx, gen)
			if err != nil {
				return res.Output, err
			}
			if dryRun {
				return res.Output, nil
			}
			if err := target.MkdirAll("/etc", 0755); err != nil {
				return "", errors.Wrap(err, errors.ErrStepFailed, "failed to create /etc in the target")
			}
			if err := target.AppendFile("/etc/fstab", []byte(res.Output), 0644); err != nil {
				return res.Output, errors.Wrapf(err, errors.ErrStepFailed, "failed to append to %s", targetPath(cfg, "/etc/fstab")).
					WithDetail(errors.DetailPath, targetPath(cfg, "/etc/fstab"))
			}
			return res.Output, nil
		},
	}}}
}

// UnmountSequence releases the target tree
func UnmountSequence(cfg *config.Config) sequence.Sequence {
	return sequence.Sequence{Name: "unmount", Steps: []sequence.Step{{
		Name:        "unmount-all",
		Description: "Unmount " + cfg.Target.Root,
		Command:     cmd("umount", "-R", cfg.Target.Root),
	}}}
}

// RebootSequence restarts into the installed system
func RebootSequence() sequence.Sequence {
	return sequence.Sequence{Name: "reboot", Steps: []sequence.Step{{
		Name:        "reboot",
		Description: "Reboot into the new system",
		Command:     cmd("reboot"),
	}}}
}

// OuterPlan lists the outer sequences in run order, for display. The steps
// are not meant to be executed.
func OuterPlan(cfg *config.Config, l Layout, reboot bool) []sequence.Sequence {
	plan := []sequence.Sequence{
		DiskListSequence(cfg),
		PartitionSequence(cfg, l),
		FormatSequence(l),
		MountSequence(cfg, l),
		BaseInstallSequence(cfg),
		FstabSequence(cfg, nil, nil, true),
		{Name: "chroot", Steps: []sequence.Step{ChrootStep(ChrootStepOptions{Config: cfg, DryRun: true})}},
		UnmountSequence(cfg),
	}
	if reboot {
		plan = append(plan, RebootSequence())
	}
	return plan
}
