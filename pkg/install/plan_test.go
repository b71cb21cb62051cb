package install

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

func commandLines(seq sequence.Sequence) []string {
	var out []string
	for _, s := range seq.Steps {
		if s.Command.Name != "" {
			out = append(out, s.Command.String())
		}
	}
	return out
}

func TestMountSequenceCustomSubvolumes(t *testing.T) {
	cfg := config.Default()
	cfg.Btrfs.MountOptions = "compress=zstd:3"
	cfg.Btrfs.Subvolumes = []config.Subvolume{
		{Name: "@home", MountPoint: "/home"},
		{Name: "@", MountPoint: "/"},
		{Name: "@snapshots", MountPoint: "/.snapshots"},
	}
	l := Layout{Disk: "/dev/vda", EFI: "/dev/vda1", Swap: "/dev/vda2", Root: "/dev/vda3"}

	seq := MountSequence(cfg, l)
	require.NoError(t, seq.Validate())
	assert.Equal(t, []string{
		"mount /dev/vda3 /mnt",
		"btrfs subvolume create /mnt/@home",
		"btrfs subvolume create /mnt/@",
		"btrfs subvolume create /mnt/@snapshots",
		"umount /mnt",
		"mount -o compress=zstd:3,subvol=@ /dev/vda3 /mnt",
		"mkdir -p /mnt/home /mnt/.snapshots /mnt/boot",
		"mount -o compress=zstd:3,subvol=@home /dev/vda3 /mnt/home",
		"mount -o compress=zstd:3,subvol=@snapshots /dev/vda3 /mnt/.snapshots",
		"mount /dev/vda1 /mnt/boot",
		"swapon /dev/vda2",
	}, commandLines(seq))
}

func TestGates(t *testing.T) {
	cfg := config.Default()
	l := PlaceholderLayout()

	part := PartitionSequence(cfg, l).Steps[0]
	assert.True(t, part.Irreversible)
	assert.True(t, part.Command.Interactive)
	assert.Equal(t, sequence.IgnoreExit, part.Policy)

	for _, s := range FormatSequence(l).Steps {
		assert.True(t, s.Irreversible, s.Name)
		assert.Equal(t, sequence.FailFast, s.Policy, s.Name)
	}

	fstab := FstabSequence(cfg, nil, filesystem.NewMemory(), true).Steps[0]
	assert.True(t, fstab.Verify)
}

func TestOuterPlan(t *testing.T) {
	cfg := config.Default()

	plan := OuterPlan(cfg, PlaceholderLayout(), true)
	var names []string
	for _, seq := range plan {
		require.NoError(t, seq.Validate(), seq.Name)
		names = append(names, seq.Name)
	}
	assert.Equal(t, []string{"disks", "partition", "format", "mount", "base-install", "fstab", "chroot", "unmount", "reboot"}, names)

	noReboot := OuterPlan(cfg, PlaceholderLayout(), false)
	assert.Equal(t, "unmount", noReboot[len(noReboot)-1].Name)

	lines := sequence.Describe(plan[2])
	assert.Equal(t, " 1. format-efi: Format <efi-partition> as FAT32 (mkfs.fat -F32 <efi-partition>) [confirm]", lines[0])
}

func TestOuterPlanShowsActionCommands(t *testing.T) {
	cfg := config.Default()
	plan := OuterPlan(cfg, PlaceholderLayout(), true)

	assert.Equal(t, []string{
		" 1. generate-fstab: Generate /mnt/etc/fstab (genfstab -U /mnt) [verify]",
	}, sequence.Describe(plan[5]))
	assert.Equal(t, []string{
		" 1. chroot: Configure the new system inside arch-chroot " +
			"(arch-chroot /mnt /root/archstrap-stage chroot --handoff /root/archstrap-handoff.toml)",
	}, sequence.Describe(plan[6]))
}

func TestChrootPlanHidesSecrets(t *testing.T) {
	cfg := config.Default()
	seq := ChrootPlan(cfg, PlaceholderIdentity(), filesystem.NewMemory())
	require.NoError(t, seq.Validate())

	text := strings.Join(sequence.Describe(seq), "\n")
	assert.Contains(t, text, "chpasswd")
	assert.NotContains(t, text, "root:")
}

func TestLayoutSummary(t *testing.T) {
	cfg := config.Default()
	l := Layout{Disk: "/dev/sdX", EFI: "/dev/sdX1", Swap: "/dev/sdX2", Root: "/dev/sdX3"}

	md := l.Summary(cfg)
	assert.Contains(t, md, "# Partition layout for /dev/sdX")
	assert.Contains(t, md, "| EFI system | /dev/sdX1 | FAT32 | /mnt/boot |")
	assert.Contains(t, md, "| Root (@home) | /dev/sdX3 | Btrfs | /mnt/home |")
}

func TestLayoutConflict(t *testing.T) {
	assert.Empty(t, Layout{Disk: "/dev/a", EFI: "/dev/a1", Swap: "/dev/a2", Root: "/dev/a3"}.conflict())
	assert.Contains(t, Layout{Disk: "/dev/a", EFI: "/dev/a", Swap: "/dev/a2", Root: "/dev/a3"}.conflict(), "used as the disk")
	assert.Contains(t, Layout{Disk: "/dev/a", EFI: "/dev/a1", Swap: "/dev/a2", Root: "/dev/a2"}.conflict(), "root partition /dev/a2")
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "preconditions", StagePreconditions.String())
	assert.Equal(t, "partition-assignment", StagePartitionAssignment.String())
	assert.Equal(t, "aborted", StageAborted.String())
	assert.Equal(t, "unknown", Stage(99).String())
	assert.True(t, StageDone.Terminal())
	assert.False(t, StageFormat.Terminal())
}
