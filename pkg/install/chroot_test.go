package install

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/prompt"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
	"github.com/arthur-debert/archstrap/pkg/style"
	"github.com/arthur-debert/archstrap/pkg/testutil"
)

const stockLocaleGen = "# Configuration file for locale-gen\n#\n#de_DE.UTF-8 UTF-8\n#en_US ISO-8859-1\n#en_US.UTF-8 UTF-8\n"

var expectedChrootCommands = []string{
	"ln -sf /usr/share/zoneinfo/UTC /etc/localtime",
	"hwclock --systohc",
	"locale-gen",
	"chpasswd",
	"useradd -m -G wheel -s /bin/bash archuser",
	"chpasswd",
	"visudo -cf /etc/sudoers.d/10-wheel",
	"grub-install --target=x86_64-efi --efi-directory=/boot --bootloader-id=GRUB",
	"grub-mkconfig -o /boot/grub/grub.cfg",
	"systemctl enable NetworkManager",
}

type stageHarness struct {
	runner  *testutil.FakeRunner
	root    filesystem.FS
	display *bytes.Buffer
	secrets *testutil.SecretQueue
	opts    StageOptions
}

func newStageHarness(t *testing.T, lines []string, secrets ...string) *stageHarness {
	t.Helper()
	root := filesystem.NewMemory()
	require.NoError(t, root.MkdirAll("/etc", 0755))
	require.NoError(t, root.WriteFile("/etc/locale.gen", []byte(stockLocaleGen), 0644))
	require.NoError(t, root.WriteFile("/root/"+StageBinaryName, []byte("bin"), 0700))
	require.NoError(t, root.WriteFile("/root/"+HandoffName, []byte("cfg"), 0600))

	h := &stageHarness{
		runner:  testutil.NewFakeRunner(),
		root:    root,
		display: &bytes.Buffer{},
		secrets: testutil.NewSecretQueue(secrets...),
	}
	var prompts bytes.Buffer
	collector := prompt.New(testutil.Input(lines...), &prompts,
		prompt.WithLogger(zerolog.Nop()),
		prompt.WithSecretReader(h.secrets),
	)
	h.opts = StageOptions{
		Config:    config.Default(),
		Runner:    h.runner,
		Collector: collector,
		Display:   style.NewReporter(h.display, style.FormatText),
		Logger:    &nopLogger,
		Root:      root,
		Cleanup:   []string{"/root/" + StageBinaryName, "/root/" + HandoffName},
	}
	return h
}

func (h *stageHarness) assertCleanedUp(t *testing.T) {
	t.Helper()
	for _, name := range h.opts.Cleanup {
		_, err := h.root.Stat(name)
		assert.True(t, os.IsNotExist(err), "%s must be removed", name)
	}
}

func readString(t *testing.T, fs filesystem.FS, name string) string {
	t.Helper()
	data, err := fs.ReadFile(name)
	require.NoError(t, err)
	return string(data)
}

func TestRunChrootStage(t *testing.T) {
	h := newStageHarness(t, []string{"archbox", "archuser"}, "rootpw", "rootpw", "userpw", "userpw")

	require.NoError(t, RunChrootStage(context.Background(), h.opts))

	assert.Equal(t, expectedChrootCommands, h.runner.CommandLines())

	calls := h.runner.Calls()
	assert.Equal(t, "root:rootpw\n", calls[3].Stdin)
	assert.Equal(t, "archuser:userpw\n", calls[5].Stdin)

	assert.Equal(t, "archbox\n", readString(t, h.root, "/etc/hostname"))
	assert.Equal(t, "LANG=en_US.UTF-8\n", readString(t, h.root, "/etc/locale.conf"))
	assert.Equal(t, "KEYMAP=us\n", readString(t, h.root, "/etc/vconsole.conf"))
	assert.Contains(t, readString(t, h.root, "/etc/hosts"), "127.0.1.1\tarchbox.localdomain\tarchbox\n")
	assert.Equal(t, "%wheel ALL=(ALL:ALL) ALL\n", readString(t, h.root, "/etc/sudoers.d/10-wheel"))

	info, err := h.root.Stat("/etc/sudoers.d/10-wheel")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0440), info.Mode().Perm())

	localeGen := readString(t, h.root, "/etc/locale.gen")
	assert.Contains(t, localeGen, "\nen_US.UTF-8 UTF-8\n")
	assert.Contains(t, localeGen, "#de_DE.UTF-8 UTF-8")
	assert.Contains(t, localeGen, "#en_US ISO-8859-1")

	h.assertCleanedUp(t)
	assert.NotContains(t, h.display.String(), "rootpw")
	assert.NotContains(t, h.display.String(), "userpw")
}

func TestRunChrootStageSecretMismatchReprompts(t *testing.T) {
	h := newStageHarness(t, []string{"archbox", "archuser"},
		"rootpw", "typo", "rootpw", "rootpw", "", "", "userpw", "userpw")

	require.NoError(t, RunChrootStage(context.Background(), h.opts))
	assert.Equal(t, 8, h.secrets.Reads)
	assert.Equal(t, "root:rootpw\n", h.runner.Calls()[3].Stdin)
}

func TestRunChrootStageFailureStillCleansUp(t *testing.T) {
	h := newStageHarness(t, []string{"archbox", "archuser"}, "rootpw", "rootpw", "userpw", "userpw")
	h.runner.FailOn("grub-install", 1, "EFI variables are not supported")

	err := RunChrootStage(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStepFailed))
	assert.Equal(t, "grub-install", errors.GetErrorDetails(err)[errors.DetailStep])

	assert.NotContains(t, h.runner.CommandLines(), "systemctl enable NetworkManager")
	h.assertCleanedUp(t)
}

func TestRunChrootStageEndOfInput(t *testing.T) {
	h := newStageHarness(t, nil)

	err := RunChrootStage(context.Background(), h.opts)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrOperatorAbort))
	assert.Empty(t, h.runner.CommandLines())
	h.assertCleanedUp(t)
}

func TestChrootPlanWithoutWheel(t *testing.T) {
	cfg := config.Default()
	cfg.System.UserGroups = nil
	cfg.System.Services = []string{"NetworkManager", "sshd"}

	seq := ChrootPlan(cfg, Identity{Hostname: "h", Username: "u"}, filesystem.NewMemory())
	require.NoError(t, seq.Validate())

	names := seq.Names()
	assert.NotContains(t, names, "sudoers")
	assert.Contains(t, names, "enable-sshd")

	for _, step := range seq.Steps {
		if step.Name == "create-user" {
			assert.Equal(t, "useradd -m -s /bin/bash u", step.Command.String())
		}
	}
}

func TestEnableLocale(t *testing.T) {
	tests := []struct {
		name    string
		content string
		locale  string
		want    string
	}{
		{
			name:    "uncomments matching entry",
			content: "#en_US.UTF-8 UTF-8\n#de_DE.UTF-8 UTF-8\n",
			locale:  "en_US.UTF-8",
			want:    "en_US.UTF-8 UTF-8\n#de_DE.UTF-8 UTF-8\n",
		},
		{
			name:    "already enabled",
			content: "en_US.UTF-8 UTF-8\n",
			locale:  "en_US.UTF-8",
			want:    "en_US.UTF-8 UTF-8\n",
		},
		{
			name:    "prefix is not a match",
			content: "#en_US ISO-8859-1\n",
			locale:  "en_US.UTF-8",
			want:    "#en_US ISO-8859-1\nen_US.UTF-8 UTF-8\n",
		},
		{
			name:    "missing file",
			content: "",
			locale:  "fr_FR.ISO-8859-15",
			want:    "fr_FR.ISO-8859-15 ISO-8859-15\n",
		},
		{
			name:    "no trailing newline",
			content: "# comment",
			locale:  "en_GB.UTF-8",
			want:    "# comment\nen_GB.UTF-8 UTF-8\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(enableLocale([]byte(tt.content), tt.locale)))
		})
	}
}

func TestChrootStepStagesAndCleansUp(t *testing.T) {
	cfg := config.Default()
	fake := testutil.NewFakeRunner()
	source := filesystem.NewMemory()
	require.NoError(t, source.WriteFile("/proc/self/exe", []byte("exe"), 0755))
	target := filesystem.NewMemory()

	step := ChrootStep(ChrootStepOptions{Config: cfg, Runner: fake, Target: target, Source: source, Executable: "/proc/self/exe"})
	assert.Equal(t, "chroot", step.Name)

	_, err := step.Action(context.Background())
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Command.Interactive, "the chroot stage prompts on the terminal")

	_, err = target.Stat("/root/" + StageBinaryName)
	assert.True(t, os.IsNotExist(err))
}

func TestChrootStepMissingExecutable(t *testing.T) {
	fake := testutil.NewFakeRunner()
	step := ChrootStep(ChrootStepOptions{
		Config:     config.Default(),
		Runner:     fake,
		Target:     filesystem.NewMemory(),
		Source:     filesystem.NewMemory(),
		Executable: "/missing",
	})

	_, err := step.Action(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStepFailed))
	assert.Empty(t, fake.CommandLines(), "arch-chroot is not invoked without a staged binary")
}

func TestChrootStepFailureFailsOuterStep(t *testing.T) {
	cfg := config.Default()
	fake := testutil.NewFakeRunner().FailOn("arch-chroot", 1, "grub-install: error: efibootmgr failed")
	source := filesystem.NewMemory()
	require.NoError(t, source.WriteFile("/usr/bin/archstrap", []byte("exe"), 0755))

	outer := sequence.Sequence{Name: "outer", Steps: []sequence.Step{
		{Name: "pacstrap", Description: "install", Command: runner.Command{Name: "pacstrap"}},
		ChrootStep(ChrootStepOptions{
			Config:     cfg,
			Runner:     fake,
			Target:     filesystem.NewMemory(),
			Source:     source,
			Executable: "/usr/bin/archstrap",
		}),
		{Name: "unmount-all", Description: "unmount", Command: runner.Command{Name: "umount"}},
	}}

	res, err := sequence.New(sequence.Options{Runner: fake, Logger: &nopLogger}).Run(context.Background(), outer)
	require.Error(t, err)

	require.NotNil(t, res.Failed)
	assert.Equal(t, "chroot", res.Failed.Step, "the nested run counts as the single outer step")
	assert.Equal(t, "grub-install: error: efibootmgr failed", res.Failed.Output)
	assert.Equal(t, []string{"pacstrap"}, res.CompletedNames())
	assert.True(t, errors.IsErrorCode(err, errors.ErrStepFailed))

	cmds := fake.CommandLines()
	assert.Equal(t, "pacstrap", cmds[0])
	assert.Len(t, cmds, 2, "later outer steps never run")
}

func TestChrootStepSuccessContinuesOuterSequence(t *testing.T) {
	cfg := config.Default()
	fake := testutil.NewFakeRunner()
	source := filesystem.NewMemory()
	require.NoError(t, source.WriteFile("/usr/bin/archstrap", []byte("exe"), 0755))

	outer := sequence.Sequence{Name: "outer", Steps: []sequence.Step{
		ChrootStep(ChrootStepOptions{
			Config:     cfg,
			Runner:     fake,
			Target:     filesystem.NewMemory(),
			Source:     source,
			Executable: "/usr/bin/archstrap",
		}),
		{Name: "unmount-all", Description: "unmount", Command: runner.Command{Name: "umount"}},
	}}

	res, err := sequence.New(sequence.Options{Runner: fake, Logger: &nopLogger}).Run(context.Background(), outer)
	require.NoError(t, err)
	assert.Equal(t, []string{"chroot", "unmount-all"}, res.CompletedNames())
}
