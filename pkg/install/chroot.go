package install

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/config"
	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/filesystem"
	"github.com/arthur-debert/archstrap/pkg/prompt"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

const (
	// StageBinaryName is the copy of this executable placed in the target
	StageBinaryName = "archstrap-stage"
	// HandoffName is the configuration passed to the chroot stage
	HandoffName = "archstrap-handoff.toml"

	sudoersDropIn = "/etc/sudoers.d/10-wheel"
)

// Identity is what the chroot stage asks the operator for
type Identity struct {
	Hostname     prompt.Field
	RootPassword prompt.Secret
	Username     prompt.Field
	UserPassword prompt.Secret
}

// PlaceholderIdentity is used when rendering plans before any input
func PlaceholderIdentity() Identity {
	return Identity{Hostname: "<hostname>", Username: "<username>"}
}

// CollectIdentity asks for hostname and credentials in that order
func CollectIdentity(c Collector) (Identity, error) {
	var id Identity
	var err error
	if id.Hostname, err = c.CollectField("Hostname"); err != nil {
		return id, err
	}
	if id.RootPassword, err = c.CollectSecret("Root password"); err != nil {
		return id, err
	}
	if id.Username, err = c.CollectField("Username"); err != nil {
		return id, err
	}
	if id.UserPassword, err = c.CollectSecret("User password"); err != nil {
		return id, err
	}
	return id, nil
}

func writeFileStep(fs filesystem.FS, name, file, content string, perm os.FileMode) sequence.Step {
	return sequence.Step{
		Name:        name,
		Description: "Write " + file,
		Action: func(context.Context) (string, error) {
			if err := fs.MkdirAll(path.Dir(file), 0755); err != nil {
				return "", errors.Wrapf(err, errors.ErrStepFailed, "failed to create %s", path.Dir(file))
			}
			if err := fs.WriteFile(file, []byte(content), perm); err != nil {
				return "", errors.Wrapf(err, errors.ErrStepFailed, "failed to write %s", file).
					WithDetail(errors.DetailPath, file)
			}
			return "", nil
		},
	}
}

func passwordStep(name, user string, secret prompt.Secret) sequence.Step {
	c := cmd("chpasswd")
	c.Stdin = strings.NewReader(user + ":" + secret.Reveal() + "\n")
	c.Quiet = true
	return sequence.Step{
		Name:        name,
		Description: "Set the password for " + user,
		Command:     c,
	}
}

// enableLocale uncomments locale in a locale.gen file, appending an entry
// when the file has none
func enableLocale(content []byte, locale string) []byte {
	lines := strings.SplitAfter(string(content), "\n")
	found := false
	for i, line := range lines {
		entry := strings.TrimLeft(line, "# ")
		fields := strings.Fields(entry)
		if len(fields) == 2 && fields[0] == locale {
			lines[i] = entry
			found = true
		}
	}
	out := strings.Join(lines, "")
	if !found {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += locale + " " + localeCharset(locale) + "\n"
	}
	return []byte(out)
}

func localeCharset(locale string) string {
	if i := strings.IndexByte(locale, '.'); i >= 0 && i < len(locale)-1 {
		return locale[i+1:]
	}
	return "UTF-8"
}

func hasGroup(cfg *config.Config, group string) bool {
	for _, g := range cfg.System.UserGroups {
		if g == group {
			return true
		}
	}
	return false
}

// ChrootPlan is run inside the new system. fs is the new system's root.
func ChrootPlan(cfg *config.Config, id Identity, fs filesystem.FS) sequence.Sequence {
	sys := cfg.System
	host := string(id.Hostname)
	user := string(id.Username)

	steps := []sequence.Step{
		{
			Name:        "timezone",
			Description: "Set the timezone to " + sys.Timezone,
			Command:     cmd("ln", "-sf", path.Join("/usr/share/zoneinfo", sys.Timezone), "/etc/localtime"),
		},
		{
			Name:        "hwclock",
			Description: "Sync the hardware clock",
			Command:     cmd("hwclock", "--systohc"),
		},
		{
			Name:        "enable-locale",
			Description: "Enable " + sys.Locale + " in /etc/locale.gen",
			Action: func(context.Context) (string, error) {
				content, err := fs.ReadFile("/etc/locale.gen")
				if err != nil && !os.IsNotExist(err) {
					return "", errors.Wrap(err, errors.ErrStepFailed, "failed to read /etc/locale.gen")
				}
				if err := fs.WriteFile("/etc/locale.gen", enableLocale(content, sys.Locale), 0644); err != nil {
					return "", errors.Wrap(err, errors.ErrStepFailed, "failed to write /etc/locale.gen")
				}
				return "", nil
			},
		},
		{
			Name:        "locale-gen",
			Description: "Generate locales",
			Command:     cmd("locale-gen"),
		},
		writeFileStep(fs, "locale-conf", "/etc/locale.conf", "LANG="+sys.Locale+"\n", 0644),
		writeFileStep(fs, "vconsole-conf", "/etc/vconsole.conf", "KEYMAP="+sys.Keymap+"\n", 0644),
		writeFileStep(fs, "hostname", "/etc/hostname", host+"\n", 0644),
		writeFileStep(fs, "hosts", "/etc/hosts", fmt.Sprintf(
			"127.0.0.1\tlocalhost\n::1\t\tlocalhost\n127.0.1.1\t%s.localdomain\t%s\n", host, host), 0644),
		passwordStep("root-password", "root", id.RootPassword),
	}

	useradd := []string{"-m"}
	if len(sys.UserGroups) > 0 {
		useradd = append(useradd, "-G", strings.Join(sys.UserGroups, ","))
	}
	useradd = append(useradd, "-s", sys.UserShell, user)
	steps = append(steps,
		sequence.Step{
			Name:        "create-user",
			Description: "Create user " + user,
			Command:     cmd("useradd", useradd...),
		},
		passwordStep("user-password", user, id.UserPassword),
	)

	if hasGroup(cfg, "wheel") {
		steps = append(steps,
			writeFileStep(fs, "sudoers", sudoersDropIn, "%wheel ALL=(ALL:ALL) ALL\n", 0440),
			sequence.Step{
				Name:        "check-sudoers",
				Description: "Validate " + sudoersDropIn,
				Command:     cmd("visudo", "-cf", sudoersDropIn),
			},
		)
	}

	boot := cfg.Bootloader
	steps = append(steps,
		sequence.Step{
			Name:        "grub-install",
			Description: "Install the " + boot.ID + " boot loader",
			Command: cmd("grub-install",
				"--target="+boot.Target,
				"--efi-directory="+boot.EFIDirectory,
				"--bootloader-id="+boot.ID),
		},
		sequence.Step{
			Name:        "grub-mkconfig",
			Description: "Generate the boot loader configuration",
			Command:     cmd("grub-mkconfig", "-o", "/boot/grub/grub.cfg"),
		},
	)

	for _, svc := range sys.Services {
		steps = append(steps, sequence.Step{
			Name:        "enable-" + svc,
			Description: "Enable " + svc,
			Command:     cmd("systemctl", "enable", svc),
		})
	}

	return sequence.Sequence{Name: "chroot", Steps: steps}
}

// ChrootStepOptions configures the outer step that enters the new system
type ChrootStepOptions struct {
	Config *config.Config
	Runner runner.Runner
	// Target is rooted at the target root
	Target filesystem.FS
	// Source holds the running executable
	Source     filesystem.FS
	Executable string
	// ExtraArgs are passed to the chroot stage, e.g. verbosity flags
	ExtraArgs []string
	DryRun    bool
}

// ChrootStep copies this executable and a hand-off configuration into the
// target, runs it there with arch-chroot, and removes both afterwards. The
// nested run counts as this single step.
func ChrootStep(opts ChrootStepOptions) sequence.Step {
	cfg := opts.Config
	binary := path.Join(cfg.Target.StageDir, StageBinaryName)
	handoff := path.Join(cfg.Target.StageDir, HandoffName)

	enter := cmd("arch-chroot", append([]string{cfg.Target.Root, binary, "chroot", "--handoff", handoff}, opts.ExtraArgs...)...)
	enter.Interactive = true

	return sequence.Step{
		Name:        "chroot",
		Description: "Configure the new system inside arch-chroot",
		Shows:       enter,
		Action: func(ctx context.Context) (string, error) {
			if opts.DryRun {
				res, err := opts.Runner.Run(ctx, enter)
				return res.Output, err
			}

			defer func() {
				// The stage removes these itself; this covers a stage that
				// never started
				_ = opts.Target.Remove(binary)
				_ = opts.Target.Remove(handoff)
			}()

			if err := stageFiles(opts, binary, handoff); err != nil {
				return "", err
			}
			res, err := opts.Runner.Run(ctx, enter)
			return res.Output, err
		},
	}
}

func stageFiles(opts ChrootStepOptions, binary, handoff string) error {
	src, err := opts.Source.Open(opts.Executable)
	if err != nil {
		return errors.Wrapf(err, errors.ErrStepFailed, "failed to open %s", opts.Executable)
	}
	defer src.Close()

	if err := opts.Target.CopyFrom(src, binary, 0700); err != nil {
		return errors.Wrapf(err, errors.ErrStepFailed, "failed to stage %s", targetPath(opts.Config, binary)).
			WithDetail(errors.DetailPath, targetPath(opts.Config, binary))
	}

	var buf bytes.Buffer
	if err := config.Encode(&buf, opts.Config); err != nil {
		return err
	}
	if err := opts.Target.WriteFile(handoff, buf.Bytes(), 0600); err != nil {
		return errors.Wrapf(err, errors.ErrStepFailed, "failed to write %s", targetPath(opts.Config, handoff)).
			WithDetail(errors.DetailPath, targetPath(opts.Config, handoff))
	}
	return nil
}
