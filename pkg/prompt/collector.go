// Package prompt collects and validates operator input for archstrap.
//
// A Collector is always constructed explicitly. The outer installer and the
// chroot stage each build their own; they share nothing.
package prompt

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/precheck"
)

// Field is a validated, non-empty text value
type Field string

func (f Field) String() string { return string(f) }

// Device is a path validated as a block device
type Device string

func (d Device) String() string { return string(d) }

// DeviceChecker returns nil when path is a block device
type DeviceChecker func(path string) error

// Collector prompts on out and reads answers from in
type Collector struct {
	in          *bufio.Reader
	out         io.Writer
	secrets     SecretReader
	checkDevice DeviceChecker
	logger      zerolog.Logger
}

// Option configures a Collector
type Option func(*Collector)

// WithSecretReader replaces the masked reader
func WithSecretReader(r SecretReader) Option {
	return func(c *Collector) { c.secrets = r }
}

// WithDeviceChecker replaces the block device check
func WithDeviceChecker(check DeviceChecker) Option {
	return func(c *Collector) { c.checkDevice = check }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// New creates a Collector. When in is a terminal, secrets are read
// without echo; otherwise they are read as plain lines from in.
func New(in io.Reader, out io.Writer, opts ...Option) *Collector {
	c := &Collector{
		in:          bufio.NewReader(in),
		out:         out,
		checkDevice: precheck.CheckBlockDevice,
		logger:      logging.GetLogger("prompt"),
	}
	if f, ok := IsTerminal(in); ok {
		c.secrets = TerminalSecretReader{File: f, Out: out}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectField prompts until a non-blank value is entered
func (c *Collector) CollectField(prompt string) (Field, error) {
	for {
		fmt.Fprintf(c.out, "%s: ", prompt)
		line, err := c.readLine()
		if err != nil {
			return "", err
		}
		value := strings.TrimSpace(line)
		if err := validateField(value); err != nil {
			c.reject(prompt, err)
			continue
		}
		return Field(value), nil
	}
}

// CollectSecret reads two masked entries until they are non-empty and equal.
// The value never reaches the log or the terminal.
func (c *Collector) CollectSecret(prompt string) (Secret, error) {
	for {
		fmt.Fprintf(c.out, "%s: ", prompt)
		first, err := c.readSecret()
		if err != nil {
			return Secret{}, err
		}
		fmt.Fprintf(c.out, "Confirm %s: ", lowerFirst(prompt))
		second, err := c.readSecret()
		if err != nil {
			return Secret{}, err
		}

		if err := validateSecret(first, second); err != nil {
			c.reject(prompt, err)
			continue
		}
		return Secret{value: first}, nil
	}
}

// validateField and validateSecret return VALIDATION errors. Those never
// leave the collector: the operator is asked again.
func validateField(value string) error {
	if value == "" {
		return errors.New(errors.ErrValidation, "Value cannot be empty")
	}
	return nil
}

func validateSecret(first, second string) error {
	switch {
	case first == "":
		return errors.New(errors.ErrValidation, "Value cannot be empty")
	case first != second:
		return errors.New(errors.ErrValidation, "Entries do not match")
	}
	return nil
}

func (c *Collector) reject(prompt string, err error) {
	msg := err.Error()
	var installErr *errors.InstallError
	if stderrors.As(err, &installErr) {
		msg = installErr.Message
	}
	c.logger.Debug().Str("prompt", prompt).Str("reason", msg).Msg("Rejected input")
	fmt.Fprintf(c.out, "%s, please try again.\n", msg)
}

// CollectValidatedDevice collects a path and requires it to be a block
// device. An invalid device is not re-prompted: it aborts the run.
func (c *Collector) CollectValidatedDevice(prompt, description string) (Device, error) {
	value, err := c.CollectField(prompt)
	if err != nil {
		return "", err
	}
	if err := c.checkDevice(string(value)); err != nil {
		c.logger.Error().Err(err).Str("device", string(value)).Str("role", description).Msg("Device validation failed")
		return "", errors.Wrapf(err, errors.ErrPrecondition, "%s %s is not a valid block device", description, value).
			WithDetail(errors.DetailPath, string(value))
	}
	c.logger.Info().Str("device", string(value)).Str("role", description).Msg("Device accepted")
	return Device(value), nil
}

func (c *Collector) readSecret() (string, error) {
	if c.secrets != nil {
		s, err := c.secrets.ReadSecret()
		if err != nil {
			return "", errors.Wrap(err, errors.ErrOperatorAbort, "failed to read secret input")
		}
		return s, nil
	}
	line, err := c.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r"), nil
}

// readLine returns one line without its newline. Closed input is an
// operator abort.
func (c *Collector) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil {
		if stderrors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		if stderrors.Is(err, io.EOF) {
			return "", errors.New(errors.ErrOperatorAbort, "input closed")
		}
		return "", errors.Wrap(err, errors.ErrOperatorAbort, "failed to read user input")
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
