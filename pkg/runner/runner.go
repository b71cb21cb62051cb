package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/logging"
)

// DefaultOutputLimit is how many trailing bytes of output a Result keeps
const DefaultOutputLimit = 64 * 1024

// Command describes one external tool invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string

	// Stdin feeds the process. Contents are never logged.
	Stdin io.Reader

	// Interactive attaches the process to the controlling terminal and
	// captures nothing. Used for editors such as cfdisk.
	Interactive bool

	// Quiet captures output without echoing it to the operator
	Quiet bool
}

// String renders the command line. Stdin is not part of it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished command reported
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner executes commands and blocks until they exit
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Options contains configuration for the exec runner
type Options struct {
	DryRun bool
	// Logger defaults to the "runner" component logger
	Logger *zerolog.Logger

	// Terminal streams; default to the process's own
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OutputLimit bounds the captured output; 0 means DefaultOutputLimit
	OutputLimit int
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger zerolog.Logger
	dryRun bool
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	limit  int
}

// New creates a new exec runner
func New(opts Options) *ExecRunner {
	r := &ExecRunner{
		logger: logging.ComponentLogger(opts.Logger, "runner"),
		dryRun: opts.DryRun,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		limit:  opts.OutputLimit,
	}
	if r.stdin == nil {
		r.stdin = os.Stdin
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if r.limit <= 0 {
		r.limit = DefaultOutputLimit
	}
	return r
}

// DryRun reports whether commands are only printed
func (r *ExecRunner) DryRun() bool {
	return r.dryRun
}

// Run executes a single command
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Name == "" {
		return Result{ExitCode: -1}, errors.New(errors.ErrInvalidInput, "command requires a name")
	}

	r.logger.Info().
		Str("command", c.Name).
		Strs("args", c.Args).
		Str("workingDir", c.Dir).
		Bool("interactive", c.Interactive).
		Bool("stdin", c.Stdin != nil).
		Msg("Executing command")

	if r.dryRun {
		fmt.Fprintf(r.stdout, "[dry-run] %s\n", c)
		return Result{}, nil
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	for _, key := range sortedKeys(c.Env) {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, c.Env[key]))
	}

	tail := newTailBuffer(r.limit)
	switch {
	case c.Interactive:
		cmd.Stdin = r.stdin
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr
	case c.Quiet:
		cmd.Stdout = tail
		cmd.Stderr = tail
	default:
		cmd.Stdout = io.MultiWriter(r.stdout, tail)
		cmd.Stderr = io.MultiWriter(r.stderr, tail)
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	err := cmd.Run()
	result := Result{
		ExitCode: exitCode(cmd, err),
		Output:   tail.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		r.logger.Error().
			Err(err).
			Str("command", c.Name).
			Strs("args", c.Args).
			Int("exitCode", result.ExitCode).
			Msg("Command execution failed")

		return result, errors.Wrapf(err, errors.ErrStepFailed, "command failed: %s", c.Name).
			WithDetail(errors.DetailOutput, result.Output)
	}

	r.logger.Debug().
		Str("command", c.Name).
		Dur("duration", result.Duration).
		Msg("Command executed successfully")

	return result, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
