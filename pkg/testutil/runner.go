package testutil

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/runner"
)

// Call is one recorded invocation
type Call struct {
	Command runner.Command
	Stdin   string
}

// Handler answers a matched command
type Handler func(cmd runner.Command) (runner.Result, error)

type handler struct {
	prefix string
	fn     Handler
}

// FakeRunner implements runner.Runner. Unmatched commands succeed with no
// output. When several handlers match, the most recently added wins.
type FakeRunner struct {
	mu       sync.Mutex
	calls    []Call
	handlers []handler
}

// NewFakeRunner creates an empty fake
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// OnPrefix installs fn for command lines starting with prefix
func (f *FakeRunner) OnPrefix(prefix string, fn Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler{prefix: prefix, fn: fn})
	return f
}

// FailOn makes matching commands exit non-zero with output
func (f *FakeRunner) FailOn(prefix string, exitCode int, output string) *FakeRunner {
	return f.OnPrefix(prefix, func(cmd runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: exitCode, Output: output},
			errors.Newf(errors.ErrStepFailed, "command failed: %s", cmd.Name).
				WithDetail(errors.DetailOutput, output)
	})
}

// Output makes matching commands succeed with output
func (f *FakeRunner) Output(prefix, output string) *FakeRunner {
	return f.OnPrefix(prefix, func(runner.Command) (runner.Result, error) {
		return runner.Result{Output: output}, nil
	})
}

// Run records cmd and returns the scripted result
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1}, err
	}

	var stdin string
	if cmd.Stdin != nil {
		b, _ := io.ReadAll(cmd.Stdin)
		stdin = string(b)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Command: cmd, Stdin: stdin})
	var fn Handler
	line := cmd.String()
	for i := len(f.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.handlers[i].prefix) {
			fn = f.handlers[i].fn
			break
		}
	}
	f.mu.Unlock()

	if fn == nil {
		return runner.Result{}, nil
	}
	return fn(cmd)
}

// Calls returns a copy of the recorded invocations
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLines returns the recorded command lines in order
func (f *FakeRunner) CommandLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command.String()
	}
	return out
}
