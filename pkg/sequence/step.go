package sequence

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/runner"
)

// Policy decides what a non-zero exit means
type Policy int

const (
	// FailFast stops the sequence on a non-zero exit
	FailFast Policy = iota
	// IgnoreExit logs a non-zero exit and carries on. A command that could
	// not be started still fails.
	IgnoreExit
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case IgnoreExit:
		return "ignore-exit"
	default:
		return "unknown"
	}
}

// Action is a Go-native step body. The returned output is shown like
// command output.
type Action func(ctx context.Context) (output string, err error)

// Step is one installation step
type Step struct {
	Name        string
	Description string

	// Exactly one of Command or Action is set
	Command runner.Command
	Action  Action

	// Shows is the command an Action runs, for Describe only
	Shows runner.Command

	Policy Policy

	// Irreversible steps need explicit confirmation right before they run
	Irreversible bool
	// Verify steps display their output and wait for acknowledgement
	Verify bool
}

// Sequence is an ordered list of steps
type Sequence struct {
	Name  string
	Steps []Step
}

// Validate checks the sequence is well formed
func (s Sequence) Validate() error {
	seen := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return errors.Newf(errors.ErrInternal, "sequence %s: step %d has no name", s.Name, i+1)
		}
		if seen[step.Name] {
			return errors.Newf(errors.ErrInternal, "sequence %s: duplicate step %s", s.Name, step.Name)
		}
		seen[step.Name] = true

		hasCommand := step.Command.Name != ""
		hasAction := step.Action != nil
		if hasCommand == hasAction {
			return errors.Newf(errors.ErrInternal, "sequence %s: step %s needs exactly one of command or action", s.Name, step.Name)
		}
	}
	return nil
}

// Names returns step names in order
func (s Sequence) Names() []string {
	names := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		names[i] = step.Name
	}
	return names
}

// Describe renders one line per step for plans and dry runs
func Describe(s Sequence) []string {
	lines := make([]string, 0, len(s.Steps))
	for i, step := range s.Steps {
		what := step.Description
		switch {
		case step.Command.Name != "":
			what = fmt.Sprintf("%s (%s)", step.Description, step.Command)
		case step.Shows.Name != "":
			what = fmt.Sprintf("%s (%s)", step.Description, step.Shows)
		}

		var marks []string
		if step.Irreversible {
			marks = append(marks, "confirm")
		}
		if step.Verify {
			marks = append(marks, "verify")
		}
		if step.Policy == IgnoreExit {
			marks = append(marks, "exit status ignored")
		}

		line := fmt.Sprintf("%2d. %s: %s", i+1, step.Name, what)
		if len(marks) > 0 {
			line += " [" + strings.Join(marks, ", ") + "]"
		}
		lines = append(lines, line)
	}
	return lines
}
