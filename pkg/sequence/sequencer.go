package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/logging"
	"github.com/arthur-debert/archstrap/pkg/runner"
)

// Gate is asked before irreversible steps and after verify steps
type Gate interface {
	Require(action string, details ...string) error
	Acknowledge(message string) error
}

// Reporter receives progress for display
type Reporter interface {
	StepStarted(index, total int, step Step)
	StepSucceeded(step Step, res runner.Result)
	StepFailed(failure *StepFailure)
	ShowOutput(step Step, output string)
}

// StepResult records a completed step
type StepResult struct {
	Name     string
	ExitCode int
	Output   string
	Duration time.Duration
}

// StepFailure identifies the step that stopped a sequence
type StepFailure struct {
	Sequence    string
	Step        string
	Description string
	ExitCode    int
	Output      string
	Err         error
}

// Result is the outcome of a sequence run
type Result struct {
	Sequence  string
	Completed []StepResult
	Failed    *StepFailure
}

// Succeeded reports whether every step completed
func (r Result) Succeeded() bool {
	return r.Failed == nil
}

// CompletedNames returns the names of completed steps in order
func (r Result) CompletedNames() []string {
	names := make([]string, len(r.Completed))
	for i, c := range r.Completed {
		names[i] = c.Name
	}
	return names
}

// Options contains configuration for the sequencer
type Options struct {
	Runner   runner.Runner
	Gate     Gate
	Reporter Reporter
	Logger   *zerolog.Logger
}

// Sequencer executes sequences
type Sequencer struct {
	runner   runner.Runner
	gate     Gate
	reporter Reporter
	logger   zerolog.Logger
}

// New creates a new sequencer
func New(opts Options) *Sequencer {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Sequencer{
		runner:   opts.Runner,
		gate:     opts.Gate,
		reporter: reporter,
		logger:   logging.ComponentLogger(opts.Logger, "sequence"),
	}
}

// Run executes seq in order and stops at the first failure
func (s *Sequencer) Run(ctx context.Context, seq Sequence) (Result, error) {
	result := Result{Sequence: seq.Name}
	if err := seq.Validate(); err != nil {
		return result, err
	}

	done := logging.LogOperationStart(s.logger, "sequence "+seq.Name)
	defer done()

	total := len(seq.Steps)
	for i, step := range seq.Steps {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, errors.ErrOperatorAbort, "interrupted before step %s", step.Name).
				WithDetail(errors.DetailStep, step.Name)
		}

		s.reporter.StepStarted(i+1, total, step)
		log := s.logger.With().Str("sequence", seq.Name).Str("step", step.Name).Logger()

		if step.Irreversible {
			if s.gate == nil {
				return result, errors.Newf(errors.ErrInternal, "step %s needs a confirmation gate", step.Name)
			}
			if err := s.gate.Require(step.Description, "This cannot be undone."); err != nil {
				log.Warn().Err(err).Msg("Irreversible step not confirmed")
				return result, err
			}
		}

		start := time.Now()
		res, err := s.execute(ctx, step)
		res.Duration = time.Since(start)

		if err != nil && step.Policy == IgnoreExit && res.ExitCode > 0 && ctx.Err() == nil {
			log.Warn().Err(err).Int("exitCode", res.ExitCode).Msg("Ignoring non-zero exit status")
			err = nil
		}

		if err != nil {
			failure := &StepFailure{
				Sequence:    seq.Name,
				Step:        step.Name,
				Description: step.Description,
				ExitCode:    res.ExitCode,
				Output:      res.Output,
				Err:         err,
			}
			result.Failed = failure
			s.reporter.StepFailed(failure)
			log.Error().Err(err).Int("exitCode", res.ExitCode).Msg("Step failed, stopping sequence")

			code := errors.ErrStepFailed
			if errors.IsErrorCode(err, errors.ErrOperatorAbort) || ctx.Err() != nil {
				code = errors.ErrOperatorAbort
			}
			return result, errors.Wrapf(err, code, "step %s (%s) failed", step.Name, step.Description).
				WithDetail(errors.DetailStep, step.Name).
				WithDetail(errors.DetailOutput, res.Output)
		}

		result.Completed = append(result.Completed, StepResult{
			Name:     step.Name,
			ExitCode: res.ExitCode,
			Output:   res.Output,
			Duration: res.Duration,
		})
		s.reporter.StepSucceeded(step, res)
		log.Info().Dur("duration", res.Duration).Msg("Step completed")

		if step.Verify {
			s.reporter.ShowOutput(step, res.Output)
			if s.gate == nil {
				return result, errors.Newf(errors.ErrInternal, "step %s needs a verification gate", step.Name)
			}
			if err := s.gate.Acknowledge(fmt.Sprintf("Review the output of %q above.", step.Description)); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func (s *Sequencer) execute(ctx context.Context, step Step) (runner.Result, error) {
	if step.Action != nil {
		out, err := step.Action(ctx)
		res := runner.Result{Output: out}
		if err != nil {
			res.ExitCode = 1
		}
		return res, err
	}
	if s.runner == nil {
		return runner.Result{ExitCode: -1}, errors.Newf(errors.ErrInternal, "step %s needs a runner", step.Name)
	}
	return s.runner.Run(ctx, step.Command)
}

// NopReporter discards progress
type NopReporter struct{}

func (NopReporter) StepStarted(int, int, Step)        {}
func (NopReporter) StepSucceeded(Step, runner.Result) {}
func (NopReporter) StepFailed(*StepFailure)           {}
func (NopReporter) ShowOutput(Step, string)           {}
