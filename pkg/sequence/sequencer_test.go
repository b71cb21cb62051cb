package sequence

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/testutil"
)

type fakeGate struct {
	approve  bool
	required []string
	acks     []string
}

func (g *fakeGate) Require(action string, _ ...string) error {
	g.required = append(g.required, action)
	if !g.approve {
		return errors.Newf(errors.ErrOperatorAbort, "declined: %s", action)
	}
	return nil
}

func (g *fakeGate) Acknowledge(message string) error {
	g.acks = append(g.acks, message)
	return nil
}

type recordingReporter struct {
	NopReporter
	started []string
	failed  []*StepFailure
	shown   []string
}

func (r *recordingReporter) StepStarted(_, _ int, step Step) {
	r.started = append(r.started, step.Name)
}

func (r *recordingReporter) StepFailed(f *StepFailure) {
	r.failed = append(r.failed, f)
}

func (r *recordingReporter) ShowOutput(_ Step, out string) {
	r.shown = append(r.shown, out)
}

func cmdStep(name string) Step {
	return Step{Name: name, Description: "run " + name, Command: runner.Command{Name: name}}
}

var nopLogger = zerolog.Nop()

func newSequencer(r runner.Runner, gate Gate, rep Reporter) *Sequencer {
	return New(Options{Runner: r, Gate: gate, Reporter: rep, Logger: &nopLogger})
}

func TestRunAllStepsInOrder(t *testing.T) {
	fake := testutil.NewFakeRunner()
	seq := Sequence{Name: "outer", Steps: []Step{cmdStep("a"), cmdStep("b"), cmdStep("c")}}

	res, err := newSequencer(fake, nil, nil).Run(context.Background(), seq)
	require.NoError(t, err)

	assert.True(t, res.Succeeded())
	assert.Equal(t, []string{"a", "b", "c"}, fake.CommandLines())
	assert.Equal(t, []string{"a", "b", "c"}, res.CompletedNames())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	fake := testutil.NewFakeRunner().FailOn("b", 2, "b exploded")
	rep := &recordingReporter{}
	seq := Sequence{Name: "outer", Steps: []Step{cmdStep("a"), cmdStep("b"), cmdStep("c")}}

	res, err := newSequencer(fake, nil, rep).Run(context.Background(), seq)
	require.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, fake.CommandLines(), "c must never execute")
	assert.Equal(t, []string{"a"}, res.CompletedNames())
	require.NotNil(t, res.Failed)
	assert.Equal(t, "b", res.Failed.Step)
	assert.Equal(t, 2, res.Failed.ExitCode)
	assert.Equal(t, "b exploded", res.Failed.Output)

	assert.True(t, errors.IsErrorCode(err, errors.ErrStepFailed))
	details := errors.GetErrorDetails(err)
	assert.Equal(t, "b", details[errors.DetailStep])
	assert.Equal(t, "b exploded", details[errors.DetailOutput])
	assert.Contains(t, err.Error(), "b")

	require.Len(t, rep.failed, 1)
	assert.Equal(t, []string{"a", "b"}, rep.started)
}

func TestRunFailureAtFirstAndLastStep(t *testing.T) {
	t.Run("first", func(t *testing.T) {
		fake := testutil.NewFakeRunner().FailOn("a", 1, "")
		res, err := newSequencer(fake, nil, nil).Run(context.Background(),
			Sequence{Name: "s", Steps: []Step{cmdStep("a"), cmdStep("b")}})
		require.Error(t, err)
		assert.Equal(t, []string{"a"}, fake.CommandLines())
		assert.Empty(t, res.Completed)
	})

	t.Run("last", func(t *testing.T) {
		fake := testutil.NewFakeRunner().FailOn("b", 1, "")
		res, err := newSequencer(fake, nil, nil).Run(context.Background(),
			Sequence{Name: "s", Steps: []Step{cmdStep("a"), cmdStep("b")}})
		require.Error(t, err)
		assert.Equal(t, "b", res.Failed.Step)
		assert.Equal(t, []string{"a"}, res.CompletedNames())
	})
}

func TestIgnoreExitPolicy(t *testing.T) {
	fake := testutil.NewFakeRunner().FailOn("cfdisk", 1, "")
	editor := Step{Name: "partition", Description: "edit partitions", Command: runner.Command{Name: "cfdisk", Args: []string{"/dev/sdX"}}, Policy: IgnoreExit}

	res, err := newSequencer(fake, nil, nil).Run(context.Background(),
		Sequence{Name: "s", Steps: []Step{editor, cmdStep("after")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"partition", "after"}, res.CompletedNames())

	// a tool that cannot start is still a failure
	missing := testutil.NewFakeRunner().OnPrefix("cfdisk", func(runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: -1}, errors.New(errors.ErrStepFailed, "executable file not found")
	})
	_, err = newSequencer(missing, nil, nil).Run(context.Background(),
		Sequence{Name: "s", Steps: []Step{editor, cmdStep("after")}})
	require.Error(t, err)
	assert.Equal(t, []string{"cfdisk /dev/sdX"}, missing.CommandLines())
}

func TestIrreversibleStepsAreGated(t *testing.T) {
	format := Step{Name: "format", Description: "format /dev/sdX3", Command: runner.Command{Name: "mkfs.btrfs"}, Irreversible: true}

	t.Run("approved", func(t *testing.T) {
		fake := testutil.NewFakeRunner()
		gate := &fakeGate{approve: true}
		_, err := newSequencer(fake, gate, nil).Run(context.Background(),
			Sequence{Name: "s", Steps: []Step{cmdStep("a"), format}})
		require.NoError(t, err)
		assert.Equal(t, []string{"format /dev/sdX3"}, gate.required)
		assert.Equal(t, []string{"a", "mkfs.btrfs"}, fake.CommandLines())
	})

	t.Run("declined", func(t *testing.T) {
		fake := testutil.NewFakeRunner()
		gate := &fakeGate{approve: false}
		res, err := newSequencer(fake, gate, nil).Run(context.Background(),
			Sequence{Name: "s", Steps: []Step{cmdStep("a"), format, cmdStep("c")}})
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrOperatorAbort))
		assert.Equal(t, []string{"a"}, fake.CommandLines(), "declined step and later steps never run")
		assert.Nil(t, res.Failed)
	})

	t.Run("no gate configured", func(t *testing.T) {
		fake := testutil.NewFakeRunner()
		_, err := newSequencer(fake, nil, nil).Run(context.Background(),
			Sequence{Name: "s", Steps: []Step{format}})
		assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
		assert.Empty(t, fake.CommandLines())
	})
}

func TestVerifyStepShowsOutput(t *testing.T) {
	fake := testutil.NewFakeRunner().Output("genfstab", "UUID=abc / btrfs rw 0 0\n")
	gate := &fakeGate{approve: true}
	rep := &recordingReporter{}
	step := Step{Name: "fstab", Description: "generate fstab", Command: runner.Command{Name: "genfstab"}, Verify: true}

	_, err := newSequencer(fake, gate, rep).Run(context.Background(),
		Sequence{Name: "s", Steps: []Step{step, cmdStep("next")}})
	require.NoError(t, err)

	assert.Equal(t, []string{"UUID=abc / btrfs rw 0 0\n"}, rep.shown)
	require.Len(t, gate.acks, 1)
	assert.Contains(t, gate.acks[0], "generate fstab")
}

func TestActionSteps(t *testing.T) {
	var ran []string
	action := func(name string, err error) Step {
		return Step{Name: name, Description: name, Action: func(context.Context) (string, error) {
			ran = append(ran, name)
			return name + " output", err
		}}
	}

	res, err := newSequencer(nil, nil, nil).Run(context.Background(), Sequence{Name: "s", Steps: []Step{
		action("a", nil),
		action("b", stderrors.New("write failed")),
		action("c", nil),
	}})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, "b output", res.Failed.Output)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStepFailed))
}

func TestRunCanceledContext(t *testing.T) {
	fake := testutil.NewFakeRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSequencer(fake, nil, nil).Run(ctx, Sequence{Name: "s", Steps: []Step{cmdStep("a")}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrOperatorAbort))
	assert.Empty(t, fake.CommandLines())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		ok    bool
	}{
		{name: "valid", steps: []Step{cmdStep("a"), cmdStep("b")}, ok: true},
		{name: "empty sequence", steps: nil, ok: true},
		{name: "unnamed", steps: []Step{{Command: runner.Command{Name: "x"}}}},
		{name: "duplicate", steps: []Step{cmdStep("a"), cmdStep("a")}},
		{name: "no body", steps: []Step{{Name: "a"}}},
		{name: "two bodies", steps: []Step{{Name: "a", Command: runner.Command{Name: "x"}, Action: func(context.Context) (string, error) { return "", nil }}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Sequence{Name: "s", Steps: tt.steps}.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	seq := Sequence{Name: "s", Steps: []Step{
		{Name: "format-root", Description: "Format root", Command: runner.Command{Name: "mkfs.btrfs", Args: []string{"-f", "/dev/sdX3"}}, Irreversible: true},
		{Name: "partition", Description: "Edit partitions", Command: runner.Command{Name: "cfdisk", Args: []string{"/dev/sdX"}}, Policy: IgnoreExit},
		{Name: "append-fstab", Description: "Append fstab", Action: func(context.Context) (string, error) { return "", nil }, Verify: true},
		{Name: "chroot", Description: "Enter chroot", Action: func(context.Context) (string, error) { return "", nil }, Shows: runner.Command{Name: "arch-chroot", Args: []string{"/mnt"}}},
	}}

	assert.Equal(t, []string{
		" 1. format-root: Format root (mkfs.btrfs -f /dev/sdX3) [confirm]",
		" 2. partition: Edit partitions (cfdisk /dev/sdX) [exit status ignored]",
		" 3. append-fstab: Append fstab [verify]",
		" 4. chroot: Enter chroot (arch-chroot /mnt)",
	}, Describe(seq))
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "fail-fast", FailFast.String())
	assert.Equal(t, "ignore-exit", IgnoreExit.String())
}
