package style

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/arthur-debert/archstrap/pkg/errors"
	"github.com/arthur-debert/archstrap/pkg/runner"
	"github.com/arthur-debert/archstrap/pkg/sequence"
)

// Reporter prints sequence progress to the operator
type Reporter struct {
	out    io.Writer
	format Format
	markup *MarkupParser
}

var _ sequence.Reporter = (*Reporter)(nil)

// NewReporter creates a reporter for an already resolved format
func NewReporter(out io.Writer, format Format) *Reporter {
	return &Reporter{
		out:    out,
		format: format,
		markup: NewMarkupParser(format != FormatTerminal),
	}
}

// Format returns the format the reporter renders
func (r *Reporter) Format() Format {
	return r.format
}

func (r *Reporter) rich() bool {
	return r.format == FormatTerminal
}

// StepStarted prints a section header for the step
func (r *Reporter) StepStarted(index, total int, step sequence.Step) {
	title := fmt.Sprintf("[%d/%d] %s", index, total, step.Description)
	if r.rich() {
		fmt.Fprint(r.out, pterm.DefaultSection.Sprint(title))
		return
	}
	fmt.Fprintf(r.out, "\n==> %s\n", title)
}

// StepSucceeded prints a one-line completion mark
func (r *Reporter) StepSucceeded(step sequence.Step, res runner.Result) {
	line := fmt.Sprintf("%s done", step.Name)
	if res.Duration > 0 {
		line += fmt.Sprintf(" (%s)", res.Duration.Round(time.Millisecond))
	}
	if r.rich() {
		fmt.Fprintln(r.out, SuccessIndicator, MutedStyle.Render(line))
		return
	}
	fmt.Fprintln(r.out, "ok:", line)
}

// StepFailed prints the failing step and the tail of its output
func (r *Reporter) StepFailed(f *sequence.StepFailure) {
	head := fmt.Sprintf("step %q failed", f.Step)
	if f.ExitCode > 0 {
		head += fmt.Sprintf(" with exit status %d", f.ExitCode)
	}
	output := strings.TrimRight(f.Output, "\n")

	if r.rich() {
		fmt.Fprintln(r.out, pterm.Error.Sprint(head))
		if output != "" {
			fmt.Fprintln(r.out, FailureBoxStyle.Render(output))
		}
		return
	}
	fmt.Fprintln(r.out, "error:", head)
	if output != "" {
		fmt.Fprintln(r.out, output)
	}
}

// ShowOutput displays a verify step's output for review
func (r *Reporter) ShowOutput(step sequence.Step, output string) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		output = "(no output)"
	}
	if r.rich() {
		fmt.Fprintln(r.out, TitleStyle.Render(step.Description))
		fmt.Fprintln(r.out, OutputBoxStyle.Render(output))
		return
	}
	fmt.Fprintf(r.out, "--- %s ---\n%s\n--- end ---\n", step.Description, output)
}

// Banner prints a stage title
func (r *Reporter) Banner(title string) {
	if r.rich() {
		fmt.Fprintln(r.out, pterm.DefaultHeader.WithFullWidth().Sprint(title))
		return
	}
	fmt.Fprintf(r.out, "\n### %s\n", title)
}

// Notice prints a message that may contain markup tags
func (r *Reporter) Notice(message string) {
	fmt.Fprintln(r.out, r.markup.Render(message))
}

// Warn prints a warning line
func (r *Reporter) Warn(message string) {
	if r.rich() {
		fmt.Fprintln(r.out, pterm.Warning.Sprint(message))
		return
	}
	fmt.Fprintln(r.out, "warning:", message)
}

// Success prints a final success line
func (r *Reporter) Success(message string) {
	if r.rich() {
		fmt.Fprintln(r.out, pterm.Success.Sprint(message))
		return
	}
	fmt.Fprintln(r.out, "success:", message)
}

// Markdown renders a markdown document
func (r *Reporter) Markdown(content string) {
	fmt.Fprint(r.out, RenderMarkdown(content, r.format, 0))
}

// Plan prints a titled, numbered step listing
func (r *Reporter) Plan(title string, lines []string) {
	if r.rich() {
		fmt.Fprintln(r.out, TitleStyle.Render(title))
	} else {
		fmt.Fprintln(r.out, title)
	}
	for _, line := range lines {
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out)
}

// RenderError formats a fatal error with its code and details. Output
// details are left to StepFailed, which already printed them.
func RenderError(err error, format Format) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	if format == FormatTerminal {
		b.WriteString(pterm.Error.Sprint(err.Error()))
	} else {
		fmt.Fprintf(&b, "error: %s", err.Error())
	}

	details := errors.GetErrorDetails(err)
	keys := make([]string, 0, len(details))
	for k := range details {
		if k != errors.DetailOutput {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, details[k])
	}
	return b.String()
}
