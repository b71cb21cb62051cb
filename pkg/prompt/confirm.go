package prompt

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/errors"
)

// Confirm shows a pending action and its details and waits for an explicit
// yes. Anything else, including an empty answer, declines.
func (c *Collector) Confirm(action string, details ...string) (bool, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "The following operation requires confirmation:")
	fmt.Fprintf(c.out, "└── %s\n", action)
	for _, d := range details {
		fmt.Fprintf(c.out, "    └── %s\n", d)
	}

	fmt.Fprint(c.out, "Continue? [y/N]: ")
	line, err := c.readLine()
	if err != nil {
		return false, err
	}

	response := strings.ToLower(strings.TrimSpace(line))
	approved := response == "y" || response == "yes"
	c.logger.Info().Str("action", action).Bool("approved", approved).Msg("Confirmation answered")
	return approved, nil
}

// Require is Confirm where declining aborts the run
func (c *Collector) Require(action string, details ...string) error {
	ok, err := c.Confirm(action, details...)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Newf(errors.ErrOperatorAbort, "declined: %s", action)
	}
	return nil
}

// Acknowledge waits for Enter after the operator has reviewed something
func (c *Collector) Acknowledge(message string) error {
	fmt.Fprintf(c.out, "%s Press Enter to continue...", message)
	_, err := c.readLine()
	fmt.Fprintln(c.out)
	return err
}
