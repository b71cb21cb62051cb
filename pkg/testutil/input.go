package testutil

import (
	"io"
	"strings"

	"github.com/arthur-debert/archstrap/pkg/errors"
)

// Input returns a reader that yields each line followed by a newline
func Input(lines ...string) io.Reader {
	if len(lines) == 0 {
		return strings.NewReader("")
	}
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

// SecretQueue hands out masked entries in order
type SecretQueue struct {
	values []string
	Reads  int
}

// NewSecretQueue creates a queue of entries
func NewSecretQueue(values ...string) *SecretQueue {
	return &SecretQueue{values: values}
}

// ReadSecret returns the next entry, or an error once exhausted
func (q *SecretQueue) ReadSecret() (string, error) {
	if q.Reads >= len(q.values) {
		return "", errors.New(errors.ErrOperatorAbort, "no more secret input")
	}
	v := q.values[q.Reads]
	q.Reads++
	return v, nil
}
