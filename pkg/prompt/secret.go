package prompt

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const redacted = "[REDACTED]"

// Secret holds a confirmed password. Every formatting and marshalling path
// renders it redacted; Reveal is the only way to read it.
type Secret struct {
	value string
}

// NewSecret wraps a value. Intended for tests and for values already
// confirmed elsewhere.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the plain value
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether the secret is empty
func (s Secret) IsZero() bool { return s.value == "" }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) Format(f fmt.State, verb rune) {
	_, _ = io.WriteString(f, redacted)
}

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// SecretReader reads one masked entry
type SecretReader interface {
	ReadSecret() (string, error)
}

// TerminalSecretReader reads without echo from a terminal file descriptor
type TerminalSecretReader struct {
	File *os.File
	Out  io.Writer
}

func (r TerminalSecretReader) ReadSecret() (string, error) {
	b, err := term.ReadPassword(int(r.File.Fd()))
	// ReadPassword swallows the newline
	if r.Out != nil {
		fmt.Fprintln(r.Out)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsTerminal reports whether r is a terminal file
func IsTerminal(r io.Reader) (*os.File, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return nil, false
	}
	return f, term.IsTerminal(int(f.Fd()))
}
