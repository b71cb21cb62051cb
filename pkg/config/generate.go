package config

import (
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/archstrap/pkg/errors"
)

// GenerateConfigContent generates the configuration file content with commented values
func GenerateConfigContent() string {
	return commentOutConfigValues(GetDefaultConfigContent())
}

// commentOutConfigValues takes the TOML content and comments out all non-comment, non-blank lines
// that contain configuration values (assignments)
func commentOutConfigValues(content string) string {
	lines := strings.Split(content, "\n")
	var result []string
	inArray := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		// Section headers stay live so uncommenting a value is enough
		if !inArray && strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") &&
			!strings.HasPrefix(trimmed, "[[") {
			result = append(result, line)
			continue
		}

		if strings.HasSuffix(trimmed, "[") {
			inArray = true
		} else if inArray && strings.HasPrefix(trimmed, "]") {
			inArray = false
		}

		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}

// Encode writes cfg as TOML
func Encode(w io.Writer, cfg *Config) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(cfg); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode configuration")
	}
	return nil
}
