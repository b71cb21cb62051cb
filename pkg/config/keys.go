package config

import (
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arthur-debert/archstrap/pkg/errors"
)

// checkKnownKeys rejects a TOML file that sets keys Config does not define
func checkKnownKeys(path string) error {
	var probe Config
	md, err := toml.DecodeFile(path, &probe)
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", path).
			WithDetail(errors.DetailPath, path)
	}

	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, key := range undecoded {
		keys[i] = key.String()
	}
	return errors.Newf(errors.ErrConfigValid, "unknown keys in %s: %s", path, strings.Join(keys, ", ")).
		WithDetail(errors.DetailPath, path)
}
