// Package config handles configuration management for archstrap.
// It layers the embedded defaults, an optional system file
// (/etc/archstrap.toml), an optional --config file (TOML or YAML) and
// ARCHSTRAP_ environment variables, then validates the result.
//
// Configuration never carries secrets. Passwords are always collected
// interactively inside the chroot stage.
package config
