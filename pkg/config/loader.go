package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/archstrap/pkg/errors"
)

const (
	// EnvPrefix prefixes every environment override
	EnvPrefix = "ARCHSTRAP_"

	// SystemConfigPath is read when present, before any --config file
	SystemConfigPath = "/etc/archstrap.toml"
)

// Options controls which layers Load reads
type Options struct {
	// Path is an explicit config file; empty means none
	Path string
	// SystemPath overrides SystemConfigPath; tests point it at a temp dir
	SystemPath string
	// SkipEnv disables environment overrides
	SkipEnv bool
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Load builds the configuration from all layers and validates it
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. System config if it exists
	systemPath := opts.SystemPath
	if systemPath == "" {
		systemPath = SystemConfigPath
	}
	if _, err := os.Stat(systemPath); err == nil {
		if err := loadFile(k, systemPath); err != nil {
			return nil, err
		}
	}

	// 3. Explicit config
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "config file %s", opts.Path).
				WithDetail(errors.DetailPath, opts.Path)
		}
		if err := loadFile(k, opts.Path); err != nil {
			return nil, err
		}
	}

	// 4. Env vars
	if !opts.SkipEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
		}
	}

	return unmarshal(k)
}

// LoadFile reads a single file on top of the embedded defaults, without
// system or environment layers. The chroot stage uses it for its hand-off.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}
	if err := loadFile(k, path); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// Default returns the embedded defaults
func Default() *Config {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		panic(err)
	}
	cfg, err := unmarshal(k)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks tag constraints and layout rules
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return errors.Wrap(err, errors.ErrConfigValid, "invalid configuration")
	}
	if err := c.checkLayout(); err != nil {
		return errors.Wrap(err, errors.ErrConfigValid, "invalid configuration")
	}
	return nil
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser = toml.Parser()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		if err := checkKnownKeys(path); err != nil {
			return err
		}
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path).
			WithDetail(errors.DetailPath, path)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ARCHSTRAP_SYSTEM__TIMEZONE to system.timezone
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
