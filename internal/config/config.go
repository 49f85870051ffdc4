package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	DefaultPrompt      = ": "
	DefaultBanner      = "Welcome to smallsh!  Type 'exit' to leave."
	DefaultHistoryName = ".smallsh_history"
	DefaultHistorySize = 1000
)

// Exit cleanup policies for background children still running when the
// shell leaves its read loop.
const (
	CleanupTerminate = "terminate"
	CleanupOrphan    = "orphan"
)

type Config struct {
	Prompt      string `yaml:"prompt" validate:"required"`
	Banner      string `yaml:"banner"`
	HomeDir     string `yaml:"home_dir"`
	HistoryFile string `yaml:"history_file"`
	HistorySize int    `yaml:"history_size" validate:"gte=0"`
	ExitCleanup string `yaml:"exit_cleanup" validate:"oneof=terminate orphan"`
	LogFile     string `yaml:"log_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.fillDerived()
	return cfg
}

// defaults holds the values a file may override. Keys absent from the file
// keep them; keys present replace them, zero values included.
func defaults() *Config {
	return &Config{
		Prompt:      DefaultPrompt,
		Banner:      DefaultBanner,
		HistorySize: DefaultHistorySize,
		ExitCleanup: CleanupTerminate,
	}
}

// Load reads the YAML file at path from fs. An empty path yields the
// defaults; a path that does not exist is an error.
func Load(fs afero.Fs, file string) (*Config, error) {
	if file == "" {
		return Default(), nil
	}

	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", file, err)
	}

	return cfg, nil
}

// Validate the configuration for basic semantic errors.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})

	return validate.Struct(c)
}

// fillDerived fills the home directory and the history path. Without a
// home directory both stay empty: cd needs an argument and history is off.
func (c *Config) fillDerived() {
	if c.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.HomeDir = home
		}
	}

	if c.HistoryFile == "" && c.HomeDir != "" {
		c.HistoryFile = filepath.Join(c.HomeDir, DefaultHistoryName)
	}
}
