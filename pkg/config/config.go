// Package config contains the configuration file of the luaplug host.
package config

import (
	"os"
	"regexp"

	"github.com/ghodss/yaml"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// CodeInvalid is the oops code of all errors returned by this package
const CodeInvalid = "CONFIG_INVALID"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes the luaplug host configuration.
//
//	plugins:
//	  - /usr/lib/luaplug
//	lua_paths:
//	  - ./lib
//	namespace: native
//	log_level: debug
//	metrics_address: ":9090"
type Config struct {
	// PluginPaths are plugin files or directories loaded on start
	PluginPaths []string `json:"plugins,omitempty"`

	// LuaPaths are added to package.path
	LuaPaths []string `json:"lua_paths,omitempty"`

	// Namespace is the global table plugin functions are installed in.
	// Empty installs them as globals
	Namespace string `json:"namespace,omitempty"`

	// LogLevel is a logrus level name
	LogLevel string `json:"log_level,omitempty"`

	// MetricsAddress enables the prometheus endpoint if set
	MetricsAddress string `json:"metrics_address,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
	}
}

// Parse parses a YAML (or JSON) document on top of the default
// configuration and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, oops.In("config").Code(CodeInvalid).Wrapf(err, "failed to parse configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads and parses the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.In("config").With("path", path).Wrapf(err, "failed to read configuration")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, oops.In("config").With("path", path).Wrap(err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors
func (cfg *Config) Validate() error {
	if cfg.Namespace != "" && !identifier.MatchString(cfg.Namespace) {
		return oops.In("config").
			Code(CodeInvalid).
			With("namespace", cfg.Namespace).
			Errorf("namespace %q is not a valid lua identifier", cfg.Namespace)
	}

	if _, err := cfg.Level(); err != nil {
		return err
	}

	return nil
}

// Level returns the parsed log level
func (cfg *Config) Level() (logrus.Level, error) {
	if cfg.LogLevel == "" {
		return logrus.InfoLevel, nil
	}

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return 0, oops.In("config").Code(CodeInvalid).With("log_level", cfg.LogLevel).Wrap(err)
	}

	return lvl, nil
}

// Merge applies all non-zero values of other on top of cfg. Lists are
// appended
func (cfg *Config) Merge(other Config) {
	cfg.PluginPaths = append(cfg.PluginPaths, other.PluginPaths...)
	cfg.LuaPaths = append(cfg.LuaPaths, other.LuaPaths...)

	if other.Namespace != "" {
		cfg.Namespace = other.Namespace
	}
	if other.LogLevel != "" {
		cfg.LogLevel = other.LogLevel
	}
	if other.MetricsAddress != "" {
		cfg.MetricsAddress = other.MetricsAddress
	}
}
