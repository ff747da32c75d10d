package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/Zereker/bincrc"
)

// Config is the file form of the command settings. Flags override it.
type Config struct {
	Capacity    int           `yaml:"capacity" toml:"capacity"`
	ReadChunk   int           `yaml:"read_chunk" toml:"read_chunk"`
	BufferSize  int           `yaml:"buffer_size" toml:"buffer_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`

	Log   LogConfig   `yaml:"log" toml:"log"`
	Serve ServeConfig `yaml:"serve" toml:"serve"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ServeConfig configures the serve command.
type ServeConfig struct {
	Listen          string        `yaml:"listen" toml:"listen"`
	MetricsAddr     string        `yaml:"metrics_addr" toml:"metrics_addr"`
	Echo            bool          `yaml:"echo" toml:"echo"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

const (
	defaultListen     = "127.0.0.1:9000"
	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
	defaultReadChunk  = 256
	defaultBufferSize = 16
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to the empty string.
func expandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

// loadConfig reads path, expands environment variables and decodes it as
// YAML or TOML depending on the extension.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}

	expanded := expandEnv(string(data))

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid YAML in %s", path)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, errors.Wrapf(err, "invalid TOML in %s", path)
		}
	default:
		return nil, errors.Errorf("unsupported config extension %q", ext)
	}

	return &cfg, nil
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = bincrc.DefaultCapacity
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = defaultReadChunk
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = defaultListen
	}
}

// resolveConfig loads the --config file if given, applies flags that were
// set explicitly, then fills defaults.
func resolveConfig(c *cli.Context) (*Config, error) {
	cfg := &Config{}
	if path := c.String(ConfigFlag.Name); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet(LogLevelFlag.Name) {
		cfg.Log.Level = c.String(LogLevelFlag.Name)
	}
	if c.IsSet(LogFormatFlag.Name) {
		cfg.Log.Format = c.String(LogFormatFlag.Name)
	}
	if c.IsSet(CapacityFlag.Name) {
		cfg.Capacity = c.Int(CapacityFlag.Name)
	}
	if c.IsSet(listenFlag.Name) {
		cfg.Serve.Listen = c.String(listenFlag.Name)
	}
	if c.IsSet(metricsAddrFlag.Name) {
		cfg.Serve.MetricsAddr = c.String(metricsAddrFlag.Name)
	}
	if c.IsSet(echoFlag.Name) {
		cfg.Serve.Echo = c.Bool(echoFlag.Name)
	}

	cfg.applyDefaults()
	return cfg, nil
}
