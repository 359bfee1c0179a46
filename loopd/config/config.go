// Package config loads loopd's configuration from defaults, an optional YAML
// or .env file and LOOPD_* environment variables, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"git.unix.lgbt/diamondburned/loopd/loopd/marker"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MarkerDriver names a restart marker store.
type MarkerDriver string

const (
	MarkerFile  MarkerDriver = "file"
	MarkerRedis MarkerDriver = "redis"
	MarkerNone  MarkerDriver = "none"
)

// Config is the whole configuration.
type Config struct {
	// Name namespaces the journal and the restart key, so that multiple
	// daemons can run side by side.
	Name     string `yaml:"name" env:"LOOPD_NAME"`
	Journal  string `yaml:"journal" env:"LOOPD_JOURNAL"`
	DownFile string `yaml:"down_file" env:"LOOPD_DOWN_FILE"`
	LogLevel string `yaml:"log_level" env:"LOOPD_LOG_LEVEL"`

	Marker MarkerConfig `yaml:"marker"`
	Worker WorkerConfig `yaml:"worker"`
}

// MarkerConfig configures the restart marker store.
type MarkerConfig struct {
	Driver MarkerDriver `yaml:"driver" env:"LOOPD_MARKER_DRIVER"`
	Dir    string       `yaml:"dir" env:"LOOPD_MARKER_DIR"`
	Redis  RedisConfig  `yaml:"redis"`
}

// RedisConfig configures the Redis marker store.
type RedisConfig struct {
	Host           string `yaml:"host" env:"LOOPD_REDIS_HOST"`
	Port           int    `yaml:"port" env:"LOOPD_REDIS_PORT"`
	Username       string `yaml:"username" env:"LOOPD_REDIS_USERNAME"`
	Password       string `yaml:"password" env:"LOOPD_REDIS_PASSWORD"`
	Database       int    `yaml:"database" env:"LOOPD_REDIS_DATABASE"`
	TLSEnabled     bool   `yaml:"tls_enabled" env:"LOOPD_REDIS_TLS_ENABLED"`
	ClusterEnabled bool   `yaml:"cluster_enabled" env:"LOOPD_REDIS_CLUSTER_ENABLED"`
}

// ToConfig converts c to the marker package's config.
func (c RedisConfig) ToConfig() marker.RedisConfig {
	return marker.RedisConfig{
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		Database:       c.Database,
		TLSEnabled:     c.TLSEnabled,
		ClusterEnabled: c.ClusterEnabled,
	}
}

// WorkerConfig holds the default worker options. Command-line flags take
// precedence over these.
type WorkerConfig struct {
	Force          bool    `yaml:"force" env:"LOOPD_FORCE"`
	MemoryMB       int     `yaml:"memory" env:"LOOPD_MEMORY"`
	SleepSeconds   float64 `yaml:"sleep" env:"LOOPD_SLEEP"`
	TimeoutSeconds int     `yaml:"timeout" env:"LOOPD_TIMEOUT"`
}

// Options converts c into worker options.
func (c WorkerConfig) Options() loopd.Options {
	return loopd.NewOptions(
		c.Force,
		c.MemoryMB,
		time.Duration(c.SleepSeconds*float64(time.Second)),
		time.Duration(c.TimeoutSeconds)*time.Second,
	)
}

// Flags are the command-line flags that affect configuration loading.
type Flags struct {
	Config string
}

// initDefaults fills in the defaults. Paths default to the user's config
// directory; if there is none, they are left empty and must be configured.
func (c *Config) initDefaults() {
	defaults := loopd.DefaultOptions()

	c.LogLevel = "info"
	c.Marker = MarkerConfig{
		Driver: MarkerFile,
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
	}

	if dir, err := os.UserConfigDir(); err == nil {
		stateDir := filepath.Join(dir, "loopd")
		c.Journal = filepath.Join(stateDir, "journal.json")
		c.DownFile = filepath.Join(stateDir, "down")
		c.Marker.Dir = filepath.Join(stateDir, "markers")
	}
	c.Worker = WorkerConfig{
		Force:          defaults.Force(),
		MemoryMB:       defaults.Memory(),
		SleepSeconds:   defaults.Sleep().Seconds(),
		TimeoutSeconds: int(defaults.Timeout() / time.Second),
	}
}

func (c *Config) parseConfigFile(path string) error {
	if path == "" {
		return nil
	}

	if strings.HasSuffix(strings.ToLower(path), ".env") {
		envMap, err := godotenv.Read(path)
		if err != nil {
			return errors.Wrap(err, "error loading .env file")
		}
		if err := env.ParseWithOptions(c, env.Options{Environment: envMap}); err != nil {
			return errors.Wrap(err, "error parsing .env file")
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "error parsing yaml config")
	}

	return nil
}

func (c *Config) parseEnvVariables() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, "error parsing environment variables")
	}
	return nil
}

// ErrInvalidMarkerDriver is returned for unknown marker drivers.
var ErrInvalidMarkerDriver = errors.New("invalid marker driver")

func (c *Config) validate() error {
	switch c.Marker.Driver {
	case MarkerFile:
		if c.Marker.Dir == "" {
			return errors.New("missing marker directory")
		}
	case MarkerRedis, MarkerNone:
	default:
		return errors.Wrapf(ErrInvalidMarkerDriver, "%q", c.Marker.Driver)
	}

	if c.Journal == "" {
		return errors.New("missing journal path")
	}

	if c.DownFile == "" {
		return errors.New("missing down file path")
	}

	switch {
	case c.Worker.MemoryMB < 0:
		return errors.New("memory limit must not be negative")
	case c.Worker.SleepSeconds < 0:
		return errors.New("sleep must not be negative")
	case c.Worker.TimeoutSeconds < 0:
		return errors.New("timeout must not be negative")
	}

	return nil
}

// Parse loads the configuration. The config file is taken from the flags or
// the LOOPD_CONFIG environment variable.
func Parse(flags Flags) (*Config, error) {
	var config Config

	config.initDefaults()

	path := flags.Config
	if envPath := os.Getenv("LOOPD_CONFIG"); envPath != "" {
		if path != "" && path != envPath {
			return nil, errors.Errorf("conflicting config paths: flag=%s env=%s", path, envPath)
		}
		path = envPath
	}

	if err := config.parseConfigFile(path); err != nil {
		return nil, err
	}

	// Environment variables have the highest priority.
	if err := config.parseEnvVariables(); err != nil {
		return nil, err
	}

	config.applyName()

	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &config, nil
}

// applyName suffixes the journal with the daemon name, so that named daemons
// don't fight over the same lock.
func (c *Config) applyName() {
	if c.Name == "" {
		return
	}

	ext := filepath.Ext(c.Journal)
	base := strings.TrimSuffix(c.Journal, ext)

	if !strings.HasSuffix(base, "-"+c.Name) {
		c.Journal = base + "-" + c.Name + ext
	}
}

// RestartKey returns the restart marker key of the configured daemon.
func (c *Config) RestartKey() string {
	return loopd.RestartKey(c.Name)
}
