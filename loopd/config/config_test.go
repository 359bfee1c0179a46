package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("LOOPD_CONFIG", "")

	cfg, err := Parse(Flags{})
	require.NoError(t, err)

	assert.Equal(t, MarkerFile, cfg.Marker.Driver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "loopd:restart", cfg.RestartKey())

	opts := cfg.Worker.Options()
	assert.False(t, opts.Force())
	assert.Equal(t, 128, opts.Memory())
	assert.Equal(t, time.Duration(0), opts.Sleep())
	assert.Equal(t, time.Minute, opts.Timeout())
}

func TestParseYAML(t *testing.T) {
	t.Setenv("LOOPD_CONFIG", "")

	path := writeFile(t, "loopd.yaml", `
name: mailer
journal: /var/lib/loopd/journal.json
marker:
  driver: redis
  redis:
    host: redis.internal
    port: 6380
    database: 2
worker:
  memory: 256
  sleep: 0.5
  timeout: 0
`)

	cfg, err := Parse(Flags{Config: path})
	require.NoError(t, err)

	assert.Equal(t, "mailer", cfg.Name)
	assert.Equal(t, "/var/lib/loopd/journal-mailer.json", cfg.Journal)
	assert.Equal(t, "loopd:restart:mailer", cfg.RestartKey())
	assert.Equal(t, MarkerRedis, cfg.Marker.Driver)

	redis := cfg.Marker.Redis.ToConfig()
	assert.Equal(t, "redis.internal:6380", redis.Addr())
	assert.Equal(t, 2, redis.Database)

	opts := cfg.Worker.Options()
	assert.Equal(t, 256, opts.Memory())
	assert.Equal(t, 500*time.Millisecond, opts.Sleep())
	assert.Equal(t, time.Duration(0), opts.Timeout())
}

func TestParseDotEnv(t *testing.T) {
	t.Setenv("LOOPD_CONFIG", "")

	path := writeFile(t, "loopd.env", "LOOPD_NAME=mailer\nLOOPD_MEMORY=64\nLOOPD_MARKER_DRIVER=none\n")

	cfg, err := Parse(Flags{Config: path})
	require.NoError(t, err)

	assert.Equal(t, "mailer", cfg.Name)
	assert.Equal(t, 64, cfg.Worker.MemoryMB)
	assert.Equal(t, MarkerNone, cfg.Marker.Driver)
}

func TestParseEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "loopd.yaml", "worker:\n  memory: 256\n  force: false\n")

	t.Setenv("LOOPD_CONFIG", path)
	t.Setenv("LOOPD_MEMORY", "512")
	t.Setenv("LOOPD_FORCE", "true")

	cfg, err := Parse(Flags{})
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Worker.MemoryMB)
	assert.True(t, cfg.Worker.Force)
}

func TestParseNoUserConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("user config dir is not derived from $HOME")
	}

	t.Setenv("LOOPD_CONFIG", "")
	t.Setenv("HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := Parse(Flags{})
	assert.ErrorContains(t, err, "missing marker directory")

	dir := t.TempDir()
	t.Setenv("LOOPD_MARKER_DIR", filepath.Join(dir, "markers"))
	t.Setenv("LOOPD_JOURNAL", filepath.Join(dir, "journal.json"))

	_, err = Parse(Flags{})
	assert.ErrorContains(t, err, "missing down file path")

	t.Setenv("LOOPD_DOWN_FILE", filepath.Join(dir, "down"))

	cfg, err := Parse(Flags{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "journal.json"), cfg.Journal)
}

func TestParseConflictingPaths(t *testing.T) {
	t.Setenv("LOOPD_CONFIG", "/etc/loopd/a.yaml")

	_, err := Parse(Flags{Config: "/etc/loopd/b.yaml"})
	assert.ErrorContains(t, err, "conflicting config paths")
}

func TestParseMissingFile(t *testing.T) {
	t.Setenv("LOOPD_CONFIG", "")

	_, err := Parse(Flags{Config: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.initDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Marker.Driver = "etcd" },
			wantErr: `invalid marker driver`,
		},
		{
			name:    "file driver without directory",
			mutate:  func(c *Config) { c.Marker.Dir = "" },
			wantErr: "missing marker directory",
		},
		{
			name: "none driver without directory",
			mutate: func(c *Config) {
				c.Marker.Driver = MarkerNone
				c.Marker.Dir = ""
			},
		},
		{
			name:    "missing journal",
			mutate:  func(c *Config) { c.Journal = "" },
			wantErr: "missing journal path",
		},
		{
			name:    "missing down file",
			mutate:  func(c *Config) { c.DownFile = "" },
			wantErr: "missing down file path",
		},
		{
			name:    "negative memory",
			mutate:  func(c *Config) { c.Worker.MemoryMB = -1 },
			wantErr: "memory limit must not be negative",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Worker.TimeoutSeconds = -1 },
			wantErr: "timeout must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestApplyName(t *testing.T) {
	cfg := Config{Name: "mailer", Journal: "/tmp/journal.json"}

	cfg.applyName()
	assert.Equal(t, "/tmp/journal-mailer.json", cfg.Journal)

	cfg.applyName()
	assert.Equal(t, "/tmp/journal-mailer.json", cfg.Journal, "must be idempotent")
}
