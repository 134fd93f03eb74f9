package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 24*time.Hour, cfg.JwtTTL)
	assert.Equal(t, "admin@gmail.com", cfg.Admin.Email)
	assert.True(t, cfg.UsesDefaultSecret())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
http_port: 9090
jwt_secret: from-file
database:
  driver: postgres
  url: postgres://localhost/users
consul:
  enabled: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("USERADMIN_HTTP_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.HTTPPort)
	assert.Equal(t, "from-file", cfg.JwtSecret)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/users", cfg.Database.URL)
	assert.True(t, cfg.Consul.Enabled)
	assert.False(t, cfg.UsesDefaultSecret())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:  8080,
			GRPCPort:  50051,
			JwtSecret: "secret",
			JwtTTL:    time.Hour,
			PageSize:  10,
			Database:  DatabaseConfig{Driver: "sqlite", URL: "file::memory:"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"bad http port":  func(c *Config) { c.HTTPPort = 0 },
		"bad grpc port":  func(c *Config) { c.GRPCPort = 70000 },
		"unknown driver": func(c *Config) { c.Database.Driver = "oracle" },
		"empty url":      func(c *Config) { c.Database.URL = "" },
		"empty secret":   func(c *Config) { c.JwtSecret = "" },
		"zero ttl":       func(c *Config) { c.JwtTTL = 0 },
		"zero page size": func(c *Config) { c.PageSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
