package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "affinity", cfg.Tool.Binary)
	assert.Equal(t, "json", cfg.Tool.Format)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "history.db", filepath.Base(cfg.History.Path))
	assert.Equal(t, 5, cfg.Examples.EnrichLimit)
	assert.Contains(t, cfg.Security.ExecAllowlist, "list entries")
}

func TestDefaultAllowlistIsCopied(t *testing.T) {
	cfg := Default()
	cfg.Security.ExecAllowlist[0] = "changed"
	assert.Equal(t, "auth whoami", DefaultExecAllowlist[0])
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmagent.yaml")
	body := `
tool:
  binary: /opt/affinity/bin/affinity
  auth_mode: bearer
security:
  exec_allowlist: ["person search"]
history:
  enabled: true
  retention_days: 7
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/opt/affinity/bin/affinity", cfg.Tool.Binary)
	assert.Equal(t, "bearer", cfg.Tool.AuthMode)
	assert.Equal(t, "json", cfg.Tool.Format, "untouched keys keep defaults")
	assert.Equal(t, []string{"person search"}, cfg.Security.ExecAllowlist)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 7, cfg.History.RetentionDays)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Tool, cfg.Tool)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("tool: [unterminated"), 0o600))
	_, err = Load(broken)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty binary", func(c *Config) { c.Tool.Binary = " " }},
		{"bad format", func(c *Config) { c.Tool.Format = "xml" }},
		{"bad auth mode", func(c *Config) { c.Tool.AuthMode = "token" }},
		{"negative retention", func(c *Config) { c.History.RetentionDays = -1 }},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }},
		{"negative enrich limit", func(c *Config) { c.Examples.EnrichLimit = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAPIKeySource(t *testing.T) {
	t.Setenv("CRMAGENT_TEST_KEY", "")
	cfg := Default()
	cfg.Tool.APIKeyEnv = "CRMAGENT_TEST_KEY"

	key, src := cfg.APIKey()
	assert.Equal(t, "", key)
	assert.Equal(t, "none", src)

	t.Setenv("CRMAGENT_TEST_KEY", "from-env")
	key, src = cfg.APIKey()
	assert.Equal(t, "from-env", key)
	assert.Equal(t, "env", src)

	cfg.Tool.APIKey = "from-config"
	key, src = cfg.APIKey()
	assert.Equal(t, "from-config", key)
	assert.Equal(t, "flag/config", src)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotenv(filepath.Join(dir, "absent.env")))
	require.NoError(t, LoadDotenv(""))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CRMAGENT_DOTENV_NEW=loaded\nCRMAGENT_DOTENV_SET=from-file\n"), 0o600))
	t.Setenv("CRMAGENT_DOTENV_SET", "from-process")
	t.Setenv("CRMAGENT_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("CRMAGENT_DOTENV_NEW"))

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "loaded", os.Getenv("CRMAGENT_DOTENV_NEW"))
	assert.Equal(t, "from-process", os.Getenv("CRMAGENT_DOTENV_SET"), "existing variables are not overridden")
}
