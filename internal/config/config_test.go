package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadDefaults loads a working config with no file and no environment.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 20, cfg.Crawl.GlobalBudget)
	require.Equal(t, []string{"shopee"}, cfg.Crawl.ExcludedPlatforms)
	require.Equal(t, 3, cfg.Search.AnalyzeRetries)
	require.Equal(t, "memory", cfg.DB.Provider)
	require.Equal(t, "noop", cfg.Notify.Provider)
	require.Equal(t, "discovery-runs", cfg.Notify.Topic)
	require.Equal(t, 60*time.Second, cfg.LLMTimeout())
	require.Equal(t, 2*time.Second, cfg.AnalyzeBackoff())
	require.Equal(t, 500*time.Millisecond, cfg.LinkBackoff())
}

// TestLoadEnvOverride reads DISCOVERY_-prefixed environment variables.
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DISCOVERY_SERVER_PORT", "9090")
	t.Setenv("DISCOVERY_LLM_MODEL", "gpt-4o")
	t.Setenv("DISCOVERY_CRAWL_GLOBAL_BUDGET", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, 7, cfg.Crawl.GlobalBudget)
}

// TestLoadConfigFile reads values from a YAML file.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8181
db:
  provider: postgres
  dsn: postgres://localhost/discovery
crawl:
  excluded_platforms: ["shopee", "tiki"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.DB.Provider)
	require.Equal(t, []string{"shopee", "tiki"}, cfg.Crawl.ExcludedPlatforms)
}

// TestLoadMissingFile fails on an unreadable config path.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestValidate rejects incomplete provider configuration.
func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero budget", func(c *Config) { c.Crawl.GlobalBudget = 0 }},
		{"zero retries", func(c *Config) { c.Search.AnalyzeRetries = 0 }},
		{"postgres without dsn", func(c *Config) { c.DB.Provider = "postgres" }},
		{"pubsub without project", func(c *Config) { c.Notify.Provider = "pubsub"; c.Notify.ProjectID = "" }},
		{"gcs without bucket", func(c *Config) { c.Artifact.Provider = "gcs" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
