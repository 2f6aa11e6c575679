package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-crawler/pkg/utils"
)

func TestDefault_ReferenceConstants(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://coek.dypgroup.edu.in", cfg.BaseURL)
	assert.Equal(t, 100, cfg.MaxVisited)
	assert.Equal(t, "public/data.json", cfg.OutputFile)
	assert.Len(t, cfg.IgnoredRoutes, 11)
	assert.Contains(t, cfg.IgnoredRoutes, "/wp-content")
	assert.Contains(t, cfg.IgnoredRoutes, "alumni")

	// Mutating the copy must not leak into the package default.
	cfg.IgnoredRoutes[0] = "changed"
	assert.Equal(t, "/events", DefaultIgnoredRoutes[0])
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
base_url: "https://example.test"
ignored_routes: ["/private", "gallery"]
max_visited: 25
num_workers: 4
delay_per_host: 250ms
respect_robots: true
http_client_settings:
  timeout: 5s
server:
  listen_addr: "127.0.0.1:8080"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.BaseURL)
	assert.Equal(t, []string{"/private", "gallery"}, cfg.IgnoredRoutes)
	assert.Equal(t, 25, cfg.MaxVisited)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.DelayPerHost)
	assert.True(t, cfg.RespectRobots)
	assert.Equal(t, 5*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultOutputFile, cfg.OutputFile)
	assert.True(t, cfg.EnableMetadataYAML)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_visited: [not-a-number"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestAppConfig_MetadataPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("public", "metadata.yaml"), cfg.MetadataPath())

	cfg.EnableMetadataYAML = false
	assert.Empty(t, cfg.MetadataPath())
}

func TestAppConfig_Summary(t *testing.T) {
	cfg := Default()
	summary := cfg.Summary()
	assert.Equal(t, DefaultBaseURL, summary["base_url"])
	assert.Equal(t, 100, summary["max_visited"])
}
