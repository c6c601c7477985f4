package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New("")
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Resolver.ConfidenceThreshold)
	assert.Equal(t, "book_entries.json", cfg.Store.Path)
	assert.True(t, cfg.Store.AutosaveOnStatus)
	assert.Equal(t, 2, cfg.Worker.Processes)
	assert.Equal(t, "https://www.googleapis.com/books/v1", cfg.Catalog.GoogleBaseURL)
	assert.Equal(t, 15*time.Second, cfg.Catalog.Timeout())
	assert.Equal(t, 100*time.Millisecond, cfg.Catalog.MinRequestInterval())
	assert.Equal(t, 24*time.Hour, cfg.Catalog.CacheTTL())
	assert.Equal(t, "covers", cfg.CoverCacheDir)
	// The language model backend is opt-in.
	assert.Equal(t, "", cfg.LanguageModel.BaseURL)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
resolver:
  confidence_threshold: 0.6
store:
  path: /tmp/my_entries.json
catalog:
  max_results: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Resolver.ConfidenceThreshold)
	assert.Equal(t, "/tmp/my_entries.json", cfg.Store.Path)
	assert.Equal(t, 20, cfg.Catalog.MaxResults)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2, cfg.Worker.Processes)
}

func TestNewMissingFileUsesDefaults(t *testing.T) {
	cfg, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Resolver.ConfidenceThreshold)
}

func TestNewEnvOverride(t *testing.T) {
	t.Setenv("SEIRI_CATALOG__API_KEY", "env-key")
	t.Setenv("SEIRI_WORKER__PROCESSES", "4")

	cfg, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Catalog.APIKey)
	assert.Equal(t, 4, cfg.Worker.Processes)
}

func TestNewValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolver:\n  confidence_threshold: 3\n"), 0o644))

	_, err := New(path)
	require.Error(t, err)
}

func TestNewMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o644))

	_, err := New(path)
	require.Error(t, err)
}
