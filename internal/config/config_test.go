package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrelmem/noetic/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.ChromaHost)
	assert.Equal(t, 8000, cfg.ChromaPort)
	assert.True(t, cfg.EnableMemoryDecay)
	assert.Equal(t, 30.0, cfg.DecayHalfLifeDays)
	assert.Equal(t, 500, cfg.ShadowTokenThreshold)
	assert.Equal(t, 30, cfg.ShadowTimeThresholdMin)
	assert.Equal(t, 0.6, cfg.ShadowSurfaceThreshold)
	assert.False(t, cfg.DreamUseLLM)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"chroma_host": "10.0.0.5",
		"chroma_port": 9000,
		"current_project": "noetic",
		"shadow_token_threshold": 750,
		"dream_use_llm": true,
		"llm": {"provider": "anthropic", "model": "claude-3-5-sonnet-20241022"}
	}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.ChromaHost)
	assert.Equal(t, 9000, cfg.ChromaPort)
	assert.Equal(t, "noetic", cfg.CurrentProject)
	assert.Equal(t, 750, cfg.ShadowTokenThreshold)
	assert.True(t, cfg.DreamUseLLM)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	// Fields absent from the file keep their defaults.
	assert.True(t, cfg.EnableMemoryDecay)
}

func TestLoad_EnvOverlayWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chroma_host": "file-host"}`), 0o644))
	t.Setenv("NOETIC_CHROMA_HOST", "env-host")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-host", cfg.ChromaHost)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	original := config.Defaults()
	original.CurrentProject = "round-trip"
	original.ShadowEnabled = false

	require.NoError(t, config.Save(original, path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.CurrentProject)
	assert.False(t, loaded.ShadowEnabled)
}
