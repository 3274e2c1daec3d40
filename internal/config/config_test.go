package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.hcl")

	want := Config{
		FreeCADPath:         "/usr/bin/freecadcmd",
		DefaultScale:        0.01,
		HierarchyMode:       "empty",
		YUp:                 false,
		ChunkSize:           25,
		TessellationQuality: 0.05,
		AsyncImport:         true,
	}
	require.NoError(t, Save(want, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRejectsBadChunkSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	cfg := Default()
	cfg.ChunkSize = -1
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().ChunkSize, got.ChunkSize)
}
