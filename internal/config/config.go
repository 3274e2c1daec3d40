// Package config loads and persists the importer preferences file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Config is the preferences file (~/.apexforge/apexcad/config.hcl).
type Config struct {
	// FreeCADPath locates the converter executable.
	FreeCADPath string `hcl:"freecad_path,optional"`
	// DefaultScale is the unit scale applied when the import command
	// gets no explicit scale (0.001 = mm to m).
	DefaultScale float64 `hcl:"default_scale,optional"`
	// HierarchyMode is "collection" or "empty".
	HierarchyMode string `hcl:"hierarchy_mode,optional"`
	// YUp converts the converter's Z-up convention on import.
	YUp bool `hcl:"y_up,optional"`
	// ChunkSize bounds per-batch progress output during creation.
	ChunkSize int `hcl:"chunk_size,optional"`
	// TessellationQuality is the default mesh density; lower is finer.
	TessellationQuality float64 `hcl:"tessellation_quality,optional"`
	// AsyncImport offloads the conversion wait to a background worker.
	AsyncImport bool `hcl:"async_import,optional"`
}

// Default returns the built-in preferences.
func Default() Config {
	return Config{
		DefaultScale:        0.001,
		HierarchyMode:       "collection",
		YUp:                 true,
		ChunkSize:           50,
		TessellationQuality: 0.1,
		AsyncImport:         false,
	}
}

// Path returns the preferences file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".apexforge", "apexcad", "config.hcl"), nil
}

// Load reads the preferences file at path, falling back to defaults
// when it does not exist. Fields absent from the file keep defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = Default().ChunkSize
	}
	return cfg, nil
}

// Save writes the preferences file, creating parent directories.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("freecad_path", cty.StringVal(cfg.FreeCADPath))
	body.SetAttributeValue("default_scale", cty.NumberFloatVal(cfg.DefaultScale))
	body.SetAttributeValue("hierarchy_mode", cty.StringVal(cfg.HierarchyMode))
	body.SetAttributeValue("y_up", cty.BoolVal(cfg.YUp))
	body.SetAttributeValue("chunk_size", cty.NumberIntVal(int64(cfg.ChunkSize)))
	body.SetAttributeValue("tessellation_quality", cty.NumberFloatVal(cfg.TessellationQuality))
	body.SetAttributeValue("async_import", cty.BoolVal(cfg.AsyncImport))

	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
