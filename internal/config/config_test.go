package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, formula.DefaultMaxDepth, cfg.Engine.MaxDepth)
	assert.Equal(t, formula.DefaultMaxRangeCells, cfg.Engine.MaxRangeCells)
	assert.False(t, cfg.Engine.Date1904)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.NoError(t, Validate(cfg))
	assert.Len(t, cfg.EngineOptions(), 3)
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fx.yaml")
	configContent := `
engine:
  max_depth: 64
  date_1904: true

logging:
  level: debug
  format: json
  output: file
  file_path: /tmp/fx.log
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Engine.MaxDepth)
	assert.Equal(t, formula.DefaultMaxRangeCells, cfg.Engine.MaxRangeCells)
	assert.True(t, cfg.Engine.Date1904)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/fx.log", cfg.Logging.FilePath)
	assert.Equal(t, 100, cfg.Logging.MaxSize)
}

func TestLoadFromNonExistentFile(t *testing.T) {
	cfg, err := LoadFromFile("/nonexistent/path/fx.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "fx.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine: [1, 2"), 0644))

	_, err := LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FX_ENGINE_MAX_DEPTH", "32")
	t.Setenv("FX_ENGINE_DATE_1904", "true")
	t.Setenv("FX_LOG_LEVEL", "error")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Engine.MaxDepth)
	assert.True(t, cfg.Engine.Date1904)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("SHEETS_ENGINE_MAX_DEPTH", "12")

	cfg, err := NewLoader().WithEnvPrefix("SHEETS_").Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Engine.MaxDepth)
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("FX_ENGINE_MAX_DEPTH", "deep")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "FX_ENGINE_MAX_DEPTH")
}

func TestOverridesWinOverEnv(t *testing.T) {
	t.Setenv("FX_LOG_LEVEL", "error")

	cfg, err := NewLoader().WithOverrides(map[string]string{
		"logging.level":    "debug",
		"engine.max_depth": "10",
	}).Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Engine.MaxDepth)

	_, err = NewLoader().WithOverrides(map[string]string{"engine.nope": "1"}).Load()
	assert.ErrorContains(t, err, "unknown config path")

	_, err = NewLoader().WithOverrides(map[string]string{"engine.max_depth.x": "1"}).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MaxDepth = 0
	cfg.Logging.Level = "loud"
	cfg.Logging.Output = "file"

	err := Validate(cfg)
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"engine.max_depth", "logging.level", "logging.file_path"}, fields)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestSerializeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Date1904 = true
	cfg.Logging.Format = "json"

	data, err := cfg.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(data), "date_1904: true")

	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)

	_, err = ParseConfig([]byte("logging: ["))
	assert.Error(t, err)
}

func TestOverridePathProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(1, 1<<20).Draw(t, "depth")
		cells := rapid.IntRange(1, 1<<24).Draw(t, "cells")

		cfg, err := NewLoader().WithOverrides(map[string]string{
			"engine.max_depth":       strconv.Itoa(depth),
			"engine.max_range_cells": strconv.Itoa(cells),
		}).Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Engine.MaxDepth != depth || cfg.Engine.MaxRangeCells != cells {
			t.Fatalf("got %d/%d, want %d/%d", cfg.Engine.MaxDepth, cfg.Engine.MaxRangeCells, depth, cells)
		}
	})
}
