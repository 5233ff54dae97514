package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/triangleSentry/internal/analysis"
	"github.com/Hara602/triangleSentry/internal/ioc"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, analysis.DefaultOptions(), cfg.HeuristicOptions())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)

	lists, err := cfg.IOCLists()
	require.NoError(t, err)
	assert.Equal(t, ioc.DefaultLists(), lists)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triangle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
heuristics:
  window_size: 20
  max_span: 2m
output:
  format: json
`), 0o644))
	t.Setenv("TRIANGLE_HEURISTICS_WORKERS", "4")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Heuristics.WindowSize)
	assert.Equal(t, 2*time.Minute, cfg.Heuristics.MaxSpan)
	assert.Equal(t, 4, cfg.Heuristics.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestValidate(t *testing.T) {
	v := New()
	v.Set("heuristics.window_size", 0)
	v.Set("output.format", "xml")

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
	assert.Contains(t, err.Error(), "output.format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
