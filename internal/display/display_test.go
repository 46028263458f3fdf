package display

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "#28537D", cfg.Colors["dark_blue"])
	assert.Len(t, cfg.Colors, 8)
	assert.Equal(t, Group{Key: "people", Name: "People & Collectives"}, cfg.VariableGroups["people"])
	assert.Len(t, cfg.VariableGroups, 7)
	assert.Equal(t, []float64{22.5, 82.5}, cfg.Map.Center)
	assert.Equal(t, 5, cfg.Map.Zoom)
	assert.Contains(t, cfg.Map.TileURL, "{z}/{x}/{y}")
}

func TestLoad_OverrideMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`display:
  colors:
    dark_blue: "#000000"
    accent: "#123456"
  map:
    center: [27.5, 95.4]
    zoom: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "#000000", cfg.Colors["dark_blue"])
	assert.Equal(t, "#123456", cfg.Colors["accent"])
	assert.Equal(t, "#5088C6", cfg.Colors["light_blue"], "unset keys keep defaults")
	assert.Equal(t, []float64{27.5, 95.4}, cfg.Map.Center)
	assert.Equal(t, 8, cfg.Map.Zoom)
	assert.NotEmpty(t, cfg.Map.TileURL)
	assert.Len(t, cfg.VariableGroups, 7)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display: read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display: [unclosed"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display: parse config")
}

func TestFeasibilityColors(t *testing.T) {
	colors := FeasibilityColors()
	assert.Len(t, colors, 7)
	assert.Equal(t, "#1b5e20", colors["very_high"])
	assert.Equal(t, "#E0E0E0", colors["no_data"])
}
