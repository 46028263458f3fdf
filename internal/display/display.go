// Package display holds the presentation settings served to map clients:
// brand colors, feasibility colors, variable groups and the base map.
package display

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/iwmi/leaf-dss/internal/feasibility"
)

//go:embed default.yaml
var defaultYAML []byte

// Config is the display configuration.
type Config struct {
	Colors         map[string]string `yaml:"colors" json:"colors"`
	VariableGroups map[string]Group  `yaml:"variable_groups" json:"variable_groups"`
	Map            MapConfig         `yaml:"map" json:"map_config"`
}

// Group is a variable group heading.
type Group struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
}

// MapConfig positions the base map.
type MapConfig struct {
	Center          []float64 `yaml:"center" json:"center"`
	Zoom            int       `yaml:"zoom" json:"zoom"`
	TileURL         string    `yaml:"tile_url" json:"tile_url"`
	TileAttribution string    `yaml:"tile_attribution" json:"tile_attribution"`
}

// Load returns the built-in configuration with the YAML file at path merged
// over it. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg, err := parse(defaultYAML, nil)
	if err != nil {
		return nil, eris.Wrap(err, "display: parse defaults")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "display: read config %s", path)
	}
	if cfg, err = parse(data, cfg); err != nil {
		return nil, eris.Wrapf(err, "display: parse config %s", path)
	}
	return cfg, nil
}

// parse decodes data over base. Maps are merged key by key; other fields
// are replaced when present.
func parse(data []byte, base *Config) (*Config, error) {
	var wrapper struct {
		Display *Config `yaml:"display"`
	}
	if base == nil {
		base = &Config{}
	}
	wrapper.Display = base
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Display, nil
}

// FeasibilityColors maps every class key, including no data, to its color.
func FeasibilityColors() map[string]string {
	out := make(map[string]string, len(feasibility.Classes)+1)
	for _, c := range feasibility.AllClasses() {
		out[c.Key] = c.Color
	}
	return out
}
