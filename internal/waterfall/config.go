package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config is the source-priority configuration.
type Config struct {
	Defaults DefaultsConfig         `yaml:"defaults"`
	Fields   map[string]FieldConfig `yaml:"fields"`
}

// DefaultsConfig holds the global priority table.
type DefaultsConfig struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FieldConfig overrides priorities for one field.
type FieldConfig struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig assigns a priority to a source. Higher wins.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// LoadConfig reads a priority config from a YAML file. Sources missing from the
// file's defaults keep their built-in priority.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}

	// The YAML has a top-level "waterfall" key
	var wrapper struct {
		Waterfall Config `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}

	cfg := &wrapper.Waterfall
	for _, def := range defaultSources {
		if _, ok := lookup(cfg.Defaults.Sources, def.Name); !ok {
			cfg.Defaults.Sources = append(cfg.Defaults.Sources, def)
		}
	}
	return cfg, nil
}

// Priority returns the priority of source for field. Field overrides win over
// defaults; unknown sources rank 0.
func (c *Config) Priority(field, source string) int {
	if fc, ok := c.Fields[field]; ok {
		if p, ok := lookup(fc.Sources, source); ok {
			return p
		}
	}
	p, _ := lookup(c.Defaults.Sources, source)
	return p
}

func lookup(sources []SourceConfig, name string) (int, bool) {
	for _, s := range sources {
		if s.Name == name {
			return s.Priority, true
		}
	}
	return 0, false
}
