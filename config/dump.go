package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Dump writes cfg as YAML. The output is loadable by Load.
func Dump(cfg *Config, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
