package commons

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"facturador/internal/config"
)

// LoadConfig overlays the YAML file at path on the built-in defaults and then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*config.Config, error) {
	cfg := config.Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	return config.Load(cfg)
}
