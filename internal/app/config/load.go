package config

import (
	"fmt"

	"github.com/yndnr/snapkeep/internal/infra/confloader"
)

// Load builds the configuration from defaults, the optional YAML file, .env
// files and SNAPKEEP_* environment variables, then verifies it.
func Load(file string, dotEnv ...string) (*Config, error) {
	cfg := Default()

	opts := []confloader.Option{confloader.WithDotEnv(dotEnv...)}
	if file != "" {
		opts = append(opts, confloader.WithConfigFile(file))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
