package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config of the preload command.
// Values are read from the config file, then from the environment, then from the flags;
// later sources win.
type Config struct {
	// Follow the preload hints of preloaded responses too.
	Recursive bool `yaml:"recursive" env:"PRELOAD_RECURSIVE"`
	// Do not preload at all.
	NoPreload bool `yaml:"noPreload" env:"PRELOAD_DISABLE"`
	// Journal DB file name. Empty disables the journal, 'memory' uses an in-memory db.
	Journal string `yaml:"journal" env:"PRELOAD_JOURNAL"`
	// Address of the inspection server. Empty fetches the URL arguments and exits.
	Listen string `yaml:"listen" env:"PRELOAD_LISTEN"`
	// Maximum time spent on a fetch, preloads included.
	Timeout time.Duration `yaml:"timeout" env:"PRELOAD_TIMEOUT"`
	// Base URL for relative URL arguments.
	BaseURL string `yaml:"baseUrl" env:"PRELOAD_BASE_URL"`
	// Headers sent with every request, preloads included.
	Headers map[string]string `yaml:"headers" env:"PRELOAD_HEADERS"`
}

func defaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// loadConfig reads the config file, if any, and applies the environment on top of it.
// A nil environment means the process environment.
func loadConfig(filename string, environment map[string]string) (Config, error) {
	config := defaultConfig()
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&config, opts); err != nil {
		return config, err
	}
	return config, nil
}
