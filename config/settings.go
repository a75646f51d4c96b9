// Package config loads gateway settings from the environment and the
// module table from a TOML deployment file.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds process-level configuration, read from WAGI_*
// environment variables.
type Settings struct {
	Addr        string        `envconfig:"ADDR" default:":3000"`
	ModulesFile string        `envconfig:"MODULES_FILE" default:"modules.toml"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool          `envconfig:"LOG_DEV" default:"false"`
	CacheDir    string        `envconfig:"CACHE_DIR"`
	NoCache     bool          `envconfig:"NO_CACHE" default:"false"`
	ExecTimeout time.Duration `envconfig:"EXEC_TIMEOUT" default:"30s"`
	EnableCORS  bool          `envconfig:"CORS" default:"false"`
}

// Load reads settings from the environment.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("wagi", &s); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &s, nil
}
