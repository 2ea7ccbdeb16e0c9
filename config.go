package strix

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries environment-derived defaults for execution contexts.
// Unset values leave the executor defaults in place.
type Config struct {
	MaxSteps             int           `env:"STRIX_MAX_STEPS"`
	MaxValidationRetries int           `env:"STRIX_MAX_VALIDATION_RETRIES" envDefault:"-1"`
	CallTimeout          time.Duration `env:"STRIX_CALL_TIMEOUT"`
	ToolConcurrency      int           `env:"STRIX_TOOL_CONCURRENCY"`
}

// ConfigFromEnv reads run defaults from STRIX_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment config: %w", err)
	}
	return cfg, nil
}
