package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server process configuration, read from the environment
type Config struct {
	Addr                string        `env:"VERACITY_HTTP_ADDR" envDefault:":8080"`
	ConfigPath          string        `env:"VERACITY_CONFIG"` // Engine config file; defaults apply when empty
	LogLevel            string        `env:"VERACITY_LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"VERACITY_LOG_FORMAT" envDefault:"json"`
	AllowedOrigins      []string      `env:"VERACITY_ALLOWED_ORIGINS" envSeparator:","`
	MaintenanceSchedule string        `env:"VERACITY_MAINTENANCE_SCHEDULE" envDefault:"@every 10m"`
	RequestTimeout      time.Duration `env:"VERACITY_REQUEST_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout     time.Duration `env:"VERACITY_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	Debug               bool          `env:"VERACITY_DEBUG"`
}

// ParseEnv loads the server configuration from environment variables
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
