package cli

import (
	"github.com/caarlos0/env/v11"
)

// Config is the environment-variable configuration surface. Flags
// always win over these.
type Config struct {
	// Python names an interpreter to prefer when the record does not
	// pin a usable executable.
	Python string `env:"MAPCLIENT_SETUP_PYTHON"`

	// Git overrides the revision-control executable to resolve.
	Git string `env:"MAPCLIENT_SETUP_GIT" envDefault:"git"`

	// Journal enables the per-setup-directory run journal.
	Journal bool `env:"MAPCLIENT_SETUP_JOURNAL" envDefault:"true"`
}

// LoadConfigFromEnv reads configuration from the environment, falling
// back to defaults when parsing fails. Configuration is advisory, so a
// malformed variable degrades instead of aborting the run.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{Git: "git", Journal: true}
	}
	return cfg
}
