package config

import "github.com/caarlos0/env/v11"

const envPrefix = "DUOMATCH_"

// parseEnv overlays DUOMATCH_* variables. Unset variables keep the current
// value; malformed ones panic.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		panic(err)
	}
}
