// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every `env` tag, so a field tagged `HTTP_ADDR`
// reads FORTHCOMING_HTTP_ADDR.
const EnvPrefix = "FORTHCOMING_"

// ParseEnv loads configuration from environment variables into target.
//
// Fields keep their `envDefault` values when the variable is unset.
func ParseEnv(target any) error {
	if target == nil {
		return fmt.Errorf("parse env: target is required")
	}
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
