package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Lookup resolves one environment variable. os.LookupEnv is the process
// environment.
type Lookup func(key string) (string, bool)

// ParseEnv loads SOIMAP_ configuration from the process environment.
func ParseEnv(target any) error {
	return ParseEnvLookup(target, os.LookupEnv)
}

// ParseEnvLookup loads configuration through lookup. Keys lookup does not
// report fall back to their envDefault tags.
func ParseEnvLookup(target any, lookup Lookup) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	params, err := env.GetFieldParams(target)
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	environ := make(map[string]string, len(params))
	for _, param := range params {
		if value, ok := lookup(param.Key); ok {
			environ[param.Key] = value
		}
	}
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
