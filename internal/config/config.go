// Package config holds the single configuration value sindex builds once
// from CLI flags and environment variables, then passes by explicit
// reference to every subsystem. There are no package-level configuration
// globals anywhere else in this module.
package config

import "os"

// DefaultDatabasePath is used when neither -D/--database nor
// SINDEX_DATABASE override it.
const DefaultDatabasePath = "sindex.sqlite"

// DatabaseEnvVar is the environment variable that overrides the default
// store path.
const DatabaseEnvVar = "SINDEX_DATABASE"

// Config carries the options common to every sindex subcommand.
type Config struct {
	// DatabasePath is the path to the on-disk store.
	DatabasePath string

	// Verbose is the -v level: 0 logs at Info level, 1 or more lowers
	// the level to Debug, and 2+ also logs the compiled SQL of a search.
	Verbose int
}

// Default returns a Config seeded with SINDEX_DATABASE (or the built-in
// default path) and verbosity 0. Flag parsing in main overrides these.
func Default() Config {
	return Config{
		DatabasePath: DatabasePathFromEnv(),
		Verbose:      0,
	}
}

// DatabasePathFromEnv returns SINDEX_DATABASE's value, or
// DefaultDatabasePath if it is unset.
func DatabasePathFromEnv() string {
	if v := os.Getenv(DatabaseEnvVar); v != "" {
		return v
	}
	return DefaultDatabasePath
}
