// Package config loads, normalizes, and validates scriber configuration
// from a TOML file. Defaults are usable without any file present.
package config
