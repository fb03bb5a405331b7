// Package config loads, normalizes, and validates postflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a sibling .env file, and honours
// environment overrides for secrets such as POSTFLOW_PLATFORM_TOKEN and
// POSTFLOW_JWT_SECRET. The Config type centralizes every knob the daemon and
// CLI need so the store location, platform credentials and worker timing are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
