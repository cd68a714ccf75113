// Package config loads, normalizes, and validates courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and validates the knobs the daemon and CLI
// need: relay storage locations, seedbox credentials, transfer policy, and
// job schedules.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
