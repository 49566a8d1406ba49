// Package config loads, normalizes, and validates flora configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PLANTNET_API_KEY. The Config type centralizes every knob the CLI needs so
// the recognition client, the identification pipeline and the organizer are
// configured in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
