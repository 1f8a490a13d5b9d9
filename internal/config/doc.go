// Package config loads, normalizes, and validates crate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CRATE_CATALOG_TOKEN. The Config type centralizes every knob the server and
// CLI need: storage locations, catalog credentials and rate limits, and the
// retry/ranking parameters of the enrichment engine.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
