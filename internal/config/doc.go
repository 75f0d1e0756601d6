// Package config loads, normalizes, and validates scrivener configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML or YAML files, and honours environment fallbacks such
// as GEMINI_API_KEY. The Config type centralizes every knob the pipeline and
// CLI need so directories and provider credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider names, and clear validation errors.
package config
