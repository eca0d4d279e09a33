// Package config loads, normalizes, and validates trackline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRACKLINE_API_TOKEN and MINIO_ACCESS_KEY. A .env file in the working
// directory is read before fallbacks are applied.
//
// Always obtain settings through this package so downstream code receives
// absolute managed directories, canonical log formats, and clear validation
// errors.
package config
