// Package config loads, normalizes, and validates Rudder configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides for the
// printer controller (MOONRAKER_URL and POLL_INTERVAL). The Config type holds
// every knob the daemon and CLI need: database and upload locations, controller
// timeouts, and the duplicate windows applied by automatic detection and manual
// uploads.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
