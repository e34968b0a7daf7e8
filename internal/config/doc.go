// Package config loads, normalizes, and validates savesync configuration.
// Values resolve in precedence order: built-in defaults, the TOML config
// file, the SAVESYNC_* environment overlay, then explicit caller overrides
// applied by the orchestrator.
package config
