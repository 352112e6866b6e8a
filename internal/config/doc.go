// Package config loads gatekeeper configuration from YAML with
// environment variable expansion, duration parsing, and environment
// overrides for the per-deployment knobs (daily limit, cooldown
// window, owner user id).
package config
