// Package config handles configuration loading for parley.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	provider:
//	  api_key: "${ANTHROPIC_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  idle_timeout: "30m"
//	  sweep_interval: "5m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "127.0.0.1:8080"   # API, WebSocket viewers, metrics
//
// Database:
//
//	database:
//	  path: "~/.local/share/parley/parley.db"
//
// Provider:
//
//	provider:
//	  name: "anthropic"
//	  api_key: "${ANTHROPIC_API_KEY}"
//	  default_model: "claude-sonnet-4-20250514"
//	  max_tokens: 4096
//
// Session lifecycle:
//
//	sessions:
//	  idle_timeout: "30m"          # reaper eviction threshold
//	  sweep_interval: "5m"         # reaper period
//	  max_history_messages: 50     # injection cap on resume
//
// Model catalog (optional):
//
//	catalog:
//	  path: "/etc/parley/models.toml"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
