// Package catalog loads the curated model catalog.
//
// Operators keep a small TOML file of models they want exposed, with
// short aliases and per-model token limits:
//
//	[[model]]
//	id = "claude-sonnet-4-20250514"
//	alias = "sonnet"
//	display_name = "Claude Sonnet 4"
//	max_tokens = 8192
//
// The catalog is optional. When present it is merged with the
// provider's live model list, with curated entries listed first.
package catalog
