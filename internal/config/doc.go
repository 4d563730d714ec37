// Package config handles configuration loading for tradewind.
//
// # Overview
//
// Configuration is loaded from TOML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// The default location is ./tradewind.config.toml; the --config flag
// overrides it.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[model]
//	api_key = "${TRADEWIND_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	[agent]
//	init_timeout = "10s"
//	call_timeout = "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Environment (runtime state lives under <cwd>/<project>/.tradewind):
//
//	[environment]
//	cwd = "/home/trader/work"
//	project = "my-strategy"
//
// Model connectivity (opaque, exported to the session boundary):
//
//	[model]
//	base_url = "..."
//	api_key = "${TRADEWIND_API_KEY}"
//	model_name = "..."
//
// Agent policy:
//
//	[agent]
//	permission_mode = "ask"   # ask, auto
//	extension_enabled = ["market_data", "broker"]
//	init_timeout = "10s"
//	call_timeout = "30s"
//
// Extensions (one section per namespace; options is that namespace's
// private configuration, handed to its init hook and never logged):
//
//	[extensions.market_data]
//	location = "builtin:market_data"
//
//	[extensions.market_data.options]
//	base_url = "https://quotes.example.com"
//
//	[extensions.broker]
//	location = "builtin:broker"
//
//	[extensions.broker.options]
//	endpoint = "http://127.0.0.1:18080"
//
// Logging:
//
//	[logging]
//	level = "info"   # debug, info, warn, error
//	format = "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - environment.cwd presence
//   - every enabled namespace has an [extensions] section with a location
//   - permission mode, logging level, and format values
//   - duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load(config.DefaultPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
