// Package config handles configuration loading for coven-playground.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. A .env file next to the config file is loaded first. Missing
// values fall back to defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_PLAYGROUND_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/playground.yaml
//  3. ~/.config/coven/playground.yaml
//
// Files ending in .toml are parsed as TOML.
//
// # Environment Variable Expansion
//
//	endpoint: "${PLAYGROUND_ENDPOINT}"
//
// # Configuration Sections
//
//	endpoint: "http://localhost:7777"
//
//	target:
//	  agent: "web-agent"      # team wins over agent, agent over workflow
//	  team: ""
//	  workflow: ""
//
//	database:
//	  path: "~/.local/share/coven/playground.db"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	workflow_state:
//	  refresh_interval: "5s"
//
//	http:
//	  timeout: "30s"  # non-streaming requests only
package config
