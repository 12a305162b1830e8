// Package config resolves the lsesample configuration.
//
// Settings are layered, each layer overriding the ones above it:
//
//  1. Built-in defaults (Default)
//  2. The config file, TOML or YAML by extension
//  3. LSESAMPLE_ environment variables
//  4. Command-line flags (WithOverride)
//
// The layers are merged as generic maps by the loader package and then
// decoded into a typed Config, which is validated before use.
//
// # Settings
//
//	[server]
//	name = "lsesample"
//	source = "lsesample"
//	watchConfig = true
//
//	[logging]
//	level = "info"
//	file = ""
//
//	[completion]
//	triggerCharacters = [".", "#"]
//
// # Environment
//
// LSESAMPLE_LOG_LEVEL, LSESAMPLE_LOG_FILE and LSESAMPLE_SOURCE are shorthands.
// Any other LSESAMPLE_SECTION_KEY variable sets section.key, with the key
// words joined in camelCase: LSESAMPLE_SERVER_WATCH_CONFIG sets
// server.watchConfig.
//
// # Live Reload
//
// The watcher subpackage reports changes to the config file. Callers reload
// with the same Loader and apply what can change at runtime.
package config
