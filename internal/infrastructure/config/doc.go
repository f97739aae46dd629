// Package config handles loading and validation of the bridge configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// environment variable overrides (ZWB_* pattern). The loaded Config is
// validated before use and treated as read-only afterwards.
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetWatchdogInterval()
//
// Controller definitions are not part of this file; they live in the
// SQLite store managed by the controller package.
package config
