// Package config loads, validates, and normalizes reel configuration.
//
// Configuration comes from a TOML file (default ~/.config/reel/config.toml,
// with a project-local reel.toml fallback) layered over built-in defaults.
// A small set of environment variables override individual fields after the
// file is decoded. All path fields are tilde-expanded and absolute by the
// time Load returns.
package config
