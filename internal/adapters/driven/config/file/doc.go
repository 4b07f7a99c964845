// Package file provides the file-based configuration store.
//
// Settings are read from an optional TOML file, overridden by environment
// variables, completed with defaults and validated.
package file
