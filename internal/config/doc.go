// Package config provides configuration loading and validation for the
// speech-to-text node. It handles YAML-based configuration with per-section
// struct validation.
package config
