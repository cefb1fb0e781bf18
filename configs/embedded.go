// Package configs provides the embedded default configuration for rss-enhancer.
package configs

import "embed"

// EmbeddedConfigs exposes embedded configuration files for read-only access.
//
//go:embed *.yaml
var EmbeddedConfigs embed.FS

// DefaultConfigName is the embedded defaults file
const DefaultConfigName = "default.yaml"
