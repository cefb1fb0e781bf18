// Package config loads rss-enhancer settings: embedded defaults, then the
// user's YAML file, then RSS_ENHANCER_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/viper"

	"github.com/lepinkainen/rss-enhancer/configs"
	"github.com/lepinkainen/rss-enhancer/pkg/enhancer"
	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
)

// EnvPrefix prefixes environment overrides, e.g. RSS_ENHANCER_SITE_URL
const EnvPrefix = "RSS_ENHANCER"

// CleanerConfig mirrors htmlclean.Options
type CleanerConfig struct {
	ContentSelectors       []string `mapstructure:"content_selectors"`
	RemoveSelectors        []string `mapstructure:"remove_selectors"`
	PopoverSelector        string   `mapstructure:"popover_selector"`
	PopoverContentSelector string   `mapstructure:"popover_content_selector"`
	PostsPathPrefix        string   `mapstructure:"posts_path_prefix"`
	IconSelectors          []string `mapstructure:"icon_selectors"`
	ExtraAllowedElements   []string `mapstructure:"extra_allowed_elements"`
	ReadabilityFallback    bool     `mapstructure:"readability_fallback"`
	MaxIconSize            int      `mapstructure:"max_icon_size"`
}

// Config holds the central application configuration
type Config struct {
	SiteURL  string `mapstructure:"site_url"`
	BuildDir string `mapstructure:"build_dir"`
	FeedFile string `mapstructure:"feed_file"`
	PostsDir string `mapstructure:"posts_dir"`

	CacheDir     string `mapstructure:"cache_dir"`
	CacheBackend string `mapstructure:"cache_backend"`
	NoCache      bool   `mapstructure:"no_cache"`

	PreviousBuild     string `mapstructure:"previous_build"`
	MarkerPattern     string `mapstructure:"marker_pattern"`
	DescriptionLength int    `mapstructure:"description_length"`

	Cleaner CleanerConfig `mapstructure:"cleaner"`
}

// LoadConfig loads the embedded defaults and merges the file at path on top.
// An empty path or a missing file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := fs.ReadFile(configs.EmbeddedConfigs, configs.DefaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}

	if resolved := resolvePath(path); resolved != "" {
		data, err := os.ReadFile(resolved)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("error parsing config file %s: %w", resolved, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// resolvePath tries path as given, then next to the executable, expanding a leading ~/
func resolvePath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if filepath.IsAbs(path) || filesystem.FileExists(path) {
		return path
	}
	if execPath, err := filesystem.GetDefaultPath(path); err == nil && filesystem.FileExists(execPath) {
		return execPath
	}
	return path
}

// CleanerOptions converts the cleaner section
func (c *Config) CleanerOptions() htmlclean.Options {
	return htmlclean.Options{
		SiteURL:                c.SiteURL,
		ContentSelectors:       c.Cleaner.ContentSelectors,
		RemoveSelectors:        c.Cleaner.RemoveSelectors,
		PopoverSelector:        c.Cleaner.PopoverSelector,
		PopoverContentSelector: c.Cleaner.PopoverContentSelector,
		PostsPathPrefix:        c.Cleaner.PostsPathPrefix,
		IconSelectors:          c.Cleaner.IconSelectors,
		ExtraAllowedElements:   c.Cleaner.ExtraAllowedElements,
		ReadabilityFallback:    c.Cleaner.ReadabilityFallback,
		MaxIconSize:            c.Cleaner.MaxIconSize,
	}
}

// EnhancerOptions converts the run settings
func (c *Config) EnhancerOptions() (enhancer.Options, error) {
	previous, err := ParseTimestamp(c.PreviousBuild)
	if err != nil {
		return enhancer.Options{}, fmt.Errorf("invalid previous_build: %w", err)
	}

	return enhancer.Options{
		BuildDir:          c.BuildDir,
		FeedFile:          c.FeedFile,
		PostsDir:          c.PostsDir,
		MarkerPattern:     c.MarkerPattern,
		PreviousBuild:     previous,
		NoCache:           c.NoCache,
		DescriptionLength: c.DescriptionLength,
	}, nil
}

// ParseTimestamp parses a user-supplied time in any common layout; empty is the zero time
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseAny(value)
}
