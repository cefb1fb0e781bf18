// Package main provides the CLI entry point for rss-enhancer.
package main

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/rss-enhancer/internal/config"
	"github.com/lepinkainen/rss-enhancer/pkg/enhancer"
	"github.com/lepinkainen/rss-enhancer/pkg/filesystem"
	"github.com/lepinkainen/rss-enhancer/pkg/fragcache"
	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
	"github.com/lepinkainen/rss-enhancer/pkg/media"
	"github.com/lepinkainen/rss-enhancer/pkg/preview"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	SiteURL      string `help:"Absolute base URL of the site (overrides site_url)" name:"site-url"`
	BuildDir     string `help:"Site build output directory (overrides build_dir)" name:"build-dir"`
	CacheDir     string `help:"Fragment cache directory (overrides cache_dir)" name:"cache-dir"`
	CacheBackend string `help:"Fragment cache backend (overrides cache_backend)" name:"cache-backend"`

	Enhance struct {
		Report        string `help:"Write a YAML run summary to this path"`
		PreviousBuild string `help:"Timestamp of the previous successful build"`
		NoCache       bool   `help:"Ignore cached fragments"`
		DryRun        bool   `help:"Process items without writing the feed or the cache"`
	} `cmd:"enhance" help:"Replace feed summaries with sanitized full post content."`

	Preview struct {
		PreviousBuild string `help:"Timestamp of the previous successful build"`
		NoCache       bool   `help:"Ignore cached fragments"`
		Index         int    `help:"Output XML for specific item index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Dry-run the enhancer and browse the results interactively."`

	Cache struct {
		Stats struct {
			Format string `help:"Output format" enum:"text,yaml" default:"text"`
		} `cmd:"stats" help:"Show fragment cache statistics."`

		Clear struct{} `cmd:"clear" help:"Remove all cached fragments and the build stamp."`
	} `cmd:"cache" help:"Inspect or reset the fragment cache."`

	Media struct {
		Width      int    `help:"Intrinsic media width" default:"0"`
		Height     int    `help:"Intrinsic media height" default:"0"`
		OnClick    string `help:"JavaScript click handler" name:"on-click"`
		Class      string `help:"Extra class names"`
		Inner      string `help:"Inner HTML, read from stdin when set to -" default:"-"`
		Stylesheet bool   `help:"Print the container stylesheet instead"`
	} `cmd:"media" help:"Render a fixed-ratio media container."`
}

func main() {
	// Parse CLI with Kong YAML configuration file loading
	ctx := kong.Parse(&CLI,
		kong.Name("rss-enhancer"),
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.rss-enhancer/config.yaml"),
	)

	if CLI.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}

	var err error
	switch ctx.Command() {
	case "enhance":
		err = runEnhance()
	case "preview":
		err = runPreview()
	case "cache stats":
		err = runCacheStats(os.Stdout, CLI.Cache.Stats.Format)
	case "cache clear":
		err = runCacheClear()
	case "media":
		err = runMedia(os.Stdin, os.Stdout)
	default:
		panic(ctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the settings file and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	overrides := []struct {
		flag   string
		target *string
	}{
		{CLI.SiteURL, &cfg.SiteURL},
		{CLI.BuildDir, &cfg.BuildDir},
		{CLI.CacheDir, &cfg.CacheDir},
		{CLI.CacheBackend, &cfg.CacheBackend},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.target = o.flag
		}
	}
}

// newEnhancer wires the cleaner and the cache store into an Enhancer.
// The caller closes the returned store.
func newEnhancer(cfg *config.Config, previousBuild string, noCache, dryRun bool) (*enhancer.Enhancer, fragcache.Store, error) {
	if previousBuild != "" {
		cfg.PreviousBuild = previousBuild
	}
	if noCache {
		cfg.NoCache = true
	}

	opts, err := cfg.EnhancerOptions()
	if err != nil {
		return nil, nil, err
	}
	opts.DryRun = dryRun

	cleaner, err := htmlclean.New(cfg.CleanerOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cleaner: %w", err)
	}

	store, err := fragcache.Open(cfg.CacheBackend, cfg.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	e, err := enhancer.New(opts, cleaner, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return e, store, nil
}

func runEnhance() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	e, store, err := newEnhancer(cfg, CLI.Enhance.PreviousBuild, CLI.Enhance.NoCache, CLI.Enhance.DryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := e.Run()
	if err != nil {
		return err
	}

	if CLI.Enhance.Report != "" {
		if err := writeReport(CLI.Enhance.Report, summary); err != nil {
			return err
		}
		slog.Debug("Report written", "path", CLI.Enhance.Report)
	}

	return nil
}

// writeReport saves the run summary as YAML
func writeReport(path string, summary *enhancer.Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func runPreview() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	e, store, err := newEnhancer(cfg, CLI.Preview.PreviousBuild, CLI.Preview.NoCache, true)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := e.Run()
	if err != nil {
		return err
	}

	// If index is specified, output XML directly to stdout
	if index := CLI.Preview.Index; index >= 0 {
		if index >= len(summary.Items) {
			return fmt.Errorf("index %d out of range (%d items)", index, len(summary.Items))
		}
		fmt.Println(preview.FormatXMLItem(summary.Items[index]))
		return nil
	}

	return preview.Run(summary)
}

func runCacheStats(w io.Writer, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := fragcache.Open(cfg.CacheBackend, cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	return printStats(w, stats, format)
}

// printStats writes stats as aligned text or YAML
func printStats(w io.Writer, stats fragcache.Stats, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		return enc.Close()
	}

	stamp := func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format(time.RFC3339)
	}

	_, err := fmt.Fprintf(w, "Backend:    %s\nLocation:   %s\nEntries:    %d\nBytes:      %d\nOldest:     %s\nNewest:     %s\nLast build: %s\n",
		stats.Backend, stats.Location, stats.Entries, stats.Bytes,
		stamp(stats.Oldest), stamp(stats.Newest), stamp(stats.LastBuild))
	return err
}

func runCacheClear() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := fragcache.Open(cfg.CacheBackend, cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return err
	}
	slog.Info("Cache cleared", "backend", cfg.CacheBackend, "dir", cfg.CacheDir)
	return nil
}

func runMedia(stdin io.Reader, w io.Writer) error {
	if CLI.Media.Stylesheet {
		_, err := fmt.Fprintln(w, media.Stylesheet())
		return err
	}

	inner := CLI.Media.Inner
	if inner == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read inner HTML: %w", err)
		}
		inner = string(data)
	}

	return renderMedia(w, media.Container{
		Width:     CLI.Media.Width,
		Height:    CLI.Media.Height,
		OnClick:   template.JS(CLI.Media.OnClick),
		ClassName: CLI.Media.Class,
	}, inner)
}

// renderMedia writes one container around inner
func renderMedia(w io.Writer, c media.Container, inner string) error {
	renderer, err := media.NewRenderer()
	if err != nil {
		return err
	}

	out, err := renderer.Render(c, template.HTML(inner))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, out)
	return err
}
