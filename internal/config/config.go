// Package config loads pdfmark's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"pdfmark/internal/annot"
)

// Config holds the complete application configuration.
type Config struct {
	Library LibraryConfig `toml:"library"`
	Render  RenderConfig  `toml:"render"`
	Tools   ToolsConfig   `toml:"tools"`
	Logging LoggingConfig `toml:"logging"`
}

// LibraryConfig locates the document library database.
type LibraryConfig struct {
	// Path is the sqlite database file holding documents and layers.
	Path string `toml:"path"`
}

// RenderConfig bounds the page raster cache and read-ahead.
type RenderConfig struct {
	// CacheBytes caps the decoded page cache. Oldest pages are evicted first.
	CacheBytes int64 `toml:"cache_bytes"`

	// PrefetchRadius is how many pages around the current one are
	// rasterized ahead of time. 0 disables prefetch.
	PrefetchRadius int `toml:"prefetch_radius"`
}

// ToolsConfig carries the default style per drawing tool.
type ToolsConfig struct {
	HighlightColor string  `toml:"highlight_color"`
	StrokeColor    string  `toml:"stroke_color"`
	StrokeWidth    float64 `toml:"stroke_width"`
	ShapeColor     string  `toml:"shape_color"`
	Opacity        float64 `toml:"opacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Path: filepath.Join(dataDir(), "library.db"),
		},
		Render: RenderConfig{
			CacheBytes:     256 * 1024 * 1024,
			PrefetchRadius: 2,
		},
		Tools: ToolsConfig{
			HighlightColor: annot.DefaultStyle().Color,
			StrokeColor:    "#d42a2a",
			StrokeWidth:    2.0,
			ShapeColor:     "#2a6fd4",
			Opacity:        1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(dataDir(), "config.toml")
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that have hard ranges.
func (c *Config) Validate() error {
	if c.Render.CacheBytes < 0 {
		return fmt.Errorf("render.cache_bytes must not be negative")
	}
	if c.Render.PrefetchRadius < 0 {
		return fmt.Errorf("render.prefetch_radius must not be negative")
	}
	if c.Tools.StrokeWidth <= 0 {
		return fmt.Errorf("tools.stroke_width must be positive")
	}
	for _, s := range []Style{c.HighlightStyle(), c.StrokeStyle(), c.ShapeStyle()} {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("tools: %w", err)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not recognized", c.Logging.Level)
	}
	return nil
}

// Style mirrors annot.Style so tool defaults can be built without the
// caller importing both packages.
type Style = annot.Style

// HighlightStyle returns the configured highlighter default.
func (c *Config) HighlightStyle() Style {
	return Style{Color: c.Tools.HighlightColor, Opacity: c.Tools.Opacity, StrokeWidth: c.Tools.StrokeWidth}
}

// StrokeStyle returns the configured pen default.
func (c *Config) StrokeStyle() Style {
	return Style{Color: c.Tools.StrokeColor, Opacity: c.Tools.Opacity, StrokeWidth: c.Tools.StrokeWidth}
}

// ShapeStyle returns the configured shape-tool default.
func (c *Config) ShapeStyle() Style {
	return Style{Color: c.Tools.ShapeColor, Opacity: c.Tools.Opacity, StrokeWidth: c.Tools.StrokeWidth}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PDFMARK_LIBRARY_PATH"); v != "" {
		c.Library.Path = v
	}
	if v := os.Getenv("PDFMARK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func dataDir() string {
	if v := os.Getenv("PDFMARK_DATA_DIR"); v != "" {
		return v
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "pdfmark")
	}
	return "."
}
