package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/corridor/internal/billboard"
	"github.com/udisondev/corridor/internal/corridor"
	"github.com/udisondev/corridor/internal/rescache"
	"github.com/udisondev/corridor/internal/streamer"
)

// ErrInvalid wraps every validation failure returned by Corridor.Validate.
var ErrInvalid = errors.New("invalid config")

// Corridor holds all configuration for the corridor simulator.
type Corridor struct {
	LogLevel   string `yaml:"log_level"` // debug|info|warn|error
	TickRateHz int    `yaml:"tick_rate_hz"`

	Viewer     corridor.ViewerConfig `yaml:"viewer"`
	Streamer   streamer.Config       `yaml:"streamer"`
	Billboards billboard.Config      `yaml:"billboards"`
	Cache      rescache.Config       `yaml:"cache"`

	Assets   AssetsConfig   `yaml:"assets"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	Trace    TraceConfig    `yaml:"trace"`
}

// Asset loader kinds.
const (
	LoaderProcedural = "procedural"
	LoaderFile       = "file"
)

// AssetsConfig selects the texture loader.
type AssetsConfig struct {
	Loader     string        `yaml:"loader"` // procedural|file
	Root       string        `yaml:"root"`   // file loader base directory
	Width      int           `yaml:"width"`  // procedural texture size
	Height     int           `yaml:"height"`
	Latency    time.Duration `yaml:"latency"`     // procedural load delay
	FailPrefix string        `yaml:"fail_prefix"` // procedural keys with this prefix fail
}

// Catalog sources.
const (
	CatalogYAML     = "yaml"
	CatalogPostgres = "postgres"
)

// CatalogConfig selects where billboard placements come from.
type CatalogConfig struct {
	Source string `yaml:"source"` // yaml|postgres
	Path   string `yaml:"path"`

	// SeedFromFile imports Path into an empty postgres catalog.
	SeedFromFile bool `yaml:"seed_from_file"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// TraceConfig controls the per-tick trace file.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Default returns Corridor config with sensible defaults.
func Default() Corridor {
	return Corridor{
		LogLevel:   "info",
		TickRateHz: 60,
		Viewer:     corridor.DefaultViewerConfig(),
		Streamer:   streamer.DefaultConfig(),
		Billboards: billboard.DefaultConfig(),
		Cache:      rescache.DefaultConfig(),
		Assets: AssetsConfig{
			Loader:  LoaderProcedural,
			Root:    "assets",
			Width:   512,
			Height:  256,
			Latency: 40 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			Source: CatalogYAML,
			Path:   "config/billboards.yaml",
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "corridor",
			Password: "corridor",
			DBName:   "corridor",
			SSLMode:  "disable",
		},
		Trace: TraceConfig{
			Dir: "traces",
		},
	}
}

// Load loads config from a YAML file, starting from defaults.
// If the file doesn't exist, returns defaults.
func Load(path string) (Corridor, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks every section.
func (c Corridor) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("%w: tick_rate_hz must be in [1, 1000], got %d", ErrInvalid, c.TickRateHz)
	}

	sections := []struct {
		name string
		err  error
	}{
		{"viewer", c.Viewer.Validate()},
		{"streamer", c.Streamer.Validate()},
		{"billboards", c.Billboards.Validate()},
		{"cache", c.Cache.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalid, s.name, s.err)
		}
	}

	switch c.Assets.Loader {
	case LoaderProcedural:
		if c.Assets.Width <= 0 || c.Assets.Height <= 0 {
			return fmt.Errorf("%w: assets: procedural width and height must be positive", ErrInvalid)
		}
		if c.Assets.Latency < 0 {
			return fmt.Errorf("%w: assets: latency must not be negative", ErrInvalid)
		}
	case LoaderFile:
		if c.Assets.Root == "" {
			return fmt.Errorf("%w: assets: root is required for the file loader", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: assets: unknown loader %q", ErrInvalid, c.Assets.Loader)
	}

	switch c.Catalog.Source {
	case CatalogYAML:
		if c.Catalog.Path == "" {
			return fmt.Errorf("%w: catalog: path is required for the yaml source", ErrInvalid)
		}
	case CatalogPostgres:
		if c.Catalog.SeedFromFile && c.Catalog.Path == "" {
			return fmt.Errorf("%w: catalog: seed_from_file needs a path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: catalog: unknown source %q", ErrInvalid, c.Catalog.Source)
	}

	if c.Trace.Enabled && c.Trace.Dir == "" {
		return fmt.Errorf("%w: trace: dir is required when enabled", ErrInvalid)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Corridor) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// TickInterval returns the wall-clock period of one tick.
func (c Corridor) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}
