package billboard

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid billboard config")

// Config holds the distance gates of the Manager.
type Config struct {
	LoadDistance        float64       `yaml:"load_distance"`   // start loading when closer than this (exclusive)
	UnloadDistance      float64       `yaml:"unload_distance"` // unload when farther than this
	CullDistance        float64       `yaml:"cull_distance"`   // behind the viewer: hide within, unload beyond
	MaxConcurrentLoaded int           `yaml:"max_concurrent_loaded"`
	UpdateInterval      time.Duration `yaml:"update_interval"` // distance scan throttle
	MaxLoadAttempts     int           `yaml:"max_load_attempts"`
	FallbackTexture     string        `yaml:"fallback_texture"`
}

// DefaultConfig returns highway-scale defaults.
func DefaultConfig() Config {
	return Config{
		LoadDistance:        600,
		UnloadDistance:      900,
		CullDistance:        150,
		MaxConcurrentLoaded: 24,
		UpdateInterval:      100 * time.Millisecond,
		MaxLoadAttempts:     3,
		FallbackTexture:     "billboards/default.png",
	}
}

// Validate checks config constraints. LoadDistance < UnloadDistance is
// required so entities near the boundary don't thrash.
func (c Config) Validate() error {
	switch {
	case c.LoadDistance <= 0:
		return fmt.Errorf("%w: load_distance must be positive", ErrInvalidConfig)
	case c.LoadDistance >= c.UnloadDistance:
		return fmt.Errorf("%w: load_distance (%g) must be less than unload_distance (%g)",
			ErrInvalidConfig, c.LoadDistance, c.UnloadDistance)
	case c.CullDistance < 0 || c.CullDistance > c.UnloadDistance:
		return fmt.Errorf("%w: cull_distance must be within [0, unload_distance]", ErrInvalidConfig)
	case c.MaxConcurrentLoaded <= 0:
		return fmt.Errorf("%w: max_concurrent_loaded must be positive", ErrInvalidConfig)
	case c.UpdateInterval < 0:
		return fmt.Errorf("%w: update_interval must not be negative", ErrInvalidConfig)
	case c.MaxLoadAttempts < 1:
		return fmt.Errorf("%w: max_load_attempts must be at least 1", ErrInvalidConfig)
	case c.FallbackTexture == "":
		return fmt.Errorf("%w: fallback_texture is required", ErrInvalidConfig)
	}
	return nil
}
