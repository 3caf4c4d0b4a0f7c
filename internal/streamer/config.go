package streamer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid streamer config")

// Config holds the tile pool limits, the coverage window and the LOD thresholds.
type Config struct {
	TileLength           float64 `yaml:"tile_length"`
	MinPool              int     `yaml:"min_pool"`
	MaxPool              int     `yaml:"max_pool"`
	HardPoolCap          int     `yaml:"hard_pool_cap"`
	CleanupIntervalTicks int     `yaml:"cleanup_interval_ticks"`

	// Ahead window is BaseAhead + AheadPerSpeed*speed, capped at MaxAhead.
	BaseAhead     float64 `yaml:"base_ahead"`
	AheadPerSpeed float64 `yaml:"ahead_per_speed"` // seconds of lookahead
	MaxAhead      float64 `yaml:"max_ahead"`
	Behind        float64 `yaml:"behind"`

	// LOD thresholds at rest; scaled by min(1+speed*LODSpeedFactor, MaxLODScale).
	LODFull        float64 `yaml:"lod_full"`
	LODMedium      float64 `yaml:"lod_medium"`
	LODLow         float64 `yaml:"lod_low"`
	LODSpeedFactor float64 `yaml:"lod_speed_factor"`
	MaxLODScale    float64 `yaml:"max_lod_scale"`

	// Periodic cleanup drops tiles farther than this multiple of the window span.
	CleanupDistanceFactor float64 `yaml:"cleanup_distance_factor"`

	DetailTextures []string `yaml:"detail_textures"`
	Seed           uint64   `yaml:"seed"`
}

// DefaultConfig returns defaults tuned for highway speeds (up to ~70 m/s).
func DefaultConfig() Config {
	return Config{
		TileLength:           200,
		MinPool:              4,
		MaxPool:              24,
		HardPoolCap:          32,
		CleanupIntervalTicks: 60,

		BaseAhead:     800,
		AheadPerSpeed: 20,
		MaxAhead:      3000,
		Behind:        200,

		LODFull:        300,
		LODMedium:      700,
		LODLow:         1400,
		LODSpeedFactor: 0.01,
		MaxLODScale:    2,

		CleanupDistanceFactor: 2,

		DetailTextures: []string{
			"road/asphalt-detail.png",
			"road/gravel-shoulder.png",
			"road/verge-grass.png",
		},
		Seed: 1,
	}
}

// Validate checks config constraints.
func (c Config) Validate() error {
	switch {
	case c.TileLength <= 0:
		return fmt.Errorf("%w: tile_length must be positive", ErrInvalidConfig)
	case c.MinPool < 1:
		return fmt.Errorf("%w: min_pool must be at least 1", ErrInvalidConfig)
	case c.MaxPool < c.MinPool:
		return fmt.Errorf("%w: max_pool (%d) must not be less than min_pool (%d)", ErrInvalidConfig, c.MaxPool, c.MinPool)
	case c.HardPoolCap < c.MaxPool:
		return fmt.Errorf("%w: hard_pool_cap (%d) must not be less than max_pool (%d)", ErrInvalidConfig, c.HardPoolCap, c.MaxPool)
	case c.CleanupIntervalTicks < 1:
		return fmt.Errorf("%w: cleanup_interval_ticks must be at least 1", ErrInvalidConfig)
	case c.BaseAhead < 0 || c.AheadPerSpeed < 0 || c.Behind < 0:
		return fmt.Errorf("%w: window sizes must not be negative", ErrInvalidConfig)
	case c.MaxAhead < c.BaseAhead:
		return fmt.Errorf("%w: max_ahead must not be less than base_ahead", ErrInvalidConfig)
	case c.LODFull <= 0 || c.LODFull >= c.LODMedium || c.LODMedium >= c.LODLow:
		return fmt.Errorf("%w: lod thresholds must satisfy 0 < full < medium < low", ErrInvalidConfig)
	case c.LODSpeedFactor < 0:
		return fmt.Errorf("%w: lod_speed_factor must not be negative", ErrInvalidConfig)
	case c.MaxLODScale < 1:
		return fmt.Errorf("%w: max_lod_scale must be at least 1", ErrInvalidConfig)
	case c.CleanupDistanceFactor < 1:
		return fmt.Errorf("%w: cleanup_distance_factor must be at least 1", ErrInvalidConfig)
	}
	for i, key := range c.DetailTextures {
		if key == "" {
			return fmt.Errorf("%w: detail_textures[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}
