// Package corridor drives the streaming components from a single tick loop.
package corridor

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidConfig is returned by ViewerConfig.Validate.
var ErrInvalidConfig = errors.New("invalid viewer config")

// ViewerConfig describes the simulated viewer.
type ViewerConfig struct {
	StartZ       float64 `yaml:"start_z"`
	Lateral      float64 `yaml:"lateral"`      // offset from the centre line
	Height       float64 `yaml:"height"`       // eye height
	CruiseSpeed  float64 `yaml:"cruise_speed"` // m/s
	Acceleration float64 `yaml:"acceleration"` // m/s^2
}

// DefaultViewerConfig returns a car in the right lane at motorway speed.
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{
		Lateral:      1.8,
		Height:       1.2,
		CruiseSpeed:  33,
		Acceleration: 3,
	}
}

// Validate checks config constraints.
func (c ViewerConfig) Validate() error {
	switch {
	case c.CruiseSpeed < 0:
		return fmt.Errorf("%w: cruise_speed must not be negative", ErrInvalidConfig)
	case c.Acceleration <= 0:
		return fmt.Errorf("%w: acceleration must be positive", ErrInvalidConfig)
	}
	return nil
}

// Viewer moves along +z, easing its speed toward a target.
type Viewer struct {
	Position mgl64.Vec3
	Speed    float64

	target   float64
	accel    float64
	odometer float64
}

// NewViewer places a stationary viewer at cfg.StartZ heading for cfg.CruiseSpeed.
func NewViewer(cfg ViewerConfig) *Viewer {
	return &Viewer{
		Position: mgl64.Vec3{cfg.Lateral, cfg.Height, cfg.StartZ},
		target:   cfg.CruiseSpeed,
		accel:    cfg.Acceleration,
	}
}

// SetTarget changes the speed the viewer eases toward. Negative targets
// reverse the viewer.
func (v *Viewer) SetTarget(speed float64) { v.target = speed }

// Target returns the speed the viewer eases toward.
func (v *Viewer) Target() float64 { return v.target }

// Z returns the progress coordinate.
func (v *Viewer) Z() float64 { return v.Position.Z() }

// Odometer returns the total distance travelled, either direction.
func (v *Viewer) Odometer() float64 { return v.odometer }

// Advance integrates speed and position over dt.
func (v *Viewer) Advance(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}

	step := v.accel * sec
	switch {
	case v.Speed < v.target:
		v.Speed = min(v.Speed+step, v.target)
	case v.Speed > v.target:
		v.Speed = max(v.Speed-step, v.target)
	}

	dz := v.Speed * sec
	v.Position[2] += dz
	if dz < 0 {
		dz = -dz
	}
	v.odometer += dz
}
