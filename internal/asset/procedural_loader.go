package asset

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned for keys the procedural loader is told to fail.
var ErrNotFound = errors.New("texture not found")

// ProceduralLoader synthesises textures without touching disk. Latency and
// failures are injectable so the streaming layers can be exercised end to end.
type ProceduralLoader struct {
	Width      int
	Height     int
	Latency    time.Duration
	FailPrefix string // keys with this prefix fail with ErrNotFound
}

// NewProceduralLoader creates a loader returning w×h RGBA textures.
func NewProceduralLoader(w, h int, latency time.Duration) *ProceduralLoader {
	return &ProceduralLoader{Width: w, Height: h, Latency: latency}
}

// Load waits Latency (or until ctx is done) and returns a texture for key.
func (l *ProceduralLoader) Load(ctx context.Context, key string) (*Texture, error) {
	if l.Latency > 0 {
		timer := time.NewTimer(l.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.FailPrefix != "" && strings.HasPrefix(key, l.FailPrefix) {
		return nil, ErrNotFound
	}

	return &Texture{
		Key:           key,
		Width:         l.Width,
		Height:        l.Height,
		BytesPerPixel: 4,
	}, nil
}
