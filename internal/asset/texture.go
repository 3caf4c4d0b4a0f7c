// Package asset provides the texture resource type and the loaders the
// resource cache fetches it through.
package asset

import (
	"sync/atomic"
)

// Texture is a decoded image resident in GPU memory.
type Texture struct {
	Key           string
	Width         int
	Height        int
	BytesPerPixel int

	disposed atomic.Bool
}

// Dispose frees the texture. Safe to call more than once.
func (t *Texture) Dispose() {
	t.disposed.Store(true)
}

// Disposed reports whether the texture was freed.
func (t *Texture) Disposed() bool {
	return t.disposed.Load()
}

// TextureSize estimates the resident cost: width × height × bytes per pixel.
func TextureSize(t *Texture) int64 {
	bpp := t.BytesPerPixel
	if bpp <= 0 {
		bpp = 4
	}
	return int64(t.Width) * int64(t.Height) * int64(bpp)
}
