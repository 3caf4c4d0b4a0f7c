package asset

import (
	"github.com/udisondev/corridor/internal/rescache"
)

// Cache is the texture cache shared by the streamer and the billboard manager.
type Cache = rescache.Cache[*Texture]

// NewCache creates a texture cache sized with TextureSize.
func NewCache(cfg rescache.Config, loader rescache.Loader[*Texture]) (*Cache, error) {
	return rescache.New[*Texture](cfg, loader, TextureSize)
}
