package asset

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader loads textures from image files under Root. Only the image
// header is decoded; that is all the cache needs for size accounting.
type FileLoader struct {
	Root string
}

// NewFileLoader creates a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Root: dir}
}

// Load opens Root/key and reads its dimensions.
func (l *FileLoader) Load(ctx context.Context, key string) (*Texture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.Contains(key, "..") {
		return nil, fmt.Errorf("path traversal denied: %s", key)
	}

	f, err := os.Open(filepath.Join(l.Root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("opening texture %s: %w", key, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", key, err)
	}

	bpp := 4
	if format == "jpeg" {
		bpp = 3
	}

	return &Texture{
		Key:           key,
		Width:         cfg.Width,
		Height:        cfg.Height,
		BytesPerPixel: bpp,
	}, nil
}
