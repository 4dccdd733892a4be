// Package imaging loads dataset images and caches decoded pixels and
// dimensions so the canvas and the image list never hit the disk twice for
// the same file.
package imaging

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"box-annotator/pkg/geometry"
)

// Cache is a thread-safe cache of decoded images and their natural sizes,
// keyed by file path. Entries stay until evicted.
type Cache struct {
	mu     sync.RWMutex
	images map[string]image.Image
	sizes  map[string]geometry.Size
}

// NewCache returns an empty cache ready for use.
func NewCache() *Cache {
	return &Cache{
		images: make(map[string]image.Image),
		sizes:  make(map[string]geometry.Size),
	}
}

// Load returns the decoded image at path, from cache when possible. EXIF
// orientation is applied at decode time.
func (c *Cache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("loading image %s: %w", path, err)
	}

	c.mu.Lock()
	c.images[path] = img
	bounds := img.Bounds()
	c.sizes[path] = geometry.NewSize(float64(bounds.Dx()), float64(bounds.Dy()))
	c.mu.Unlock()
	return img, nil
}

// Dimensions returns the natural pixel size of the image at path, decoding
// it on a cache miss.
func (c *Cache) Dimensions(path string) (geometry.Size, error) {
	c.mu.RLock()
	if size, ok := c.sizes[path]; ok {
		c.mu.RUnlock()
		return size, nil
	}
	c.mu.RUnlock()

	if _, err := c.Load(path); err != nil {
		return geometry.Size{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sizes[path], nil
}

// Thumbnail returns the image at path scaled to fit within maxW x maxH,
// preserving aspect ratio. Thumbnails are not cached; the list widget keeps
// its own copies.
func (c *Cache) Thumbnail(path string, maxW, maxH int) (image.Image, error) {
	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos), nil
}

// Evict removes one entry.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	delete(c.sizes, path)
	c.mu.Unlock()
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.sizes = make(map[string]geometry.Size)
	c.mu.Unlock()
}
