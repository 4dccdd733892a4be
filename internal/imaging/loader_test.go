package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndDimensions(t *testing.T) {
	cache := NewCache()
	path := writeTestPNG(t, 64, 48)

	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds = %v", b)
	}

	size, err := cache.Dimensions(path)
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	if size.Width != 64 || size.Height != 48 {
		t.Errorf("size = %+v", size)
	}
}

func TestLoadCachesSecondRead(t *testing.T) {
	cache := NewCache()
	path := writeTestPNG(t, 8, 8)

	first, err := cache.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	// Remove the file; a cached load must still succeed.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("cached load hit the disk: %v", err)
	}
	if first != second {
		t.Error("cache returned a different image value")
	}
}

func TestThumbnailPreservesAspect(t *testing.T) {
	cache := NewCache()
	path := writeTestPNG(t, 100, 50)

	thumb, err := cache.Thumbnail(path, 40, 40)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("thumbnail bounds = %v, want 40x20", b)
	}
}

func TestEvict(t *testing.T) {
	cache := NewCache()
	path := writeTestPNG(t, 8, 8)

	if _, err := cache.Load(path); err != nil {
		t.Fatal(err)
	}
	cache.Evict(path)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(path); err == nil {
		t.Error("evicted entry still served")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("missing file should error")
	}
}
