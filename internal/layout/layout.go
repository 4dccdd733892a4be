// Package layout maps between normalized annotation space and the letterboxed
// image rectangle inside a container.
package layout

import (
	"math"

	"box-annotator/pkg/geometry"
)

// DefaultMinBoxSize is the minimum normalized width/height a drawn box must
// reach to be kept.
const DefaultMinBoxSize = 0.01

// Mapper converts between normalized box coordinates and container
// coordinates for one (container, image) size pair. The image is fit inside
// the container preserving aspect ratio and centered.
type Mapper struct {
	container geometry.Size
	display   geometry.Size
	offset    geometry.Point2D
}

// NewMapper computes the contain-fit placement of an image inside a
// container. Degenerate sizes yield a zero mapper whose conversions collapse
// to the container origin.
func NewMapper(container, img geometry.Size) Mapper {
	m := Mapper{container: container}
	if container.IsEmpty() || img.IsEmpty() {
		return m
	}
	scale := math.Min(container.Width/img.Width, container.Height/img.Height)
	m.display = geometry.NewSize(img.Width*scale, img.Height*scale)
	m.offset = geometry.Point2D{
		X: (container.Width - m.display.Width) / 2,
		Y: (container.Height - m.display.Height) / 2,
	}
	return m
}

// Fit returns the displayed image rectangle in container coordinates.
func (m Mapper) Fit() geometry.Rect {
	return geometry.Rect{
		X:      m.offset.X,
		Y:      m.offset.Y,
		Width:  m.display.Width,
		Height: m.display.Height,
	}
}

// Normalize converts a container point to normalized image coordinates,
// clamped to [0,1] on both axes.
func (m Mapper) Normalize(p geometry.Point2D) geometry.Point2D {
	if m.display.IsEmpty() {
		return geometry.Point2D{}
	}
	return geometry.Point2D{
		X: geometry.Clamp01((p.X - m.offset.X) / m.display.Width),
		Y: geometry.Clamp01((p.Y - m.offset.Y) / m.display.Height),
	}
}

// Denormalize converts a normalized point back to container coordinates.
func (m Mapper) Denormalize(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: m.offset.X + p.X*m.display.Width,
		Y: m.offset.Y + p.Y*m.display.Height,
	}
}

// ToContainer converts a normalized rectangle to container coordinates.
func (m Mapper) ToContainer(r geometry.Rect) geometry.Rect {
	tl := m.Denormalize(r.TopLeft())
	return geometry.Rect{
		X:      tl.X,
		Y:      tl.Y,
		Width:  r.Width * m.display.Width,
		Height: r.Height * m.display.Height,
	}
}

// FinalizeDrag turns a completed drag, given in container coordinates, into a
// normalized rectangle. Corners may arrive in any order. Drags below minSize
// on either axis are discarded: the second return is false and no rectangle
// is produced. A non-positive minSize falls back to DefaultMinBoxSize.
func (m Mapper) FinalizeDrag(start, end geometry.Point2D, minSize float64) (geometry.Rect, bool) {
	if minSize <= 0 {
		minSize = DefaultMinBoxSize
	}
	r := geometry.RectFromCorners(m.Normalize(start), m.Normalize(end))
	if r.Width < minSize || r.Height < minSize {
		return geometry.Rect{}, false
	}
	return r, true
}
