// Package viewport owns the pan/zoom view transform for the annotation canvas.
package viewport

import (
	"gonum.org/v1/gonum/mat"

	"box-annotator/pkg/geometry"
)

// Default zoom limits, used when the caller passes no explicit bounds.
const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 10.0
)

// View maps base (untransformed container) coordinates to screen coordinates.
// The inverse is cached and keyed by a version counter bumped on every
// mutation, so stale inverses are never served.
type View struct {
	matrix   geometry.AffineTransform
	version  uint64
	inv      inverseCache
	minScale float64
	maxScale float64
}

// inverseCache holds the inverse computed for a specific matrix version.
type inverseCache struct {
	version    uint64
	computed   bool
	invertible bool
	transform  geometry.AffineTransform
}

// New creates a view at identity with the given zoom bounds.
// Non-positive or inverted bounds fall back to the defaults.
func New(minScale, maxScale float64) *View {
	if minScale <= 0 || maxScale <= 0 || minScale > maxScale {
		minScale = DefaultMinScale
		maxScale = DefaultMaxScale
	}
	return &View{
		matrix:   geometry.Identity(),
		minScale: minScale,
		maxScale: maxScale,
	}
}

// Matrix returns the current view transform.
func (v *View) Matrix() geometry.AffineTransform {
	return v.matrix
}

// Scale returns the current zoom factor.
func (v *View) Scale() float64 {
	return v.matrix.ScaleX()
}

// Reset restores the identity transform.
func (v *View) Reset() {
	v.matrix = geometry.Identity()
	v.version++
}

// ToScreen maps a base point to screen coordinates.
func (v *View) ToScreen(p geometry.Point2D) geometry.Point2D {
	return v.matrix.Apply(p)
}

// ToBase maps a screen point back to base coordinates. If the matrix is
// singular the point is returned unchanged; a momentarily degenerate
// transform must never break the interaction.
func (v *View) ToBase(p geometry.Point2D) geometry.Point2D {
	inv, ok := v.inverse()
	if !ok {
		return p
	}
	return inv.Apply(p)
}

// Pan translates the view by a screen-space delta. The translation is
// composed after the existing transform, so one pixel of pointer motion is
// one pixel of image motion at every zoom level.
func (v *View) Pan(delta geometry.Point2D) {
	v.matrix = geometry.Translation(delta.X, delta.Y).Compose(v.matrix)
	v.version++
}

// ZoomAt scales the view about a screen-space focal point. The requested
// factor is re-derived from the clamped target scale, so repeated calls under
// fast wheel input settle exactly on the bound instead of overshooting it.
func (v *View) ZoomAt(focal geometry.Point2D, factor float64) {
	if factor <= 0 {
		return
	}
	current := v.Scale()
	if current == 0 {
		return
	}
	target := current * factor
	if target < v.minScale {
		target = v.minScale
	}
	if target > v.maxScale {
		target = v.maxScale
	}
	effective := target / current
	if effective == 1 {
		return
	}

	// Translate the focal point to the origin, scale, translate back.
	step := geometry.Translation(focal.X, focal.Y).
		Compose(geometry.Scaling(effective, effective)).
		Compose(geometry.Translation(-focal.X, -focal.Y))
	v.matrix = step.Compose(v.matrix)
	v.version++
}

// inverse returns the cached inverse, recomputing it when the matrix has
// changed since the cache entry was filled.
func (v *View) inverse() (geometry.AffineTransform, bool) {
	if v.inv.computed && v.inv.version == v.version {
		return v.inv.transform, v.inv.invertible
	}

	v.inv = inverseCache{version: v.version, computed: true}

	m := v.matrix
	dense := mat.NewDense(3, 3, []float64{
		m.A, m.B, m.TX,
		m.C, m.D, m.TY,
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(dense); err != nil {
		return geometry.AffineTransform{}, false
	}

	v.inv.invertible = true
	v.inv.transform = geometry.AffineTransform{
		A: inv.At(0, 0), B: inv.At(0, 1), TX: inv.At(0, 2),
		C: inv.At(1, 0), D: inv.At(1, 1), TY: inv.At(1, 2),
	}
	return v.inv.transform, true
}
