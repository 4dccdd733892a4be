// Package render builds the per-frame drawing list for the annotation canvas
// and rasterizes it. It owns no state: every frame is a pure function of the
// image placement, the view transform, and the box snapshot.
package render

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"box-annotator/internal/annotation"
	"box-annotator/internal/layout"
	"box-annotator/internal/viewport"
	"box-annotator/pkg/geometry"
)

// Style is the visual treatment of one box outline.
type Style struct {
	Outline        color.RGBA
	Thickness      int
	ShowConfidence bool
}

// The palette is derived in HSV so the three treatments stay distinguishable
// at a glance: operator work in green, unreviewed proposals in amber, and
// confirmed proposals in blue.
var (
	styleHuman        = Style{Outline: hsv(130, 0.75, 0.80), Thickness: 2}
	styleAIUnverified = Style{Outline: hsv(42, 0.90, 0.95), Thickness: 1, ShowConfidence: true}
	styleAIVerified   = Style{Outline: hsv(210, 0.80, 0.90), Thickness: 2, ShowConfidence: true}
)

func hsv(h, s, v float64) color.RGBA {
	r, g, b := colorful.Hsv(h, s, v).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// StyleFor selects the style purely from the box provenance and verification
// state.
func StyleFor(b annotation.BoundingBox) Style {
	if !b.Source.IsAI() {
		return styleHuman
	}
	if b.Verified {
		return styleAIVerified
	}
	return styleAIUnverified
}

// BoxDraw is one box resolved to screen coordinates with its style.
type BoxDraw struct {
	Rect       geometry.Rect
	Style      Style
	Label      string
	Confidence float64
}

// Draft is the in-progress drag rectangle in screen coordinates.
type Draft struct {
	Start   geometry.Point2D
	Current geometry.Point2D
}

// DrawList is everything one frame needs: the transformed image placement,
// the styled boxes, and the live draft rectangle if a draw is in progress.
type DrawList struct {
	Image geometry.Rect
	Boxes []BoxDraw
	Draft *geometry.Rect
}

// Build computes the frame drawing list. Box rectangles go normalized →
// container (contain-fit) → screen (view transform); the draft stays in raw
// screen space since it tracks the pointer directly.
func Build(m layout.Mapper, v *viewport.View, boxes []annotation.BoundingBox, draft *Draft) DrawList {
	dl := DrawList{Image: projectRect(m.Fit(), v)}

	dl.Boxes = make([]BoxDraw, 0, len(boxes))
	for _, b := range boxes {
		dl.Boxes = append(dl.Boxes, BoxDraw{
			Rect:       projectRect(m.ToContainer(b.Rect), v),
			Style:      StyleFor(b),
			Label:      b.Label,
			Confidence: b.Confidence,
		})
	}

	if draft != nil {
		r := geometry.RectFromCorners(draft.Start, draft.Current)
		dl.Draft = &r
	}
	return dl
}

// projectRect maps an axis-aligned container rectangle through the view
// transform. Pan and uniform zoom keep it axis-aligned, so mapping the two
// corners is exact.
func projectRect(r geometry.Rect, v *viewport.View) geometry.Rect {
	return geometry.RectFromCorners(v.ToScreen(r.TopLeft()), v.ToScreen(r.BottomRight()))
}
