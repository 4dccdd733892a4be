package render

import (
	goimage "image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"box-annotator/pkg/geometry"
)

var (
	backgroundColor = color.RGBA{R: 24, G: 24, B: 24, A: 255}
	draftColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Rasterize renders a drawing list onto out. The source image is scaled into
// its transformed placement; boxes and the draft rectangle are drawn on top.
func Rasterize(out *goimage.RGBA, img goimage.Image, dl DrawList) {
	fill(out, backgroundColor)

	if img != nil && dl.Image.Width > 0 && dl.Image.Height > 0 {
		dst := goimage.Rect(
			int(dl.Image.X), int(dl.Image.Y),
			int(dl.Image.X+dl.Image.Width), int(dl.Image.Y+dl.Image.Height),
		)
		xdraw.ApproxBiLinear.Scale(out, dst, img, img.Bounds(), xdraw.Src, nil)
	}

	for _, box := range dl.Boxes {
		drawRectOutline(out, box.Rect, box.Style.Outline, box.Style.Thickness)
		if box.Style.ShowConfidence {
			drawConfidenceBar(out, box.Rect, box.Style.Outline, box.Confidence)
		}
		if box.Label != "" {
			drawBoxLabel(out, box.Label, box.Rect, box.Style.Outline)
		}
	}

	if dl.Draft != nil {
		drawRectOutline(out, *dl.Draft, draftColor, 1)
	}
}

func fill(out *goimage.RGBA, c color.RGBA) {
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetRGBA(x, y, c)
		}
	}
}

// drawRectOutline draws an axis-aligned rectangle outline with the given
// pixel thickness, clipped to the output bounds.
func drawRectOutline(out *goimage.RGBA, r geometry.Rect, col color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	x1, y1 := int(r.X), int(r.Y)
	x2, y2 := int(r.X+r.Width), int(r.Y+r.Height)
	bounds := out.Bounds()

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setClipped(out, bounds, x, y1+t, col)
			setClipped(out, bounds, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setClipped(out, bounds, x1+t, y, col)
			setClipped(out, bounds, x2-t, y, col)
		}
	}
}

// drawConfidenceBar draws a filled bar along the box's top edge whose length
// is proportional to the model confidence.
func drawConfidenceBar(out *goimage.RGBA, r geometry.Rect, col color.RGBA, confidence float64) {
	confidence = geometry.Clamp01(confidence)
	x1, y1 := int(r.X), int(r.Y)
	length := int(r.Width * confidence)
	bounds := out.Bounds()

	for t := 1; t <= 3; t++ {
		for x := x1; x <= x1+length; x++ {
			setClipped(out, bounds, x, y1+t, col)
		}
	}
}

// drawBoxLabel draws the label just above the box, inside it when the box
// touches the top of the output.
func drawBoxLabel(out *goimage.RGBA, label string, r geometry.Rect, col color.RGBA) {
	const scale = 2
	textHeight := 5 * scale
	x := int(r.X)
	y := int(r.Y) - textHeight - 2
	if y < out.Bounds().Min.Y {
		y = int(r.Y) + 5
	}
	drawText(out, label, x, y, col, scale)
}

func setClipped(out *goimage.RGBA, bounds goimage.Rectangle, x, y int, col color.RGBA) {
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		out.SetRGBA(x, y, col)
	}
}
