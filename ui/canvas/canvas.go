// Package canvas provides the annotation canvas: an image display with pan,
// zoom, and rubber-band box drawing.
package canvas

import (
	"image"
	"image/draw"
	"sync"

	"box-annotator/internal/annotation"
	"box-annotator/internal/gesture"
	"box-annotator/internal/layout"
	"box-annotator/internal/render"
	"box-annotator/internal/viewport"
	"box-annotator/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// Config carries the tunable canvas parameters.
type Config struct {
	MinScale   float64
	MaxScale   float64
	MinBoxSize float64
	ZoomStep   float64
}

// AnnotationCanvas displays the active image with its boxes and turns raw
// pointer input into annotation gestures. The primary button draws a box,
// the secondary and middle buttons pan, and the wheel zooms around the
// cursor.
type AnnotationCanvas struct {
	widget.BaseWidget

	mu     sync.Mutex
	img    image.Image
	boxes  []annotation.BoundingBox
	view   *viewport.View
	mapper layout.Mapper
	fitted bool
	router *gesture.Router

	raster     *fynecanvas.Raster
	lastOutput *image.RGBA
	minBoxSize float64

	// Callbacks
	onBoxDrawn   func(r geometry.Rect)
	onZoomChange func(scale float64)
}

// NewAnnotationCanvas creates an empty canvas. The image is supplied later
// via SetImage.
func NewAnnotationCanvas(cfg Config) *AnnotationCanvas {
	if cfg.MinBoxSize <= 0 {
		cfg.MinBoxSize = layout.DefaultMinBoxSize
	}
	ac := &AnnotationCanvas{
		view:       viewport.New(cfg.MinScale, cfg.MaxScale),
		minBoxSize: cfg.MinBoxSize,
	}
	ac.router = gesture.NewRouter(gesture.Callbacks{
		OnDrawUpdate: func(_, _ geometry.Point2D) { ac.Refresh() },
		OnDrawEnd:    ac.finishDraw,
		OnPan: func(delta geometry.Point2D) {
			ac.mu.Lock()
			ac.view.Pan(delta)
			ac.mu.Unlock()
			ac.Refresh()
		},
		OnZoom: func(focal geometry.Point2D, factor float64) {
			ac.mu.Lock()
			ac.view.ZoomAt(focal, factor)
			scale := ac.view.Scale()
			ac.mu.Unlock()
			if ac.onZoomChange != nil {
				ac.onZoomChange(scale)
			}
			ac.Refresh()
		},
	})
	if cfg.ZoomStep > 0 {
		ac.router.SetZoomStep(cfg.ZoomStep)
	}

	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(fyne.NewSize(400, 300))
	ac.ExtendBaseWidget(ac)
	return ac
}

// SetImage replaces the displayed image and its boxes, resetting the view
// and refitting the letterbox placement.
func (ac *AnnotationCanvas) SetImage(img image.Image, boxes []annotation.BoundingBox) {
	ac.mu.Lock()
	ac.img = img
	ac.boxes = boxes
	ac.view.Reset()
	ac.refitLocked()
	ac.mu.Unlock()
	ac.Refresh()
}

// SetBoxes replaces the box list without disturbing the view. Used after
// verify, reject, and prediction merges.
func (ac *AnnotationCanvas) SetBoxes(boxes []annotation.BoundingBox) {
	ac.mu.Lock()
	ac.boxes = boxes
	ac.mu.Unlock()
	ac.Refresh()
}

// OnBoxDrawn registers the callback for finalized boxes, delivered as a
// normalized rectangle.
func (ac *AnnotationCanvas) OnBoxDrawn(fn func(r geometry.Rect)) {
	ac.onBoxDrawn = fn
}

// OnZoomChange registers a callback fired after every zoom change.
func (ac *AnnotationCanvas) OnZoomChange(fn func(scale float64)) {
	ac.onZoomChange = fn
}

// ResetView restores the identity transform (fit-to-window framing).
func (ac *AnnotationCanvas) ResetView() {
	ac.mu.Lock()
	ac.view.Reset()
	ac.mu.Unlock()
	if ac.onZoomChange != nil {
		ac.onZoomChange(1.0)
	}
	ac.Refresh()
}

// ZoomIn zooms one wheel step around the canvas center.
func (ac *AnnotationCanvas) ZoomIn() { ac.zoomCenter(ac.router.ZoomStep()) }

// ZoomOut zooms out one wheel step around the canvas center.
func (ac *AnnotationCanvas) ZoomOut() { ac.zoomCenter(1 / ac.router.ZoomStep()) }

func (ac *AnnotationCanvas) zoomCenter(factor float64) {
	size := ac.Size()
	focal := geometry.NewPoint2D(float64(size.Width)/2, float64(size.Height)/2)
	ac.mu.Lock()
	ac.view.ZoomAt(focal, factor)
	scale := ac.view.Scale()
	ac.mu.Unlock()
	if ac.onZoomChange != nil {
		ac.onZoomChange(scale)
	}
	ac.Refresh()
}

// Scale returns the current view scale factor.
func (ac *AnnotationCanvas) Scale() float64 {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.view.Scale()
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ac.raster)
}

// Resize refits the letterbox placement when the widget changes size.
func (ac *AnnotationCanvas) Resize(size fyne.Size) {
	ac.BaseWidget.Resize(size)
	ac.mu.Lock()
	ac.refitLocked()
	ac.mu.Unlock()
	ac.Refresh()
}

// refitLocked rebuilds the mapper for the current widget and image sizes.
// Caller holds mu.
func (ac *AnnotationCanvas) refitLocked() {
	if ac.img == nil {
		ac.fitted = false
		return
	}
	size := ac.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return
	}
	b := ac.img.Bounds()
	ac.mapper = layout.NewMapper(
		geometry.NewSize(float64(size.Width), float64(size.Height)),
		geometry.NewSize(float64(b.Dx()), float64(b.Dy())),
	)
	ac.fitted = true
}

// MouseDown implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	ac.router.MouseDown(eventPoint(ev.PointEvent), mapButton(ev.Button))
}

// MouseUp implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	ac.router.MouseUp(eventPoint(ev.PointEvent))
}

// MouseMoved implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseMoved(ev *desktop.MouseEvent) {
	ac.router.MouseMove(eventPoint(ev.PointEvent))
}

// MouseIn implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseOut cancels any gesture in flight; a box must not finalize off-canvas.
func (ac *AnnotationCanvas) MouseOut() {
	ac.router.Cancel()
	ac.Refresh()
}

// Scrolled implements fyne.Scrollable; the wheel zooms around the cursor.
func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	ac.router.Wheel(eventPoint(ev.PointEvent), float64(ev.Scrolled.DY))
}

func (ac *AnnotationCanvas) finishDraw(start, end geometry.Point2D) {
	ac.mu.Lock()
	fitted := ac.fitted
	mapper := ac.mapper
	// Gesture corners are screen points; undo the view transform first.
	baseStart := ac.view.ToBase(start)
	baseEnd := ac.view.ToBase(end)
	ac.mu.Unlock()

	if !fitted {
		return
	}
	rect, ok := mapper.FinalizeDrag(baseStart, baseEnd, ac.minBoxSize)
	if !ok {
		ac.Refresh()
		return
	}
	if ac.onBoxDrawn != nil {
		ac.onBoxDrawn(rect)
	}
	ac.Refresh()
}

// draw renders the canvas into the raster buffer.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.lastOutput == nil || ac.lastOutput.Bounds().Dx() != w || ac.lastOutput.Bounds().Dy() != h {
		ac.lastOutput = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	out := ac.lastOutput

	if ac.img == nil || !ac.fitted {
		draw.Draw(out, out.Bounds(), image.Black, image.Point{}, draw.Src)
		return out
	}

	var draft *render.Draft
	if start, current, ok := ac.router.Draft(); ok {
		draft = &render.Draft{Start: start, Current: current}
	}
	dl := render.Build(ac.mapper, ac.view, ac.boxes, draft)
	render.Rasterize(out, ac.img, dl)
	return out
}

func mapButton(b desktop.MouseButton) gesture.Button {
	switch b {
	case desktop.MouseButtonSecondary:
		return gesture.ButtonSecondary
	case desktop.MouseButtonTertiary:
		return gesture.ButtonMiddle
	default:
		return gesture.ButtonPrimary
	}
}

func eventPoint(ev fyne.PointEvent) geometry.Point2D {
	return geometry.NewPoint2D(float64(ev.Position.X), float64(ev.Position.Y))
}
