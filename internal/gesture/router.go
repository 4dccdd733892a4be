// Package gesture disambiguates a single pointer stream into mutually
// exclusive draw, pan, and zoom gestures.
package gesture

import (
	"box-annotator/pkg/geometry"
)

// DefaultZoomStep is the zoom factor applied per wheel notch.
const DefaultZoomStep = 1.25

// State is the router's current gesture.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StatePanning
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StatePanning:
		return "panning"
	}
	return "unknown"
}

// Button identifies the pointer button that started a gesture.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Callbacks receive the routed gesture events. Nil callbacks are skipped.
type Callbacks struct {
	OnDrawStart  func(start geometry.Point2D)
	OnDrawUpdate func(start, current geometry.Point2D)
	OnDrawEnd    func(start, end geometry.Point2D)
	OnPan        func(delta geometry.Point2D)
	OnZoom       func(focal geometry.Point2D, factor float64)
}

// Router is a small state machine over raw pointer events. Button identity is
// the sole disambiguator between drawing and panning; it is decided once at
// gesture start and held until release, so a drag never switches semantics
// mid-gesture.
type Router struct {
	state    State
	cb       Callbacks
	zoomStep float64

	startPoint   geometry.Point2D
	currentPoint geometry.Point2D
	lastPoint    geometry.Point2D
}

// NewRouter creates an idle router with the default wheel zoom step.
func NewRouter(cb Callbacks) *Router {
	return &Router{cb: cb, zoomStep: DefaultZoomStep}
}

// SetZoomStep overrides the per-notch wheel zoom factor. Values <= 1 are
// ignored.
func (r *Router) SetZoomStep(step float64) {
	if step > 1 {
		r.zoomStep = step
	}
}

// State returns the current gesture state.
func (r *Router) State() State {
	return r.state
}

// ZoomStep returns the per-notch wheel zoom factor.
func (r *Router) ZoomStep() float64 {
	return r.zoomStep
}

// Draft returns the in-progress draw rectangle corners while drawing, for
// live visual feedback.
func (r *Router) Draft() (start, current geometry.Point2D, ok bool) {
	if r.state != StateDrawing {
		return geometry.Point2D{}, geometry.Point2D{}, false
	}
	return r.startPoint, r.currentPoint, true
}

// MouseDown starts a gesture. Presses while a gesture is in progress are
// dropped: the pointer channel is already owned.
func (r *Router) MouseDown(p geometry.Point2D, button Button) {
	if r.state != StateIdle {
		return
	}
	switch button {
	case ButtonPrimary:
		r.state = StateDrawing
		r.startPoint = p
		r.currentPoint = p
		if r.cb.OnDrawStart != nil {
			r.cb.OnDrawStart(p)
		}
	case ButtonSecondary, ButtonMiddle:
		r.state = StatePanning
		r.lastPoint = p
	}
}

// MouseMove advances the active gesture. Idle moves are ignored.
func (r *Router) MouseMove(p geometry.Point2D) {
	switch r.state {
	case StateDrawing:
		r.currentPoint = p
		if r.cb.OnDrawUpdate != nil {
			r.cb.OnDrawUpdate(r.startPoint, p)
		}
	case StatePanning:
		delta := p.Sub(r.lastPoint)
		r.lastPoint = p
		if r.cb.OnPan != nil {
			r.cb.OnPan(delta)
		}
	}
}

// MouseUp ends the active gesture. A finished draw emits its corner pair for
// finalization; a finished pan just returns to idle.
func (r *Router) MouseUp(p geometry.Point2D) {
	switch r.state {
	case StateDrawing:
		r.currentPoint = p
		start, end := r.startPoint, r.currentPoint
		r.state = StateIdle
		if r.cb.OnDrawEnd != nil {
			r.cb.OnDrawEnd(start, end)
		}
	case StatePanning:
		r.state = StateIdle
	}
}

// Wheel emits a zoom at the cursor without touching the gesture state, so
// zooming never interrupts an in-progress draw or pan.
func (r *Router) Wheel(p geometry.Point2D, deltaY float64) {
	if deltaY == 0 || r.cb.OnZoom == nil {
		return
	}
	factor := r.zoomStep
	if deltaY < 0 {
		factor = 1 / r.zoomStep
	}
	r.cb.OnZoom(p, factor)
}

// Cancel aborts any in-progress gesture without emitting a finalize. Used
// when the pointer leaves the canvas surface.
func (r *Router) Cancel() {
	r.state = StateIdle
}
