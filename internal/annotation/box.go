// Package annotation holds the bounding-box data model and the per-image
// working session that merges human and model-proposed boxes.
package annotation

import (
	"encoding/json"
	"fmt"

	"box-annotator/pkg/geometry"
)

// Origin identifies who produced a bounding box.
type Origin int

const (
	OriginHuman Origin = iota
	OriginAIPrimary
	OriginAISecondary
)

var originNames = map[Origin]string{
	OriginHuman:       "human",
	OriginAIPrimary:   "ai_primary",
	OriginAISecondary: "ai_secondary",
}

// String returns the wire name of the origin.
func (o Origin) String() string {
	if s, ok := originNames[o]; ok {
		return s
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// IsAI reports whether the origin is a model rather than the operator.
func (o Origin) IsAI() bool {
	return o == OriginAIPrimary || o == OriginAISecondary
}

// MarshalJSON encodes the origin as its wire name.
func (o Origin) MarshalJSON() ([]byte, error) {
	s, ok := originNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown origin %d", int(o))
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes an origin from its wire name. A missing or empty
// source means a stored human annotation; the legacy name "ai" maps to the
// primary model.
func (o *Origin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "", "human":
		*o = OriginHuman
	case "ai", "ai_primary":
		*o = OriginAIPrimary
	case "ai_secondary":
		*o = OriginAISecondary
	default:
		return fmt.Errorf("unknown box source %q", s)
	}
	return nil
}

// BoundingBox is a normalized rectangle attached to one image. Values are
// immutable: every change goes through a With* copy, never in-place mutation,
// so the renderer can detect changes by value comparison.
type BoundingBox struct {
	geometry.Rect

	Label      string  `json:"label"`
	Source     Origin  `json:"source"`
	ModelID    string  `json:"model_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// NewHumanBox creates an operator-drawn box. Human boxes are trusted as
// drawn: confidence 1, verified immediately. The rectangle is clamped into
// the unit square.
func NewHumanBox(r geometry.Rect, label string) BoundingBox {
	return BoundingBox{
		Rect:       clampRect(r),
		Label:      label,
		Source:     OriginHuman,
		Confidence: 1.0,
		Verified:   true,
	}
}

// NewPredictedBox creates a model-proposed box. Predicted boxes start
// unverified and keep the model's confidence, clamped to [0,1].
func NewPredictedBox(r geometry.Rect, label string, origin Origin, modelID string, confidence float64) BoundingBox {
	return BoundingBox{
		Rect:       clampRect(r),
		Label:      label,
		Source:     origin,
		ModelID:    modelID,
		Confidence: geometry.Clamp01(confidence),
	}
}

// UnmarshalJSON decodes a box and forces it into the unit square. Stored
// records and prediction payloads go through here, so an out-of-range box
// never enters a session regardless of which endpoint produced it.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	type plain BoundingBox
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Rect = clampRect(p.Rect)
	p.Confidence = geometry.Clamp01(p.Confidence)
	*b = BoundingBox(p)
	return nil
}

// WithLabel returns a copy with the label replaced.
func (b BoundingBox) WithLabel(label string) BoundingBox {
	b.Label = label
	return b
}

// WithVerified returns a copy marked verified. Confidence is untouched.
func (b BoundingBox) WithVerified() BoundingBox {
	b.Verified = true
	return b
}

// clampRect forces a rectangle into the unit square. The position clamps
// first and the size clamps to the remaining space, so a box never crosses
// the far image edge.
func clampRect(r geometry.Rect) geometry.Rect {
	x := geometry.Clamp01(r.X)
	y := geometry.Clamp01(r.Y)
	w := r.Width
	h := r.Height
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if x+w > 1 {
		w = 1 - x
	}
	if y+h > 1 {
		h = 1 - y
	}
	return geometry.Rect{X: x, Y: y, Width: w, Height: h}
}
