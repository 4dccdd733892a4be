package annotation

import (
	"sort"
)

// Session holds the working set of boxes for the image currently on the
// canvas. It is owned by the UI thread; mutation replaces box values rather
// than editing them in place, and Boxes returns a fresh slice, so a render
// pass never walks a list that is being changed under it.
type Session struct {
	imageID string
	boxes   []BoundingBox
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Load resets the session for an image: stored annotations first, then each
// model's predictions in model-id order. Predictions arrive unverified.
func (s *Session) Load(img AnnotatedImage) {
	s.imageID = img.ID()
	s.boxes = append([]BoundingBox(nil), img.Boxes...)

	modelIDs := make([]string, 0, len(img.PredictionsByModel))
	for id := range img.PredictionsByModel {
		modelIDs = append(modelIDs, id)
	}
	sort.Strings(modelIDs)
	for _, id := range modelIDs {
		for _, b := range img.PredictionsByModel[id] {
			s.boxes = append(s.boxes, normalizeProposal(b, id))
		}
	}
}

// normalizeProposal stamps a wire prediction with trustworthy provenance: a
// proposal is never verified, its model id comes from the map key, and it is
// always a model source even when the backend omitted one. Without this a
// bare record would render as a verified human box and MergePredictions could
// never replace it.
func normalizeProposal(b BoundingBox, modelID string) BoundingBox {
	b.ModelID = modelID
	b.Verified = false
	if !b.Source.IsAI() {
		b.Source = OriginAIPrimary
	}
	return b
}

// ImageID returns the identity of the image this session belongs to.
func (s *Session) ImageID() string {
	return s.imageID
}

// Len returns the number of boxes in the working set.
func (s *Session) Len() int {
	return len(s.boxes)
}

// Boxes returns a snapshot copy of the working set.
func (s *Session) Boxes() []BoundingBox {
	return append([]BoundingBox(nil), s.boxes...)
}

// IndexOf returns the current position of a box value, -1 when absent.
// Boxes are copy-on-write values, so equality identifies one box reliably
// even after the list has been reordered around it.
func (s *Session) IndexOf(box BoundingBox) int {
	for i, b := range s.boxes {
		if b == box {
			return i
		}
	}
	return -1
}

// AddHuman appends an operator-drawn box.
func (s *Session) AddHuman(box BoundingBox) {
	s.boxes = append(s.boxes, box)
}

// Verify marks the box at index as verified, replacing the value. Already
// verified boxes, human boxes, and out-of-range indices are no-ops.
func (s *Session) Verify(index int) {
	if index < 0 || index >= len(s.boxes) {
		return
	}
	if s.boxes[index].Verified {
		return
	}
	s.boxes[index] = s.boxes[index].WithVerified()
}

// Reject removes the box at index. Permitted for any box; out-of-range
// indices are a no-op.
func (s *Session) Reject(index int) {
	if index < 0 || index >= len(s.boxes) {
		return
	}
	s.boxes = append(s.boxes[:index], s.boxes[index+1:]...)
}

// Relabel replaces the label of the box at index.
func (s *Session) Relabel(index int, label string) {
	if index < 0 || index >= len(s.boxes) {
		return
	}
	s.boxes[index] = s.boxes[index].WithLabel(label)
}

// ReplaceAll swaps the entire working set, keeping the current image.
func (s *Session) ReplaceAll(boxes []BoundingBox) {
	s.boxes = append([]BoundingBox(nil), boxes...)
}

// MergePredictions replaces the boxes proposed by one model with a fresh
// prediction list, keeping every box from other sources. Verified boxes from
// the same model survive: the operator's review is not thrown away because
// the model re-ran.
func (s *Session) MergePredictions(modelID string, predictions []BoundingBox) {
	kept := s.boxes[:0:0]
	for _, b := range s.boxes {
		if b.Source.IsAI() && b.ModelID == modelID && !b.Verified {
			continue
		}
		kept = append(kept, b)
	}
	s.boxes = append(kept, predictions...)
}
