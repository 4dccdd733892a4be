package annotation

import (
	"time"
)

// AnnotatedImage is one dataset entry as stored by the backend: the saved
// boxes plus, when models have run, a prediction list per model and an
// uncertainty score used to prioritize review.
type AnnotatedImage struct {
	Filepath           string                   `json:"filepath"`
	UploadedDate       time.Time                `json:"uploaded_date"`
	Boxes              []BoundingBox            `json:"boxes"`
	PredictionsByModel map[string][]BoundingBox `json:"predictions_by_model,omitempty"`
	FullyAnnotated     bool                     `json:"fully_annotated"`
	UncertaintyScore   *float64                 `json:"uncertainty_score,omitempty"`
}

// ID returns the image identity used for staleness checks. The backend keys
// everything by the uploaded filename.
func (a AnnotatedImage) ID() string {
	return a.Filepath
}

// Uncertainty returns the review-priority score, or 0 when no model has
// scored the image yet.
func (a AnnotatedImage) Uncertainty() float64 {
	if a.UncertaintyScore == nil {
		return 0
	}
	return *a.UncertaintyScore
}
