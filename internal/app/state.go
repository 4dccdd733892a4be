// Package app owns the application state: the image list, the active
// annotation session, tag selection, and the bridge to the backend. UI
// widgets subscribe to events instead of reaching into each other.
package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"box-annotator/internal/annotation"
	"box-annotator/internal/backend"
	"box-annotator/internal/tags"
	"box-annotator/pkg/geometry"
)

// EventType identifies application events.
type EventType int

const (
	EventImagesLoaded EventType = iota
	EventSessionChanged
	EventTagChanged
	EventSaveResult
	EventTrainingStarted
	EventNotice
)

// EventListener is called when an event occurs.
type EventListener func(data any)

// Notice is a non-blocking user-facing message, typically a transient
// backend failure. Session state is never rolled back alongside one.
type Notice struct {
	Level   slog.Level
	Message string
}

// Backend is the slice of the annotation service the controller needs.
type Backend interface {
	FetchImages(ctx context.Context) ([]annotation.AnnotatedImage, error)
	SaveAnnotations(ctx context.Context, imageID string, boxes []annotation.BoundingBox, fullyAnnotated bool) error
	Predict(ctx context.Context, imageID, modelID string) ([]annotation.BoundingBox, error)
	StartTraining(ctx context.Context) (backend.TrainResult, error)
}

// State holds the working state for the annotator. It is safe for concurrent
// use: every read and mutation takes the state lock. Backend calls run in
// goroutines and hand their results back through the dispatch function; a
// host whose toolkit requires event-loop marshaling supplies one, and a nil
// dispatch runs result handlers inline on the background goroutine. Each
// async result carries the image id it was requested for and is dropped when
// the active image has moved on.
type State struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	backend  Backend
	dispatch func(func())

	images  []annotation.AnnotatedImage
	session *annotation.Session
	ranker  *tags.Ranker

	listeners map[EventType][]EventListener
}

// NewState creates an empty application state. A nil dispatch runs result
// handlers inline on the calling goroutine.
func NewState(logger *slog.Logger, be Backend, dispatch func(func())) *State {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &State{
		logger:    logger,
		backend:   be,
		dispatch:  dispatch,
		session:   annotation.NewSession(),
		ranker:    tags.NewRanker(),
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data any) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

func (s *State) notify(level slog.Level, msg string) {
	s.Emit(EventNotice, Notice{Level: level, Message: msg})
}

// LoadImages fetches the dataset in the background. On success the image
// list is replaced, ordered by uncertainty score so the least certain images
// surface first, and the tag frequency table is rebuilt.
func (s *State) LoadImages(ctx context.Context) {
	go func() {
		images, err := s.backend.FetchImages(ctx)
		s.dispatch(func() {
			if err != nil {
				s.logger.Error("image fetch failed", "error", err)
				s.notify(slog.LevelError, "Could not load images: "+err.Error())
				return
			}
			s.mu.Lock()
			s.images = images
			sort.SliceStable(s.images, func(i, j int) bool {
				return s.images[i].Uncertainty() > s.images[j].Uncertainty()
			})
			s.rebuildRankerLocked()
			s.mu.Unlock()
			s.Emit(EventImagesLoaded, len(images))
		})
	}()
}

// rebuildRankerLocked rebuilds the tag frequency table from every labeled
// box across the dataset. Caller holds mu.
func (s *State) rebuildRankerLocked() {
	var labels []string
	for _, img := range s.images {
		for _, b := range img.Boxes {
			labels = append(labels, b.Label)
		}
	}
	s.ranker.Build(labels)
}

// Images returns a snapshot of the image list in review order.
func (s *State) Images() []annotation.AnnotatedImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]annotation.AnnotatedImage(nil), s.images...)
}

// SelectImage makes an image the active session. Unknown ids produce a
// notice and leave the session untouched.
func (s *State) SelectImage(imageID string) {
	s.mu.Lock()
	img, ok := s.findLocked(imageID)
	if !ok {
		s.mu.Unlock()
		s.notify(slog.LevelWarn, "Unknown image: "+imageID)
		return
	}
	s.session.Load(img)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, imageID)
}

func (s *State) findLocked(imageID string) (annotation.AnnotatedImage, bool) {
	for _, img := range s.images {
		if img.ID() == imageID {
			return img, true
		}
	}
	return annotation.AnnotatedImage{}, false
}

// ActiveImageID returns the id of the image in the session, "" when none.
func (s *State) ActiveImageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.ImageID()
}

// Boxes returns a snapshot of the active session's working set.
func (s *State) Boxes() []annotation.BoundingBox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Boxes()
}

// AddDrawnBox turns a finalized normalized rectangle into a human box,
// labeled with the selected tag when one is active, and appends it. The
// created box is returned so the host can prompt for a label when it came
// back unlabeled.
func (s *State) AddDrawnBox(r geometry.Rect) annotation.BoundingBox {
	s.mu.Lock()
	box := annotation.NewHumanBox(r, s.ranker.SelectedTag())
	s.session.AddHuman(box)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, s.ActiveImageID())
	return box
}

// VerifyBox confirms a model proposal.
func (s *State) VerifyBox(index int) {
	s.mu.Lock()
	s.session.Verify(index)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, s.ActiveImageID())
}

// RejectBox removes a box from the working set.
func (s *State) RejectBox(index int) {
	s.mu.Lock()
	s.session.Reject(index)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, s.ActiveImageID())
}

// RelabelBox replaces a box's label.
func (s *State) RelabelBox(index int, label string) {
	s.mu.Lock()
	s.session.Relabel(index, label)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, s.ActiveImageID())
}

// RelabelMatching relabels the box equal to target at whatever position it
// now occupies. Positions shift while a label dialog is open (a reject or a
// prediction merge can land first), so callers holding a box across a prompt
// resolve it by value, not by index. Returns false when the box is gone.
func (s *State) RelabelMatching(target annotation.BoundingBox, label string) bool {
	s.mu.Lock()
	index := s.session.IndexOf(target)
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	s.session.Relabel(index, label)
	s.mu.Unlock()
	s.Emit(EventSessionChanged, s.ActiveImageID())
	return true
}

// Save stores the working set in the background. A failure leaves the
// session untouched; the user retries by saving again.
func (s *State) Save(ctx context.Context, fullyAnnotated bool) {
	s.mu.RLock()
	imageID := s.session.ImageID()
	boxes := s.session.Boxes()
	s.mu.RUnlock()
	if imageID == "" {
		s.notify(slog.LevelWarn, "No image selected")
		return
	}

	go func() {
		err := s.backend.SaveAnnotations(ctx, imageID, boxes, fullyAnnotated)
		s.dispatch(func() {
			if err != nil {
				s.logger.Error("save failed", "image", imageID, "error", err)
				s.notify(slog.LevelError, "Save failed: "+err.Error())
				s.Emit(EventSaveResult, false)
				return
			}
			s.mu.Lock()
			for i := range s.images {
				if s.images[i].ID() == imageID {
					s.images[i].Boxes = boxes
					s.images[i].FullyAnnotated = fullyAnnotated
					break
				}
			}
			s.rebuildRankerLocked()
			s.mu.Unlock()
			s.Emit(EventSaveResult, true)
		})
	}()
}

// RequestPredictions asks one model for proposals on the active image. The
// response is merged only if the same image is still active when it arrives;
// a response for a superseded image is dropped.
func (s *State) RequestPredictions(ctx context.Context, modelID string) {
	s.mu.RLock()
	requestedID := s.session.ImageID()
	s.mu.RUnlock()
	if requestedID == "" {
		s.notify(slog.LevelWarn, "No image selected")
		return
	}

	go func() {
		boxes, err := s.backend.Predict(ctx, requestedID, modelID)
		s.dispatch(func() {
			if err != nil {
				s.logger.Error("prediction failed", "image", requestedID, "model", modelID, "error", err)
				s.notify(slog.LevelError, "Prediction failed: "+err.Error())
				return
			}
			s.mu.Lock()
			if s.session.ImageID() != requestedID {
				s.mu.Unlock()
				s.logger.Info("dropping stale prediction response",
					"requested", requestedID, "active", s.ActiveImageID(), "model", modelID)
				return
			}
			s.session.MergePredictions(modelID, boxes)
			for i := range s.images {
				if s.images[i].ID() == requestedID {
					if s.images[i].PredictionsByModel == nil {
						s.images[i].PredictionsByModel = make(map[string][]annotation.BoundingBox)
					}
					s.images[i].PredictionsByModel[modelID] = boxes
					break
				}
			}
			s.mu.Unlock()
			s.Emit(EventSessionChanged, requestedID)
		})
	}()
}

// StartTraining asks the backend to retrain. The backend refuses while a run
// is already in progress; that surfaces as a notice, not an error.
func (s *State) StartTraining(ctx context.Context) {
	go func() {
		result, err := s.backend.StartTraining(ctx)
		s.dispatch(func() {
			if err != nil {
				s.logger.Error("training request failed", "error", err)
				s.notify(slog.LevelError, "Training request failed: "+err.Error())
				return
			}
			if !result.Started {
				s.notify(slog.LevelInfo, "Training already in progress")
				return
			}
			s.Emit(EventTrainingStarted, nil)
			s.notify(slog.LevelInfo, "Training started")
		})
	}()
}

// HandleTagKey routes a digit key press to the tag shortcut table.
func (s *State) HandleTagKey(key rune) {
	s.mu.Lock()
	before := s.ranker.SelectedTag()
	after := s.ranker.HandleKey(key)
	s.mu.Unlock()
	if before != after {
		s.Emit(EventTagChanged, after)
	}
}

// SelectTag toggles a tag selection directly (from the tag panel).
func (s *State) SelectTag(label string) {
	s.mu.Lock()
	s.ranker.SelectTag(label)
	after := s.ranker.SelectedTag()
	s.mu.Unlock()
	s.Emit(EventTagChanged, after)
}

// SelectedTag returns the active tag, "" when none.
func (s *State) SelectedTag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranker.SelectedTag()
}

// TopTags returns the ten most frequent labels for the shortcut panel.
func (s *State) TopTags() []tags.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranker.Top10()
}
