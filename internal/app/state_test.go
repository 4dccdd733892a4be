package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"box-annotator/internal/annotation"
	"box-annotator/internal/backend"
	"box-annotator/pkg/geometry"
)

// fakeBackend scripts backend responses; Predict can be gated so a response
// arrives "late", after the test has moved the session elsewhere.
type fakeBackend struct {
	images      []annotation.AnnotatedImage
	fetchErr    error
	saveErr     error
	saved       map[string][]annotation.BoundingBox
	predictions map[string][]annotation.BoundingBox
	predictGate chan struct{}
	trainResult backend.TrainResult
	trainErr    error
}

func (f *fakeBackend) FetchImages(context.Context) ([]annotation.AnnotatedImage, error) {
	return f.images, f.fetchErr
}

func (f *fakeBackend) SaveAnnotations(_ context.Context, imageID string, boxes []annotation.BoundingBox, _ bool) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string][]annotation.BoundingBox)
	}
	f.saved[imageID] = boxes
	return nil
}

func (f *fakeBackend) Predict(_ context.Context, imageID, _ string) ([]annotation.BoundingBox, error) {
	if f.predictGate != nil {
		<-f.predictGate
	}
	return f.predictions[imageID], nil
}

func (f *fakeBackend) StartTraining(context.Context) (backend.TrainResult, error) {
	return f.trainResult, f.trainErr
}

// newTestState wires a State whose dispatch funnels result handlers through
// a channel, so the test decides exactly when async results apply.
func newTestState(fb *fakeBackend) (*State, chan func()) {
	pending := make(chan func(), 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewState(logger, fb, func(f func()) { pending <- f })
	return s, pending
}

func runNext(t *testing.T, pending chan func()) {
	t.Helper()
	select {
	case f := <-pending:
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an async result")
	}
}

func datasetFixture() []annotation.AnnotatedImage {
	low, high := 0.1, 0.9
	return []annotation.AnnotatedImage{
		{
			Filepath:         "calm.jpg",
			UncertaintyScore: &low,
			Boxes: []annotation.BoundingBox{
				annotation.NewHumanBox(geometry.NewRect(0, 0, 0.2, 0.2), "cat"),
				annotation.NewHumanBox(geometry.NewRect(0.3, 0.3, 0.2, 0.2), "cat"),
			},
		},
		{
			Filepath:         "confusing.jpg",
			UncertaintyScore: &high,
			Boxes: []annotation.BoundingBox{
				annotation.NewHumanBox(geometry.NewRect(0, 0, 0.2, 0.2), "dog"),
			},
		},
	}
}

func TestLoadImagesOrdersByUncertainty(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)

	var loaded int
	s.On(EventImagesLoaded, func(data any) { loaded = data.(int) })

	s.LoadImages(context.Background())
	runNext(t, pending)

	if loaded != 2 {
		t.Errorf("loaded = %d", loaded)
	}
	images := s.Images()
	if images[0].ID() != "confusing.jpg" {
		t.Errorf("review order starts with %q, want the most uncertain image", images[0].ID())
	}
	// Tag table covers the whole dataset.
	top := s.TopTags()
	if len(top) != 2 || top[0].Label != "cat" || top[0].Count != 2 {
		t.Errorf("top tags = %+v", top)
	}
}

func TestLoadImagesFailureEmitsNotice(t *testing.T) {
	fb := &fakeBackend{fetchErr: errors.New("connection refused")}
	s, pending := newTestState(fb)

	var notice Notice
	s.On(EventNotice, func(data any) { notice = data.(Notice) })

	s.LoadImages(context.Background())
	runNext(t, pending)

	if notice.Message == "" {
		t.Error("no notice for fetch failure")
	}
	if len(s.Images()) != 0 {
		t.Error("failed fetch mutated the image list")
	}
}

func TestSelectImageLoadsSession(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)

	s.SelectImage("calm.jpg")
	if s.ActiveImageID() != "calm.jpg" {
		t.Errorf("active = %q", s.ActiveImageID())
	}
	if got := len(s.Boxes()); got != 2 {
		t.Errorf("session boxes = %d", got)
	}
}

func TestStalePredictionDropped(t *testing.T) {
	fb := &fakeBackend{
		images: datasetFixture(),
		predictions: map[string][]annotation.BoundingBox{
			"calm.jpg": {
				annotation.NewPredictedBox(geometry.NewRect(0.5, 0.5, 0.2, 0.2), "dog", annotation.OriginAIPrimary, "yolo", 0.8),
			},
		},
		predictGate: make(chan struct{}),
	}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)

	s.SelectImage("calm.jpg")
	s.RequestPredictions(context.Background(), "yolo")

	// The user moves on before the response lands.
	s.SelectImage("confusing.jpg")
	close(fb.predictGate)
	runNext(t, pending)

	if got := len(s.Boxes()); got != 1 {
		t.Errorf("stale response mutated the new session: %d boxes", got)
	}
	for _, b := range s.Boxes() {
		if b.ModelID == "yolo" {
			t.Errorf("stale prediction present: %+v", b)
		}
	}
}

func TestFreshPredictionMerged(t *testing.T) {
	fb := &fakeBackend{
		images: datasetFixture(),
		predictions: map[string][]annotation.BoundingBox{
			"calm.jpg": {
				annotation.NewPredictedBox(geometry.NewRect(0.5, 0.5, 0.2, 0.2), "dog", annotation.OriginAIPrimary, "yolo", 0.8),
			},
		},
	}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)

	s.SelectImage("calm.jpg")
	s.RequestPredictions(context.Background(), "yolo")
	runNext(t, pending)

	if got := len(s.Boxes()); got != 3 {
		t.Errorf("boxes after merge = %d, want 3", got)
	}
}

func TestAddDrawnBoxAppliesSelectedTag(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")

	s.HandleTagKey('1') // selects "cat"
	box := s.AddDrawnBox(geometry.NewRect(0.6, 0.6, 0.1, 0.1))

	if box.Label != "cat" {
		t.Errorf("label = %q, want the selected tag", box.Label)
	}
	if box.Source != annotation.OriginHuman || !box.Verified {
		t.Errorf("drawn box provenance = %+v", box)
	}
	if got := len(s.Boxes()); got != 3 {
		t.Errorf("boxes = %d", got)
	}
}

func TestAddDrawnBoxWithoutTagLeavesLabelEmpty(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")

	if box := s.AddDrawnBox(geometry.NewRect(0.6, 0.6, 0.1, 0.1)); box.Label != "" {
		t.Errorf("label = %q, want empty pending a prompt", box.Label)
	}
}

func TestRelabelMatchingSurvivesReordering(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")

	// An unlabeled box is drawn, and while its label prompt is open a
	// reject shifts every later position down by one.
	drawn := s.AddDrawnBox(geometry.NewRect(0.6, 0.6, 0.1, 0.1))
	s.RejectBox(0)

	if !s.RelabelMatching(drawn, "led") {
		t.Fatal("drawn box not found after reordering")
	}
	boxes := s.Boxes()
	if boxes[len(boxes)-1].Label != "led" {
		t.Errorf("drawn box label = %q", boxes[len(boxes)-1].Label)
	}
	for _, b := range boxes[:len(boxes)-1] {
		if b.Label == "led" {
			t.Errorf("relabel hit the wrong box: %+v", b)
		}
	}
}

func TestRelabelMatchingGoneBox(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")

	drawn := s.AddDrawnBox(geometry.NewRect(0.6, 0.6, 0.1, 0.1))
	s.RejectBox(len(s.Boxes()) - 1)

	if s.RelabelMatching(drawn, "led") {
		t.Error("relabel reported success for a removed box")
	}
	for _, b := range s.Boxes() {
		if b.Label == "led" {
			t.Errorf("removed-box relabel mutated the session: %+v", b)
		}
	}
}

func TestSaveSuccessUpdatesDataset(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture()}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")
	s.AddDrawnBox(geometry.NewRect(0.6, 0.6, 0.1, 0.1))

	var saveOK *bool
	s.On(EventSaveResult, func(data any) { v := data.(bool); saveOK = &v })

	s.Save(context.Background(), true)
	runNext(t, pending)

	if saveOK == nil || !*saveOK {
		t.Fatal("save did not report success")
	}
	if got := len(fb.saved["calm.jpg"]); got != 3 {
		t.Errorf("backend received %d boxes", got)
	}
	for _, img := range s.Images() {
		if img.ID() == "calm.jpg" && !img.FullyAnnotated {
			t.Error("dataset entry not marked fully annotated")
		}
	}
}

func TestSaveFailureLeavesSessionIntact(t *testing.T) {
	fb := &fakeBackend{images: datasetFixture(), saveErr: errors.New("boom")}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")

	before := s.Boxes()
	s.Save(context.Background(), false)
	runNext(t, pending)

	after := s.Boxes()
	if len(after) != len(before) {
		t.Error("failed save changed the session")
	}
}

func TestTrainingBusyNotice(t *testing.T) {
	fb := &fakeBackend{trainResult: backend.TrainResult{Started: false}}
	s, pending := newTestState(fb)

	var notice Notice
	started := false
	s.On(EventNotice, func(data any) { notice = data.(Notice) })
	s.On(EventTrainingStarted, func(any) { started = true })

	s.StartTraining(context.Background())
	runNext(t, pending)

	if started {
		t.Error("busy backend reported a started run")
	}
	if notice.Message == "" {
		t.Error("busy training produced no notice")
	}
}

func TestVerifyRejectThroughController(t *testing.T) {
	fb := &fakeBackend{
		images: datasetFixture(),
		predictions: map[string][]annotation.BoundingBox{
			"calm.jpg": {
				annotation.NewPredictedBox(geometry.NewRect(0.5, 0.5, 0.2, 0.2), "dog", annotation.OriginAIPrimary, "yolo", 0.8),
			},
		},
	}
	s, pending := newTestState(fb)
	s.LoadImages(context.Background())
	runNext(t, pending)
	s.SelectImage("calm.jpg")
	s.RequestPredictions(context.Background(), "yolo")
	runNext(t, pending)

	s.VerifyBox(2)
	if boxes := s.Boxes(); !boxes[2].Verified || boxes[2].Confidence != 0.8 {
		t.Errorf("verify result = %+v", boxes[2])
	}

	s.RejectBox(0)
	if got := len(s.Boxes()); got != 2 {
		t.Errorf("boxes after reject = %d", got)
	}
}
