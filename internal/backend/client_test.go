package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"box-annotator/internal/annotation"
	"box-annotator/pkg/geometry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, 5*time.Second, logger, "yolo")
}

func TestFetchImages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"filepath":"a.jpg","boxes":[{"x":0.1,"y":0.1,"width":0.2,"height":0.2,"label":"cat","source":"human","confidence":1,"verified":true}],"fully_annotated":true},
			{"filepath":"b.jpg","boxes":[],"uncertainty_score":0.7}
		]`)
	})

	images, err := c.FetchImages(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("images = %d", len(images))
	}
	if images[0].ID() != "a.jpg" || !images[0].FullyAnnotated {
		t.Errorf("images[0] = %+v", images[0])
	}
	if got := images[0].Boxes[0]; got.Label != "cat" || got.Source != annotation.OriginHuman || !got.Verified {
		t.Errorf("box = %+v", got)
	}
	if images[1].Uncertainty() != 0.7 {
		t.Errorf("uncertainty = %v", images[1].Uncertainty())
	}
}

func TestFetchImagesSkipsMalformedRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"filepath":"good.jpg"},
			{"filepath":"bad.jpg","boxes":[{"source":"martian"}]},
			{"filepath":"also_good.jpg"}
		]`)
	})

	images, err := c.FetchImages(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("images = %d, want the two good records", len(images))
	}
	if images[0].ID() != "good.jpg" || images[1].ID() != "also_good.jpg" {
		t.Errorf("kept %q and %q", images[0].ID(), images[1].ID())
	}
}

func TestFetchImagesClampsStoredBoxes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"filepath":"a.jpg","boxes":[{"x":-0.5,"y":0.2,"width":2.0,"height":0.3,"label":"cat","source":"human","confidence":1.4,"verified":true}],
			 "predictions_by_model":{"yolo":[{"x":0.9,"y":0.9,"width":0.5,"height":0.5,"label":"dog","source":"ai_primary","confidence":0.7}]}}
		]`)
	})

	images, err := c.FetchImages(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	stored := images[0].Boxes[0]
	if stored.X < 0 || stored.X+stored.Width > 1 {
		t.Errorf("stored box not clamped: x=%v width=%v", stored.X, stored.Width)
	}
	if stored.Confidence > 1 {
		t.Errorf("stored confidence not clamped: %v", stored.Confidence)
	}
	pred := images[0].PredictionsByModel["yolo"][0]
	if pred.X+pred.Width > 1 || pred.Y+pred.Height > 1 {
		t.Errorf("prediction not clamped: %+v", pred.Rect)
	}
}

func TestPredictTagsRequestingModel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict/yolo/board.jpg" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[{"x":0.5,"y":0.5,"width":0.2,"height":0.2,"label":"led","confidence":0.83}]`)
	})

	boxes, err := c.Predict(context.Background(), "board.jpg", "yolo")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("boxes = %d", len(boxes))
	}
	b := boxes[0]
	if b.Source != annotation.OriginAIPrimary || b.ModelID != "yolo" {
		t.Errorf("provenance = %v/%q", b.Source, b.ModelID)
	}
	if b.Verified {
		t.Error("prediction arrived verified")
	}
	if b.Confidence != 0.83 {
		t.Errorf("confidence = %v", b.Confidence)
	}
}

func TestPredictSecondaryModelOrigin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"x":0,"y":0,"width":0.1,"height":0.1,"label":"x","confidence":0.4}]`)
	})

	boxes, err := c.Predict(context.Background(), "a.jpg", "fewshot")
	if err != nil {
		t.Fatal(err)
	}
	if boxes[0].Source != annotation.OriginAISecondary {
		t.Errorf("source = %v, want secondary", boxes[0].Source)
	}
}

func TestPredictClampsOutOfRangeBoxes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"x":0.9,"y":0.9,"width":0.5,"height":0.5,"label":"edge","confidence":1.3}]`)
	})

	boxes, err := c.Predict(context.Background(), "a.jpg", "yolo")
	if err != nil {
		t.Fatal(err)
	}
	b := boxes[0]
	if b.X+b.Width > 1 || b.Y+b.Height > 1 {
		t.Errorf("box not clamped: %+v", b.Rect)
	}
	if b.Confidence > 1 {
		t.Errorf("confidence not clamped: %v", b.Confidence)
	}
}

func TestPredictSkipsMalformedRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"x":"not a number"},{"x":0.1,"y":0.1,"width":0.2,"height":0.2,"label":"ok","confidence":0.5}]`)
	})

	boxes, err := c.Predict(context.Background(), "a.jpg", "yolo")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Label != "ok" {
		t.Errorf("boxes = %+v", boxes)
	}
}

func TestSaveAnnotations(t *testing.T) {
	var got saveRequest
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, `{}`)
	})

	boxes := []annotation.BoundingBox{
		annotation.NewHumanBox(geometry.NewRect(0.1, 0.1, 0.2, 0.2), "cat"),
	}
	if err := c.SaveAnnotations(context.Background(), "img.jpg", boxes, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != "/annotations/img.jpg" {
		t.Errorf("path = %s", path)
	}
	if !got.FullyAnnotated || len(got.Boxes) != 1 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPredictBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict_batch/fewshot" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req["filenames"]) != 2 {
			t.Errorf("filenames = %v", req)
		}
		io.WriteString(w, `{
			"a.jpg":[{"x":0.1,"y":0.1,"width":0.2,"height":0.2,"label":"cat","confidence":0.9}],
			"b.jpg":[]
		}`)
	})

	result, err := c.PredictBatch(context.Background(), []string{"a.jpg", "b.jpg"}, "fewshot")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(result["a.jpg"]) != 1 || len(result["b.jpg"]) != 0 {
		t.Errorf("result = %+v", result)
	}
	if result["a.jpg"][0].Source != annotation.OriginAISecondary {
		t.Errorf("source = %v", result["a.jpg"][0].Source)
	}
}

func TestStartTrainingBusy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/train" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"started":false}`)
	})

	result, err := c.StartTraining(context.Background())
	if err != nil {
		t.Fatalf("busy must not be an error: %v", err)
	}
	if result.Started {
		t.Error("started = true, want busy")
	}
}

func TestFetchModelStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model_status/yolo" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"available":true,"training":true,"progress":0.42}`)
	})

	status, err := c.FetchModelStatus(context.Background(), "yolo")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Available || !status.Training || status.Progress != 0.42 {
		t.Errorf("status = %+v", status)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.FetchImages(context.Background()); err == nil {
		t.Error("500 should surface as an error")
	}
}
