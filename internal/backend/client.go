// Package backend is the HTTP client for the annotation-data and model
// service. The canvas treats that service as opaque: it stores images and
// boxes, runs detection models, and trains on demand.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"box-annotator/internal/annotation"
	"box-annotator/pkg/geometry"
)

// Client talks to one annotation backend. It is safe for concurrent use; all
// methods honor their context and never retry on their own.
type Client struct {
	baseURL      string
	http         *http.Client
	logger       *slog.Logger
	primaryModel string
}

// NewClient creates a client for the backend at baseURL. primaryModel names
// the model whose predictions are tagged as the primary AI source; every
// other model id is tagged secondary.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, primaryModel string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      baseURL,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
		primaryModel: primaryModel,
	}
}

// wireBox is the backend's box representation: normalized coordinates plus
// label and confidence. Stored annotations additionally carry source and
// verified.
type wireBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FetchImages returns the stored dataset. A record that fails to decode is
// logged and skipped; one bad row never fails the whole batch.
func (c *Client) FetchImages(ctx context.Context) ([]annotation.AnnotatedImage, error) {
	body, err := c.get(ctx, "/images")
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding image list: %w", err)
	}

	images := make([]annotation.AnnotatedImage, 0, len(raw))
	for i, rec := range raw {
		var img annotation.AnnotatedImage
		if err := json.Unmarshal(rec, &img); err != nil {
			c.logger.Warn("skipping malformed image record", "index", i, "error", err)
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

// saveRequest is the save payload: the full box set for one image and the
// operator's done-with-this-image flag.
type saveRequest struct {
	Boxes          []annotation.BoundingBox `json:"boxes"`
	FullyAnnotated bool                     `json:"fully_annotated"`
}

// SaveAnnotations stores the working box set for an image.
func (c *Client) SaveAnnotations(ctx context.Context, imageID string, boxes []annotation.BoundingBox, fullyAnnotated bool) error {
	payload, err := json.Marshal(saveRequest{Boxes: boxes, FullyAnnotated: fullyAnnotated})
	if err != nil {
		return fmt.Errorf("encoding annotations: %w", err)
	}
	_, err = c.post(ctx, "/annotations/"+url.PathEscape(imageID), payload)
	return err
}

// Predict asks one model for box proposals on one image. Returned boxes are
// unverified and tagged with the requesting model.
func (c *Client) Predict(ctx context.Context, imageID, modelID string) ([]annotation.BoundingBox, error) {
	body, err := c.get(ctx, "/predict/"+url.PathEscape(modelID)+"/"+url.PathEscape(imageID))
	if err != nil {
		return nil, err
	}
	return c.decodePredictions(body, modelID)
}

// PredictBatch asks one model for proposals on several images at once,
// keyed by image id.
func (c *Client) PredictBatch(ctx context.Context, imageIDs []string, modelID string) (map[string][]annotation.BoundingBox, error) {
	payload, err := json.Marshal(map[string][]string{"filenames": imageIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding batch request: %w", err)
	}
	body, err := c.post(ctx, "/predict_batch/"+url.PathEscape(modelID), payload)
	if err != nil {
		return nil, err
	}

	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding batch predictions: %w", err)
	}

	result := make(map[string][]annotation.BoundingBox, len(raw))
	for imageID, records := range raw {
		boxes := make([]annotation.BoundingBox, 0, len(records))
		for i, rec := range records {
			box, ok := c.decodePrediction(rec, modelID, imageID, i)
			if ok {
				boxes = append(boxes, box)
			}
		}
		result[imageID] = boxes
	}
	return result, nil
}

// TrainResult reports whether a training run was started. The backend
// refuses to start a second run while one is in progress; that is a busy
// status, not an error.
type TrainResult struct {
	Started bool `json:"started"`
}

// StartTraining kicks off model training on the backend. Fire and forget;
// progress is polled through ModelStatus.
func (c *Client) StartTraining(ctx context.Context) (TrainResult, error) {
	body, err := c.post(ctx, "/train", nil)
	if err != nil {
		return TrainResult{}, err
	}
	var result TrainResult
	if err := json.Unmarshal(body, &result); err != nil {
		return TrainResult{}, fmt.Errorf("decoding train response: %w", err)
	}
	return result, nil
}

// ModelStatus is the backend's training/availability state for one model.
type ModelStatus struct {
	Available bool    `json:"available"`
	Training  bool    `json:"training"`
	Progress  float64 `json:"progress"`
}

// FetchModelStatus polls the training/availability state of one model.
func (c *Client) FetchModelStatus(ctx context.Context, modelID string) (ModelStatus, error) {
	body, err := c.get(ctx, "/model_status/"+url.PathEscape(modelID))
	if err != nil {
		return ModelStatus{}, err
	}
	var status ModelStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return ModelStatus{}, fmt.Errorf("decoding model status: %w", err)
	}
	return status, nil
}

// decodePredictions decodes a prediction list, skipping malformed records.
func (c *Client) decodePredictions(body []byte, modelID string) ([]annotation.BoundingBox, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding predictions: %w", err)
	}
	boxes := make([]annotation.BoundingBox, 0, len(raw))
	for i, rec := range raw {
		if box, ok := c.decodePrediction(rec, modelID, "", i); ok {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

func (c *Client) decodePrediction(rec json.RawMessage, modelID, imageID string, index int) (annotation.BoundingBox, bool) {
	var w wireBox
	if err := json.Unmarshal(rec, &w); err != nil {
		c.logger.Warn("skipping malformed prediction",
			"model", modelID, "image", imageID, "index", index, "error", err)
		return annotation.BoundingBox{}, false
	}
	box := annotation.NewPredictedBox(
		geometry.NewRect(w.X, w.Y, w.Width, w.Height),
		w.Label, c.originFor(modelID), modelID, w.Confidence,
	)
	return box, true
}

func (c *Client) originFor(modelID string) annotation.Origin {
	if modelID == c.primaryModel {
		return annotation.OriginAIPrimary
	}
	return annotation.OriginAISecondary
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}
