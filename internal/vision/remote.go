package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/facematch"
)

const defaultRemoteURL = "http://localhost:8000"

// RemoteEngine runs detection on a face inference server over HTTP.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
	loaded  atomic.Bool
}

// NewRemoteEngine creates a new remote engine client
func NewRemoteEngine(baseURL string) *RemoteEngine {
	if baseURL == "" {
		baseURL = defaultRemoteURL
	}
	return &RemoteEngine{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Name returns the backend name.
func (e *RemoteEngine) Name() string {
	return "remote"
}

// loadModelsRequest asks the server to load models from a base path
type loadModelsRequest struct {
	BasePath string   `json:"base_path"`
	Models   []string `json:"models"`
}

// loadModelsResponse lists the models the server has ready
type loadModelsResponse struct {
	Loaded []string `json:"loaded"`
	Error  string   `json:"error,omitempty"`
}

// detectResponse represents the response from the single face endpoint
type detectResponse struct {
	Found      bool      `json:"found"`
	Descriptor []float32 `json:"descriptor"`
	Landmarks  [][2]int  `json:"landmarks"`
	Box        []float64 `json:"box"` // [x1, y1, x2, y2]
	Score      float64   `json:"score"`
}

// LoadModels asks the server to load every model in the manifest.
func (e *RemoteEngine) LoadModels(ctx context.Context, basePath string, manifest config.ModelManifest) error {
	names := manifest.Names()
	reqBody, err := json.Marshal(loadModelsRequest{BasePath: basePath, Models: names})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := e.postJSON(ctx, "/models/load", reqBody)
	if err != nil {
		return err
	}

	var resp loadModelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("server failed to load models: %s", resp.Error)
	}

	loaded := make(map[string]bool, len(resp.Loaded))
	for _, name := range resp.Loaded {
		loaded[name] = true
	}
	for _, name := range names {
		if !loaded[name] {
			return fmt.Errorf("model %s not loaded by server", name)
		}
	}

	e.loaded.Store(true)
	return nil
}

// DetectSingleFace uploads the image and returns the detected face.
func (e *RemoteEngine) DetectSingleFace(ctx context.Context, img []byte) (*Detection, error) {
	if !e.loaded.Load() {
		return nil, ErrModelsNotLoaded
	}

	body, err := e.postMultipartImage(ctx, "/detect/single", img)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !resp.Found {
		return nil, ErrNoFaceDetected
	}
	if len(resp.Descriptor) == 0 {
		return nil, errors.New("empty descriptor returned")
	}

	det := &Detection{
		Descriptor: facematch.Descriptor(resp.Descriptor),
		Landmarks:  make([]image.Point, len(resp.Landmarks)),
		Score:      resp.Score,
	}
	for i, p := range resp.Landmarks {
		det.Landmarks[i] = image.Pt(p[0], p[1])
	}
	if len(resp.Box) == 4 {
		det.Box = image.Rect(pixel(resp.Box[0]), pixel(resp.Box[1]), pixel(resp.Box[2]), pixel(resp.Box[3]))
	}
	return det, nil
}

// maxCoord bounds coordinates from the server; float to int conversion of
// out-of-range values is undefined.
const maxCoord = 1 << 20

func pixel(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(-maxCoord, math.Min(maxCoord, f)))
}

// Distance returns the euclidean distance, the metric the recognition network is trained for.
func (e *RemoteEngine) Distance(a, b facematch.Descriptor) float64 {
	return facematch.EuclideanDistance(a, b)
}

// Close is a no-op; the server owns the models.
func (e *RemoteEngine) Close() error {
	return nil
}

// postJSON posts a JSON body and returns the response body on 200.
func (e *RemoteEngine) postJSON(ctx context.Context, endpoint string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (e *RemoteEngine) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", http.DetectContentType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req)
}

func (e *RemoteEngine) do(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
