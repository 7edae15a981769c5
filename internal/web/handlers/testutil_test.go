package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/database"
	dbmock "github.com/kozaktomas/faceauth/internal/database/mock"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/kozaktomas/faceauth/internal/i18n"
	"github.com/kozaktomas/faceauth/internal/vision"
	"github.com/kozaktomas/faceauth/internal/vision/mock"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Vision:   config.VisionConfig{Engine: "remote"},
		Capture:  config.CaptureConfig{MaxSize: 1280},
		Language: "en",
	}
}

type staticLoader struct {
	ready bool
	err   error
}

func (l staticLoader) Ready() bool { return l.ready }
func (l staticLoader) Err() error  { return l.err }
func (l staticLoader) Status() vision.LoaderStatus {
	s := vision.LoaderStatus{Engine: "mock", Models: []string{"faceRecognitionNet"}, Ready: l.ready}
	if l.err != nil {
		s.Error = l.err.Error()
	}
	return s
}

// testEnv wires a flow manager over in-memory storage and a mock engine.
type testEnv struct {
	kv        *dbmock.MockKeyValueStore
	templates *database.KVTemplateStore
	users     *database.UserStore
	engine    *mock.MockEngine
	manager   *flow.Manager
	sessions  *middleware.SessionManager
}

func newTestEnv(t *testing.T, loader staticLoader) *testEnv {
	t.Helper()

	engine := mock.NewMockEngine(make(facematch.Descriptor, 128))
	if err := engine.LoadModels(context.Background(), "/models", config.ModelManifest{}); err != nil {
		t.Fatal(err)
	}
	engine.Detection.Landmarks = []image.Point{{10, 10}, {20, 12}}
	engine.Detection.Box = image.Rect(5, 5, 40, 40)

	kv := dbmock.NewMockKeyValueStore()
	env := &testEnv{
		kv:        kv,
		templates: database.NewKVTemplateStore(kv),
		users:     database.NewUserStore(kv),
		engine:    engine,
		sessions:  middleware.NewSessionManager("test-secret", nil),
	}
	t.Cleanup(env.sessions.Stop)

	env.manager = flow.NewManager(flow.Deps{
		Loader:     loader,
		Extractor:  vision.NewExtractor(engine),
		Comparer:   facematch.NewEngine(facematch.EuclideanDistance),
		Templates:  env.templates,
		Users:      env.users,
		Translator: i18n.MustNew("en"),
	}, flow.ManagerOptions{})
	t.Cleanup(env.manager.Shutdown)
	return env
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// flowRequest creates a request addressed to a flow.
func flowRequest(method, path, flowID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	return requestWithChiParams(req, map[string]string{"flowId": flowID})
}

// pngBytes encodes a small blank image.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// hugePNGBytes is a valid PNG header declaring 12000x12000 pixels in front
// of a tiny image.
func hugePNGBytes(t *testing.T) []byte {
	t.Helper()
	data := bytes.Clone(pngBytes(t))
	binary.BigEndian.PutUint32(data[16:20], 12000)
	binary.BigEndian.PutUint32(data[20:24], 12000)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func decodeFlowResponse(t *testing.T, recorder *httptest.ResponseRecorder) FlowResponse {
	t.Helper()
	var resp FlowResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
	return resp
}
