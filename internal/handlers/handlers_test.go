package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/facebox/internal/imageloader"
	"github.com/example/facebox/internal/usecase"
)

type stubDetector struct {
	rects []image.Rectangle
}

func (s stubDetector) Detect(img image.Image, upsample int) []image.Rectangle {
	return s.rects
}

type panickyDetector struct{}

func (panickyDetector) Detect(img image.Image, upsample int) []image.Rectangle {
	panic("classifier blew up")
}

func newTestRouter(det usecase.FaceDetector, maxPixels int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	loader := imageloader.NewLoader(http.DefaultClient, zap.NewNop())
	uc := usecase.NewDetectionUseCase(loader, det, maxPixels, zap.NewNop())
	return NewRouter(uc, zap.NewNop())
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func postDetect(router *gin.Engine, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, resp.Body.String())
	}
	return body.Error
}

func TestDetectRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if got, want := errorMessage(t, resp), "No data found, make sure to set Content-Type"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestDetectRejectsNonNumericUpsample(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face?upsample=abc", encodePNG(t, 4, 4))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Invalid numeric value for upsample argument"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestDetectRejectsNegativeUpsample(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face?upsample=-1", encodePNG(t, 4, 4))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Value for upsample argument must be nonnegative"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestDetectReturnsBox(t *testing.T) {
	router := newTestRouter(stubDetector{rects: []image.Rectangle{image.Rect(1, 2, 3, 4)}}, 0)

	resp := postDetect(router, "/detect_largest_face", encodePNG(t, 8, 8))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusOK, resp.Code, resp.Body.String())
	}

	var body struct {
		Box map[string]int `json:"box"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	want := map[string]int{"left": 1, "top": 2, "right": 3, "bottom": 4}
	for key, value := range want {
		if body.Box[key] != value {
			t.Fatalf("expected box %v, got %v", want, body.Box)
		}
	}
}

func TestDetectReturnsEmptyObjectWhenNoFace(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face", encodePNG(t, 8, 8))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected an empty JSON object, got %s", resp.Body.String())
	}
}

func TestDetectRejectsInvalidImage(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face", []byte("this is not an image"))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, resp.Code)
	}
	if got, want := errorMessage(t, resp), "The image is invalid"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestDetectRejectsOversizedImage(t *testing.T) {
	// A pixel budget of 8 makes the 4x4 test image oversized.
	router := newTestRouter(stubDetector{}, 8)

	resp := postDetect(router, "/detect_largest_face", encodePNG(t, 4, 4))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Image is too large: (4, 4)"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestDetectRejectsWrongMethod(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/detect_largest_face", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Method not allowed"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	resp := postDetect(router, "/definitely_not_a_route", encodePNG(t, 4, 4))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Not found"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestPanicIsHiddenBehindGenericError(t *testing.T) {
	router := newTestRouter(panickyDetector{}, 0)

	resp := postDetect(router, "/detect_largest_face", encodePNG(t, 8, 8))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, resp.Code)
	}
	if got, want := errorMessage(t, resp), "Internal server error"; got != want {
		t.Fatalf("expected message %q, got %q", want, got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(stubDetector{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}
