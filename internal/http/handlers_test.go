package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"morphfield/sculptor/internal/engine"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/logging"
)

type fakeReadiness struct {
	capture int
	view    int
	err     error
	uptime  time.Duration
}

func (f *fakeReadiness) ClientCounts() (int, int) { return f.capture, f.view }

func (f *fakeReadiness) StartupError() error { return f.err }

func (f *fakeReadiness) Uptime() time.Duration { return f.uptime }

type fakeController struct {
	shape     geometry.ShapeKind
	color     string
	preset    string
	presetErr error
}

func (f *fakeController) SetShape(kind geometry.ShapeKind) error {
	f.shape = kind
	return nil
}

func (f *fakeController) SetColor(color string) error {
	f.color = color
	return nil
}

func (f *fakeController) ApplyPreset(name string) error {
	if f.presetErr != nil {
		return f.presetErr
	}
	f.preset = name
	return nil
}

func newTestHandlerSet(opts Options) *HandlerSet {
	if opts.Logger == nil {
		opts.Logger = logging.NewTestLogger()
	}
	return NewHandlerSet(opts)
}

func TestLivenessHandlerReportsAlive(t *testing.T) {
	handlers := newTestHandlerSet(Options{})
	recorder := httptest.NewRecorder()
	handlers.LivenessHandler()(recorder, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "alive" {
		t.Fatalf("status field = %q", payload["status"])
	}
}

func TestReadinessHandlerSurfacesStartupFailure(t *testing.T) {
	handlers := newTestHandlerSet(Options{
		Readiness: &fakeReadiness{capture: 1, view: 3, err: errors.New("presets missing"), uptime: 12 * time.Second},
	})
	recorder := httptest.NewRecorder()
	handlers.ReadinessHandler()(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	//1.- A startup error must surface as 503 with the message attached.
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "presets missing") {
		t.Fatalf("body missing error message: %s", recorder.Body.String())
	}
}

func TestStatsHandlerAggregatesProviders(t *testing.T) {
	handlers := newTestHandlerSet(Options{
		Readiness: &fakeReadiness{capture: 1, view: 2, uptime: time.Minute},
		Scene: func() SceneInfo {
			return SceneInfo{Shape: geometry.ShapeHeart, Color: "#ff0066", Particles: 4000}
		},
		TickStats: func() engine.TickMetricsSnapshot {
			return engine.TickMetricsSnapshot{Samples: 10, Average: 16 * time.Millisecond}
		},
	})
	recorder := httptest.NewRecorder()
	handlers.StatsHandler()(recorder, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var payload struct {
		CaptureClients int       `json:"capture_clients"`
		ViewClients    int       `json:"view_clients"`
		Scene          SceneInfo `json:"scene"`
		FPS            float64   `json:"fps"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.CaptureClients != 1 || payload.ViewClients != 2 {
		t.Fatalf("client counts = %d/%d", payload.CaptureClients, payload.ViewClients)
	}
	if payload.Scene.Shape != geometry.ShapeHeart || payload.Scene.Particles != 4000 {
		t.Fatalf("scene = %+v", payload.Scene)
	}
	if payload.FPS < 62 || payload.FPS > 63 {
		t.Fatalf("fps = %v, want ~62.5", payload.FPS)
	}
}

func TestShapeHandlerValidatesAndApplies(t *testing.T) {
	controller := &fakeController{}
	handlers := newTestHandlerSet(Options{Controller: controller})
	handler := handlers.ShapeHandler()

	//1.- Non-POST methods are rejected outright.
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, "/api/shape", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", recorder.Code)
	}

	//2.- Unknown shape names are rejected before touching the controller.
	recorder = httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodPost, "/api/shape", strings.NewReader(`{"shape":"pyramid"}`)))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unknown shape status = %d, want 400", recorder.Code)
	}
	if controller.shape != "" {
		t.Fatalf("controller touched for invalid shape")
	}

	//3.- A valid shape reaches the controller and echoes back.
	recorder = httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodPost, "/api/shape", strings.NewReader(`{"shape":"saturn"}`)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("valid shape status = %d, want 200", recorder.Code)
	}
	if controller.shape != geometry.ShapeSaturn {
		t.Fatalf("controller shape = %q, want saturn", controller.shape)
	}
}

func TestColorHandlerBoundsInput(t *testing.T) {
	controller := &fakeController{}
	handlers := newTestHandlerSet(Options{Controller: controller})
	handler := handlers.ColorHandler()

	//1.- Empty and oversized colors are rejected.
	for _, body := range []string{`{"color":""}`, fmt.Sprintf(`{"color":%q}`, strings.Repeat("x", 65))} {
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest(http.MethodPost, "/api/color", strings.NewReader(body)))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("status = %d for body %s, want 400", recorder.Code, body)
		}
	}

	//2.- The color value is otherwise opaque and passed straight through.
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodPost, "/api/color", strings.NewReader(`{"color":"rebeccapurple"}`)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if controller.color != "rebeccapurple" {
		t.Fatalf("controller color = %q", controller.color)
	}
}

func TestPresetHandlerMapsUnknownTo404(t *testing.T) {
	controller := &fakeController{presetErr: errors.New("preset \"nebula\" not found")}
	handlers := newTestHandlerSet(Options{Controller: controller})
	recorder := httptest.NewRecorder()
	handlers.PresetHandler()(recorder, httptest.NewRequest(http.MethodPost, "/api/preset", strings.NewReader(`{"name":"nebula"}`)))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestReplayDumpHandlerAuthorisation(t *testing.T) {
	dumper := ReplayDumperFunc(func(ctx context.Context) (string, error) {
		return "/replays/session-1", nil
	})

	//1.- Without a configured token the endpoint is disabled entirely.
	handlers := newTestHandlerSet(Options{Replay: dumper})
	recorder := httptest.NewRecorder()
	handlers.ReplayDumpHandler()(recorder, httptest.NewRequest(http.MethodPost, "/api/replay/dump", nil))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("no-token status = %d, want 403", recorder.Code)
	}

	handlers = newTestHandlerSet(Options{Replay: dumper, AdminToken: "hunter2"})
	handler := handlers.ReplayDumpHandler()

	//2.- A wrong bearer token is rejected.
	recorder = httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/replay/dump", nil)
	request.Header.Set("Authorization", "Bearer wrong")
	handler(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-token status = %d, want 401", recorder.Code)
	}

	//3.- The correct token triggers the dump and reports its location.
	recorder = httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodPost, "/api/replay/dump", nil)
	request.Header.Set("Authorization", "Bearer hunter2")
	handler(recorder, request)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("authorised status = %d, want 202", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "/replays/session-1") {
		t.Fatalf("body missing location: %s", recorder.Body.String())
	}
}

func TestReplayDumpHandlerHonoursRateLimit(t *testing.T) {
	dumper := ReplayDumperFunc(func(ctx context.Context) (string, error) { return "ok", nil })
	limiter := NewSlidingWindowLimiter(time.Minute, 1, nil)
	handlers := newTestHandlerSet(Options{Replay: dumper, AdminToken: "s3cret", RateLimiter: limiter})
	handler := handlers.ReplayDumpHandler()

	issue := func() int {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/api/replay/dump", nil)
		request.Header.Set("X-Admin-Token", "s3cret")
		handler(recorder, request)
		return recorder.Code
	}

	//1.- The first dump is accepted, the immediate retry is throttled.
	if code := issue(); code != http.StatusAccepted {
		t.Fatalf("first dump status = %d, want 202", code)
	}
	if code := issue(); code != http.StatusTooManyRequests {
		t.Fatalf("second dump status = %d, want 429", code)
	}
}
