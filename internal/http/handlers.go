package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"morphfield/sculptor/internal/engine"
	"morphfield/sculptor/internal/fieldstats"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/input"
	"morphfield/sculptor/internal/logging"
	"morphfield/sculptor/internal/replay"
)

// maxColorLen bounds the opaque color string accepted from the control API.
const maxColorLen = 64

// ReadinessProvider exposes service state required for readiness checks.
type ReadinessProvider interface {
	ClientCounts() (capture, view int)
	StartupError() error
	Uptime() time.Duration
}

// SceneController mutates the live sculpture configuration.
type SceneController interface {
	SetShape(kind geometry.ShapeKind) error
	SetColor(color string) error
	ApplyPreset(name string) error
}

// SceneInfo is the current sculpture configuration reported by /api/stats.
type SceneInfo struct {
	Shape     geometry.ShapeKind `json:"shape"`
	Color     string             `json:"color"`
	Particles int                `json:"particles"`
}

// ReplayDumper triggers a session dump and returns the artefact location.
type ReplayDumper interface {
	DumpSession(ctx context.Context) (string, error)
}

// ReplayDumperFunc adapts a function into a ReplayDumper.
type ReplayDumperFunc func(ctx context.Context) (string, error)

// DumpSession implements ReplayDumper.
func (f ReplayDumperFunc) DumpSession(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Controller  SceneController
	Scene       func() SceneInfo
	TickStats   func() engine.TickMetricsSnapshot
	FieldStats  func() fieldstats.Summary
	IngestStats func() input.DropCounters
	Replay      ReplayDumper
	ReplayStats func() replay.Stats
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the sculptor's operational and control handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	controller  SceneController
	scene       func() SceneInfo
	tickStats   func() engine.TickMetricsSnapshot
	fieldStats  func() fieldstats.Summary
	ingestStats func() input.DropCounters
	replay      ReplayDumper
	replayStats func() replay.Stats
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		controller:  opts.Controller,
		scene:       opts.Scene,
		tickStats:   opts.TickStats,
		fieldStats:  opts.FieldStats,
		ingestStats: opts.IngestStats,
		replay:      opts.Replay,
		replayStats: opts.ReplayStats,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/api/stats", h.StatsHandler())
	mux.HandleFunc("/api/shape", h.ShapeHandler())
	mux.HandleFunc("/api/color", h.ColorHandler())
	mux.HandleFunc("/api/preset", h.PresetHandler())
	mux.HandleFunc("/api/replay/dump", h.ReplayDumpHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports service readiness including client counts.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status         string  `json:"status"`
		Message        string  `json:"message,omitempty"`
		UptimeSeconds  float64 `json:"uptime_seconds"`
		CaptureClients int     `json:"capture_clients"`
		ViewClients    int     `json:"view_clients"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			capture, view := h.readiness.ClientCounts()
			resp.CaptureClients = capture
			resp.ViewClients = view
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// StatsHandler aggregates tick, field, ingest and replay diagnostics.
func (h *HandlerSet) StatsHandler() http.HandlerFunc {
	type response struct {
		Timestamp      string                      `json:"timestamp"`
		UptimeSeconds  float64                     `json:"uptime_seconds"`
		CaptureClients int                         `json:"capture_clients"`
		ViewClients    int                         `json:"view_clients"`
		Scene          *SceneInfo                  `json:"scene,omitempty"`
		Tick           *engine.TickMetricsSnapshot `json:"tick,omitempty"`
		FPS            float64                     `json:"fps,omitempty"`
		Field          *fieldstats.Summary         `json:"field,omitempty"`
		IngestDrops    *input.DropCounters         `json:"ingest_drops,omitempty"`
		Replay         *replay.Stats               `json:"replay,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Timestamp: h.now().UTC().Format(time.RFC3339Nano)}
		if h.readiness != nil {
			resp.CaptureClients, resp.ViewClients = h.readiness.ClientCounts()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
		}
		if h.scene != nil {
			scene := h.scene()
			resp.Scene = &scene
		}
		if h.tickStats != nil {
			tick := h.tickStats()
			resp.Tick = &tick
			resp.FPS = tick.AverageFPS()
		}
		if h.fieldStats != nil {
			field := h.fieldStats()
			resp.Field = &field
		}
		if h.ingestStats != nil {
			drops := h.ingestStats()
			resp.IngestDrops = &drops
		}
		if h.replayStats != nil {
			stats := h.replayStats()
			resp.Replay = &stats
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ShapeHandler switches the active sculpture shape.
func (h *HandlerSet) ShapeHandler() http.HandlerFunc {
	type request struct {
		Shape string `json:"shape"`
	}
	type response struct {
		Status string             `json:"status"`
		Shape  geometry.ShapeKind `json:"shape"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requirePost(w, r) {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		kind, ok := geometry.ParseShape(req.Shape)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown shape %q", req.Shape), http.StatusBadRequest)
			return
		}
		if h.controller == nil {
			http.Error(w, "scene control is unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := h.controller.SetShape(kind); err != nil {
			h.logger.Error("shape change failed", logging.Error(err))
			http.Error(w, "failed to apply shape", http.StatusInternalServerError)
			return
		}
		h.logger.Info("shape changed", logging.String("shape", string(kind)))
		writeJSON(w, http.StatusOK, response{Status: "ok", Shape: kind})
	}
}

// ColorHandler updates the viewer tint. The value is opaque to the service.
func (h *HandlerSet) ColorHandler() http.HandlerFunc {
	type request struct {
		Color string `json:"color"`
	}
	type response struct {
		Status string `json:"status"`
		Color  string `json:"color"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requirePost(w, r) {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		color := strings.TrimSpace(req.Color)
		if color == "" || len(color) > maxColorLen {
			http.Error(w, "color must be 1-64 characters", http.StatusBadRequest)
			return
		}
		if h.controller == nil {
			http.Error(w, "scene control is unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := h.controller.SetColor(color); err != nil {
			h.logger.Error("color change failed", logging.Error(err))
			http.Error(w, "failed to apply color", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, response{Status: "ok", Color: color})
	}
}

// PresetHandler applies a named preset from the configured catalogue.
func (h *HandlerSet) PresetHandler() http.HandlerFunc {
	type request struct {
		Name string `json:"name"`
	}
	type response struct {
		Status string `json:"status"`
		Name   string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requirePost(w, r) {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			http.Error(w, "preset name must be provided", http.StatusBadRequest)
			return
		}
		if h.controller == nil {
			http.Error(w, "scene control is unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := h.controller.ApplyPreset(name); err != nil {
			h.logger.Warn("preset apply failed", logging.String("preset", name), logging.Error(err))
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Info("preset applied", logging.String("preset", name))
		writeJSON(w, http.StatusOK, response{Status: "ok", Name: name})
	}
}

// ReplayDumpHandler authorises and triggers session dump creation.
func (h *HandlerSet) ReplayDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "replay_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if !h.requirePost(w, r) {
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("session dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("session dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("session dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.replay == nil {
			reqLogger.Warn("session dump denied: no dumper configured")
			http.Error(w, "session dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.replay.DumpSession(r.Context())
		if err != nil {
			reqLogger.Error("session dump failed", logging.Error(err))
			http.Error(w, "failed to dump session", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("session dump written", logging.String("location", location))
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

func (h *HandlerSet) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
