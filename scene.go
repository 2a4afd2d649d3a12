package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"morphfield/sculptor/internal/config"
	"morphfield/sculptor/internal/field"
	"morphfield/sculptor/internal/geometry"
	httpapi "morphfield/sculptor/internal/http"
	"morphfield/sculptor/internal/logging"
	"morphfield/sculptor/internal/replay"
)

// controlMessage is the JSON envelope pushed to viewers on scene changes.
type controlMessage struct {
	Type      string `json:"type"`
	Shape     string `json:"shape,omitempty"`
	Color     string `json:"color,omitempty"`
	Particles int    `json:"particles,omitempty"`
	Preset    string `json:"preset,omitempty"`
}

// broadcaster pushes control messages to connected viewers.
type broadcaster interface {
	BroadcastControl(payload any)
}

// tickSource reports the current animation tick for event timestamps.
type tickSource func() uint64

// Scene tracks the mutable sculpture configuration: active shape, viewer
// color, particle budget and the preset catalogue. It implements the control
// API's SceneController.
type Scene struct {
	mu       sync.Mutex
	fld      *field.Field
	color    string
	presets  []config.Preset
	hub      broadcaster
	recorder *replay.Recorder
	ticks    tickSource
	logger   *logging.Logger
}

// NewScene binds the scene controller to the live field and its peripherals.
// recorder may be nil when session recording is disabled.
func NewScene(fld *field.Field, color string, presets []config.Preset, hub broadcaster, recorder *replay.Recorder, ticks tickSource, logger *logging.Logger) *Scene {
	if logger == nil {
		logger = logging.L()
	}
	if ticks == nil {
		ticks = func() uint64 { return 0 }
	}
	return &Scene{
		fld:      fld,
		color:    color,
		presets:  presets,
		hub:      hub,
		recorder: recorder,
		ticks:    ticks,
		logger:   logger,
	}
}

// SetShape swaps the morph target and notifies viewers.
func (s *Scene) SetShape(kind geometry.ShapeKind) error {
	if s == nil {
		return fmt.Errorf("scene not configured")
	}
	s.mu.Lock()
	s.fld.SetShape(kind)
	s.mu.Unlock()

	s.notify(controlMessage{Type: "shape", Shape: string(kind)})
	s.record("shape_change", controlMessage{Type: "shape", Shape: string(kind)})
	return nil
}

// SetColor stores the opaque viewer tint and pushes it to viewers.
func (s *Scene) SetColor(color string) error {
	if s == nil {
		return fmt.Errorf("scene not configured")
	}
	s.mu.Lock()
	s.color = color
	s.mu.Unlock()

	s.notify(controlMessage{Type: "color", Color: color})
	s.record("color_change", controlMessage{Type: "color", Color: color})
	return nil
}

// ApplyPreset looks up a named preset and applies its shape, color, and
// particle budget in one step.
func (s *Scene) ApplyPreset(name string) error {
	if s == nil {
		return fmt.Errorf("scene not configured")
	}
	s.mu.Lock()
	preset, ok := config.FindPreset(s.presets, name)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("preset %q not found", name)
	}
	kind, ok := geometry.ParseShape(preset.Shape)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("preset %q names unknown shape %q", name, preset.Shape)
	}

	//1.- Resize first so the regenerated target already uses the new budget.
	if preset.Particles > 0 {
		s.fld.Resize(preset.Particles)
	}
	s.fld.SetShape(kind)
	if preset.Color != "" {
		s.color = preset.Color
	}
	msg := controlMessage{
		Type:      "preset",
		Preset:    preset.Name,
		Shape:     string(kind),
		Color:     s.color,
		Particles: s.fld.Count(),
	}
	s.mu.Unlock()

	s.notify(msg)
	s.record("preset_apply", msg)
	return nil
}

// Info reports the current configuration for the stats endpoint.
func (s *Scene) Info() httpapi.SceneInfo {
	if s == nil {
		return httpapi.SceneInfo{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return httpapi.SceneInfo{
		Shape:     s.fld.Shape(),
		Color:     s.color,
		Particles: s.fld.Count(),
	}
}

func (s *Scene) notify(msg controlMessage) {
	if s.hub != nil {
		s.hub.BroadcastControl(msg)
	}
}

func (s *Scene) record(eventType string, msg controlMessage) {
	if s.recorder == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("scene event encode failed", logging.Error(err))
		return
	}
	s.recorder.RecordEvent(s.ticks(), eventType, payload)
}
