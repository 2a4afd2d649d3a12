package main

import (
	"testing"

	"morphfield/sculptor/internal/config"
	"morphfield/sculptor/internal/field"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/logging"
	"morphfield/sculptor/internal/replay"
)

type captureBroadcaster struct {
	messages []controlMessage
}

func (c *captureBroadcaster) BroadcastControl(payload any) {
	if msg, ok := payload.(controlMessage); ok {
		c.messages = append(c.messages, msg)
	}
}

func testPresets() []config.Preset {
	return []config.Preset{
		{Name: "nebula", Shape: "galaxy", Color: "#3366ff", Particles: 6000},
		{Name: "valentine", Shape: "heart", Color: "#ff3366"},
		{Name: "mono", Shape: "flower"},
		{Name: "broken", Shape: "dodecahedron"},
	}
}

func newTestScene(t *testing.T) (*Scene, *field.Field, *captureBroadcaster) {
	t.Helper()
	fld := field.New(geometry.ShapeGalaxy, 100)
	hub := &captureBroadcaster{}
	scene := NewScene(fld, "#88ccff", testPresets(), hub, nil, nil, logging.NewTestLogger())
	return scene, fld, hub
}

func TestSetShapeUpdatesFieldAndNotifiesViewers(t *testing.T) {
	scene, fld, hub := newTestScene(t)

	if err := scene.SetShape(geometry.ShapeHeart); err != nil {
		t.Fatalf("set shape: %v", err)
	}
	if fld.Shape() != geometry.ShapeHeart {
		t.Fatalf("field shape = %q, want heart", fld.Shape())
	}
	if len(hub.messages) != 1 || hub.messages[0].Type != "shape" || hub.messages[0].Shape != "heart" {
		t.Fatalf("broadcast = %+v", hub.messages)
	}
}

func TestSetColorIsOpaquePassThrough(t *testing.T) {
	scene, _, hub := newTestScene(t)

	if err := scene.SetColor("hotpink"); err != nil {
		t.Fatalf("set color: %v", err)
	}
	info := scene.Info()
	if info.Color != "hotpink" {
		t.Fatalf("info color = %q", info.Color)
	}
	if len(hub.messages) != 1 || hub.messages[0].Color != "hotpink" {
		t.Fatalf("broadcast = %+v", hub.messages)
	}
}

func TestApplyPresetAppliesAllFields(t *testing.T) {
	scene, fld, hub := newTestScene(t)

	if err := scene.ApplyPreset("nebula"); err != nil {
		t.Fatalf("apply preset: %v", err)
	}
	//1.- Shape, color, and particle budget all follow the preset.
	info := scene.Info()
	if info.Shape != geometry.ShapeGalaxy || info.Color != "#3366ff" || info.Particles != 6000 {
		t.Fatalf("info = %+v", info)
	}
	if fld.Count() != 6000 {
		t.Fatalf("field count = %d, want 6000", fld.Count())
	}
	if len(hub.messages) != 1 || hub.messages[0].Preset != "nebula" {
		t.Fatalf("broadcast = %+v", hub.messages)
	}
}

func TestApplyPresetKeepsColorWhenUnset(t *testing.T) {
	scene, _, _ := newTestScene(t)

	//1.- "valentine" sets a color; the color-less "mono" preset must leave
	// that tint in place while still switching the shape.
	if err := scene.ApplyPreset("valentine"); err != nil {
		t.Fatalf("apply valentine: %v", err)
	}
	if err := scene.ApplyPreset("mono"); err != nil {
		t.Fatalf("apply mono: %v", err)
	}
	info := scene.Info()
	if info.Color != "#ff3366" {
		t.Fatalf("color = %q, want valentine tint to survive", info.Color)
	}
	if info.Shape != geometry.ShapeFlower {
		t.Fatalf("shape = %q, want flower", info.Shape)
	}
}

func TestApplyPresetRejectsUnknownNameAndShape(t *testing.T) {
	scene, fld, _ := newTestScene(t)
	before := fld.Shape()

	if err := scene.ApplyPreset("missing"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	//1.- A preset with an unparseable shape is rejected without side effects.
	if err := scene.ApplyPreset("broken"); err == nil {
		t.Fatalf("expected unknown shape error")
	}
	if fld.Shape() != before {
		t.Fatalf("field shape changed on rejected preset")
	}
}

func TestSceneRecordsEventsWhenRecorderAttached(t *testing.T) {
	fld := field.New(geometry.ShapeGalaxy, 50)
	recorder, err := replay.NewRecorder(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	scene := NewScene(fld, "#ffffff", nil, nil, recorder, func() uint64 { return 77 }, logging.NewTestLogger())

	if err := scene.SetShape(geometry.ShapeSaturn); err != nil {
		t.Fatalf("set shape: %v", err)
	}
	//1.- The change lands in the session timeline at the reported tick.
	bundle, err := recorder.Dump("scene-test")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	events, err := replay.LoadEvents(bundle)
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].Type != "shape_change" || events[0].Tick != 77 {
		t.Fatalf("events = %+v", events)
	}
}
