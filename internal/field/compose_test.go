package field

import (
	"math"
	"testing"

	"morphfield/sculptor/internal/geometry"
)

func TestComposeIdentityAtNeutralPose(t *testing.T) {
	//1.- Neutral state at elapsed zero must return the input unchanged.
	p := geometry.Point3{X: 1.5, Y: -2, Z: 0.25}
	got := Compose(p, NeutralState(), 0)
	if math.Abs(got.X-p.X) > 1e-12 || math.Abs(got.Y-p.Y) > 1e-12 || math.Abs(got.Z-p.Z) > 1e-12 {
		t.Fatalf("compose not identity: %+v -> %+v", p, got)
	}
}

func TestComposeBreathingSuppressedWhileInteracting(t *testing.T) {
	state := NeutralState()
	state.Scale = 1.2
	p := geometry.Point3{X: 1, Y: 0, Z: 0}

	//1.- Beyond the deadband the result must not depend on elapsed time via
	// breathing; only the auto-spin angle changes, so compare magnitudes.
	first := Compose(p, state, 0.1)
	second := Compose(p, state, 1.7)
	magFirst := math.Sqrt(first.X*first.X + first.Y*first.Y + first.Z*first.Z)
	magSecond := math.Sqrt(second.X*second.X + second.Y*second.Y + second.Z*second.Z)
	if math.Abs(magFirst-magSecond) > 1e-12 {
		t.Fatalf("breathing leaked into interacting scale: %.12f vs %.12f", magFirst, magSecond)
	}
	if math.Abs(magFirst-1.2) > 1e-12 {
		t.Fatalf("interacting scale = %.12f, want 1.2", magFirst)
	}
}

func TestComposeBreathingPulsesWhenIdle(t *testing.T) {
	p := geometry.Point3{X: 1, Y: 0, Z: 0}
	state := NeutralState()

	//1.- At sin peak the magnitude grows by the breathing depth.
	peak := math.Pi / 2 / breathingSpeed
	got := Compose(p, state, peak)
	mag := math.Sqrt(got.X*got.X + got.Y*got.Y + got.Z*got.Z)
	if math.Abs(mag-(1+breathingDepth)) > 1e-9 {
		t.Fatalf("idle magnitude = %.9f, want %.9f", mag, 1+breathingDepth)
	}
}

func TestComposeTranslationIsNotRotatedOrScaled(t *testing.T) {
	state := NeutralState()
	state.Scale = 2.0
	state.RotY = math.Pi / 2
	state.OffsetX = 10
	state.OffsetY = -4

	//1.- The origin ignores rotation and scale, so it lands exactly on the offset.
	got := Compose(geometry.Point3{}, state, 0)
	if got.X != 10 || got.Y != -4 || got.Z != 0 {
		t.Fatalf("origin moved to %+v, want (10,-4,0)", got)
	}
}

func TestComposeAutoSpinAdvancesWithTime(t *testing.T) {
	state := NeutralState()
	state.Scale = 1.2 // suppress breathing so only rotation varies
	p := geometry.Point3{X: 1, Y: 0, Z: 0}

	a := Compose(p, state, 0)
	b := Compose(p, state, 10)
	if math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Z-b.Z) < 1e-9 {
		t.Fatalf("auto-spin did not rotate the particle: %+v vs %+v", a, b)
	}
}

func TestRotateXYZMatchesAxisRotations(t *testing.T) {
	p := geometry.Point3{X: 1, Y: 0, Z: 0}

	//1.- Quarter turn about Y maps +X onto -Z.
	got := rotateXYZ(p, 0, math.Pi/2, 0)
	if math.Abs(got.X) > 1e-12 || math.Abs(got.Z+1) > 1e-12 {
		t.Fatalf("yaw rotation produced %+v", got)
	}
	//2.- Quarter turn about Z maps +X onto +Y.
	got = rotateXYZ(p, 0, 0, math.Pi/2)
	if math.Abs(got.Y-1) > 1e-12 || math.Abs(got.X) > 1e-12 {
		t.Fatalf("roll rotation produced %+v", got)
	}
	//3.- Quarter turn about X maps +Y onto +Z.
	got = rotateXYZ(geometry.Point3{Y: 1}, math.Pi/2, 0, 0)
	if math.Abs(got.Z-1) > 1e-12 || math.Abs(got.Y) > 1e-12 {
		t.Fatalf("pitch rotation produced %+v", got)
	}
}
