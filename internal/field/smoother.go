package field

import "math"

// Smoothing fractions calibrated at the 60 Hz reference tick. The smoother
// converts each into a continuous-time decay rate so variable tick intervals
// settle at the same speed.
const (
	alphaMorph    = 0.15
	alphaScale    = 0.15
	alphaOffset   = 0.1
	alphaRotation = 0.1

	referenceHz = 60.0
)

// decayRate converts a per-tick smoothing fraction at the reference cadence
// into a continuous decay constant.
func decayRate(alpha float64) float64 {
	return -math.Log(1-alpha) * referenceHz
}

var (
	morphRate    = decayRate(alphaMorph)
	scaleRate    = decayRate(alphaScale)
	offsetRate   = decayRate(alphaOffset)
	rotationRate = decayRate(alphaRotation)
)

// effectiveAlpha derives the per-tick blend factor for an arbitrary timestep.
// At dt = 1/60 s it reproduces the reference fraction exactly.
func effectiveAlpha(rate, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-rate*dt)
}

// approach moves v toward target by the fraction alpha and returns the result.
func approach(v, target, alpha float64) float64 {
	return v + (target-v)*alpha
}

// SmoothedState is the low-pass filtered interaction pose applied to every
// particle. It is mutated in place each tick and never replaced wholesale, so
// the rendered motion stays continuous across noisy input.
type SmoothedState struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	RotX    float64
	RotY    float64
	RotZ    float64
}

// NeutralState is the pose a fresh field starts from.
func NeutralState() SmoothedState {
	return SmoothedState{Scale: 1}
}

// advance filters the state toward the raw sample values over the timestep.
func (s *SmoothedState) advance(targetScale, targetOffsetX, targetOffsetY, targetRotX, targetRotY, targetRotZ, dt float64) {
	aScale := effectiveAlpha(scaleRate, dt)
	aOffset := effectiveAlpha(offsetRate, dt)
	aRotation := effectiveAlpha(rotationRate, dt)

	s.Scale = approach(s.Scale, targetScale, aScale)
	s.OffsetX = approach(s.OffsetX, targetOffsetX, aOffset)
	s.OffsetY = approach(s.OffsetY, targetOffsetY, aOffset)
	s.RotX = approach(s.RotX, targetRotX, aRotation)
	s.RotY = approach(s.RotY, targetRotY, aRotation)
	s.RotZ = approach(s.RotZ, targetRotZ, aRotation)
}
