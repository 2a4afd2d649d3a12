package field

import (
	"math"

	"morphfield/sculptor/internal/geometry"
)

const (
	// breathingDeadband is how far the smoothed scale must drift from 1.0
	// before the idle pulse is suppressed, so deliberate pinches read crisp.
	breathingDeadband = 0.05
	breathingDepth    = 0.05
	breathingSpeed    = 2.0

	// autoSpinRate is the constant slow rotation about the vertical axis so
	// the field never looks static.
	autoSpinRate = 0.05
)

// finalScale layers the idle breathing pulse on top of the smoothed scale
// unless the user is actively scaling the sculpture.
func finalScale(smoothedScale, elapsed float64) float64 {
	interacting := math.Abs(smoothedScale-1.0) > breathingDeadband
	if interacting {
		return smoothedScale
	}
	breathing := math.Sin(elapsed*breathingSpeed)*breathingDepth + 1
	return smoothedScale * breathing
}

// Compose transforms one morphed particle into its rendered position. It is
// pure: every particle in a tick sees the same state and elapsed time, and no
// particle depends on another.
//
// Order matters. Rotation runs before scale and translation so the planar
// pan stays anchored to the hand position regardless of orientation.
func Compose(base geometry.Point3, state SmoothedState, elapsed float64) geometry.Point3 {
	p := rotateXYZ(base, state.RotX, state.RotY+elapsed*autoSpinRate, state.RotZ)

	s := finalScale(state.Scale, elapsed)
	p.X *= s
	p.Y *= s
	p.Z *= s

	p.X += state.OffsetX
	p.Y += state.OffsetY
	return p
}

// rotateXYZ applies the Euler rotation in Z, then Y, then X order, matching
// the XYZ matrix convention of the viewer's scene graph.
func rotateXYZ(p geometry.Point3, rx, ry, rz float64) geometry.Point3 {
	//1.- Roll about the depth axis.
	sinZ, cosZ := math.Sincos(rz)
	x := p.X*cosZ - p.Y*sinZ
	y := p.X*sinZ + p.Y*cosZ
	z := p.Z

	//2.- Yaw about the vertical axis.
	sinY, cosY := math.Sincos(ry)
	x, z = x*cosY+z*sinY, -x*sinY+z*cosY

	//3.- Pitch about the horizontal axis.
	sinX, cosX := math.Sincos(rx)
	y, z = y*cosX-z*sinX, y*sinX+z*cosX

	return geometry.Point3{X: x, Y: y, Z: z}
}
