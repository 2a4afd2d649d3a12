package geometry

import (
	"math"
	"math/rand"
	"strings"
)

// Point3 is a position in sculpture space.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// Finite reports whether every coordinate is a finite number.
func (p Point3) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// ShapeKind identifies a selectable sculpture distribution.
type ShapeKind string

const (
	ShapeGalaxy    ShapeKind = "galaxy"
	ShapeHeart     ShapeKind = "heart"
	ShapeFlower    ShapeKind = "flower"
	ShapeSaturn    ShapeKind = "saturn"
	ShapeFireworks ShapeKind = "fireworks"
)

// Shapes lists every selectable shape in display order.
var Shapes = []ShapeKind{ShapeGalaxy, ShapeHeart, ShapeFlower, ShapeSaturn, ShapeFireworks}

// ParseShape resolves a user supplied identifier to a known shape.
func ParseShape(raw string) (ShapeKind, bool) {
	kind := ShapeKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Shapes {
		if kind == known {
			return kind, true
		}
	}
	return kind, false
}

// Rand is the subset of math/rand consumed by the generators so tests can
// substitute a seeded source.
type Rand interface {
	Float64() float64
}

// Generate samples count target positions for the requested shape. Unknown
// shapes fall back to a uniform cube so the field stays renderable.
func Generate(kind ShapeKind, count int, rng Rand) []Point3 {
	points := make([]Point3, 0, max(count, 0))
	GenerateInto(&points, kind, count, rng)
	return points
}

// GenerateInto rewrites dst in place with count freshly sampled positions,
// reusing its backing storage when the capacity allows.
func GenerateInto(dst *[]Point3, kind ShapeKind, count int, rng Rand) {
	if dst == nil || count < 0 {
		return
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	//1.- Reuse the existing allocation whenever the buffer is large enough.
	buf := (*dst)[:0]
	if cap(buf) < count {
		buf = make([]Point3, 0, count)
	}
	//2.- Sample every particle independently from the shape's distribution.
	sampler := samplerFor(kind)
	for i := 0; i < count; i++ {
		buf = append(buf, sampler(rng))
	}
	*dst = buf
}

func samplerFor(kind ShapeKind) func(Rand) Point3 {
	switch kind {
	case ShapeHeart:
		return sampleHeart
	case ShapeGalaxy:
		return sampleGalaxy
	case ShapeSaturn:
		return sampleSaturn
	case ShapeFlower:
		return sampleFlower
	case ShapeFireworks:
		return sampleFireworks
	default:
		return sampleCube
	}
}

// sampleHeart traces the classic sextic heart curve with jitter, filling the
// interior for roughly half of the particles.
func sampleHeart(rng Rand) Point3 {
	t := rng.Float64() * 2 * math.Pi
	x := 16 * math.Pow(math.Sin(t), 3)
	y := 13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t)

	p := Point3{
		X: x*0.15 + (rng.Float64() - 0.5),
		Y: y*0.15 + (rng.Float64() - 0.5),
		Z: rng.Float64()*2 - 1,
	}
	//1.- Collapse half the points toward the origin so the heart reads as solid.
	if rng.Float64() < 0.5 {
		s := rng.Float64()
		p.X *= s
		p.Y *= s
		p.Z *= s
	}
	return p
}

// sampleGalaxy lays particles along a three-turn spiral, thicker near the core.
func sampleGalaxy(rng Rand) Point3 {
	theta := rng.Float64() * 6 * math.Pi
	r := rng.Float64() * 5
	arm := r + 0.5*theta
	return Point3{
		X: arm * math.Cos(theta) * 0.3,
		Y: (rng.Float64() - 0.5) * (10 - r) * 0.1,
		Z: arm * math.Sin(theta) * 0.3,
	}
}

// saturnBodyFraction is the probability a particle lands on the planet sphere
// rather than the ring.
const saturnBodyFraction = 0.4

func sampleSaturn(rng Rand) Point3 {
	if rng.Float64() < saturnBodyFraction {
		//1.- Uniform-area spherical surface sample for the planet body.
		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)
		const radius = 1.5
		sinPhi := math.Sin(phi)
		return Point3{
			X: radius * sinPhi * math.Cos(theta),
			Y: radius * math.Cos(phi),
			Z: radius * sinPhi * math.Sin(theta),
		}
	}
	//2.- Flat ring between radii 2.0 and 4.5 with slight vertical wobble.
	ringRadius := 2.0 + rng.Float64()*2.5
	angle := rng.Float64() * 2 * math.Pi
	return Point3{
		X: ringRadius * math.Cos(angle),
		Y: (rng.Float64() - 0.5) * 0.1,
		Z: ringRadius * math.Sin(angle),
	}
}

// sampleFlower follows an eight-petal rose curve swept through a shallow
// depth angle.
func sampleFlower(rng Rand) Point3 {
	theta := rng.Float64() * 2 * math.Pi
	r := math.Cos(4*theta)*3 + 1
	phi := (rng.Float64() - 0.5) * math.Pi / 2
	cosPhi := math.Cos(phi)
	return Point3{
		X: r * math.Cos(theta) * cosPhi,
		Y: r * math.Sin(theta) * cosPhi,
		Z: r * math.Sin(phi),
	}
}

// sampleFireworks scatters particles in a burst that is denser near the
// center: a uniform direction scaled by a doubly-uniform radius.
func sampleFireworks(rng Rand) Point3 {
	theta := rng.Float64() * 2 * math.Pi
	phi := math.Acos(2*rng.Float64() - 1)
	r := rng.Float64() * 4 * rng.Float64()
	sinPhi := math.Sin(phi)
	return Point3{
		X: r * sinPhi * math.Cos(theta),
		Y: r * math.Cos(phi),
		Z: r * sinPhi * math.Sin(theta),
	}
}

// sampleCube is the fallback distribution for unrecognized shapes.
func sampleCube(rng Rand) Point3 {
	return Point3{
		X: rng.Float64()*10 - 5,
		Y: rng.Float64()*10 - 5,
		Z: rng.Float64()*10 - 5,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
