package fieldstats

import (
	"math"
	"math/rand"
	"testing"

	"morphfield/sculptor/internal/geometry"
)

func TestSummarizeEmptyBuffer(t *testing.T) {
	summary := Summarize(nil)
	if summary.Count != 0 || summary.MeanRadius != 0 {
		t.Fatalf("empty buffer should produce a zero summary, got %+v", summary)
	}
}

func TestSummarizeKnownPoints(t *testing.T) {
	points := []geometry.Point3{
		{X: 3, Y: 0, Z: 0},
		{X: 0, Y: 4, Z: 0},
		{X: 0, Y: 0, Z: 5},
	}
	summary := Summarize(points)

	//1.- Mean radius of the fixed triple is (3+4+5)/3.
	if math.Abs(summary.MeanRadius-4) > 1e-12 {
		t.Fatalf("mean radius = %v, want 4", summary.MeanRadius)
	}
	//2.- Extents reflect the axis-aligned placement exactly.
	if summary.ExtentX.Min != 0 || summary.ExtentX.Max != 3 {
		t.Fatalf("x extent = %+v", summary.ExtentX)
	}
	if summary.ExtentY.Min != 0 || summary.ExtentY.Max != 4 {
		t.Fatalf("y extent = %+v", summary.ExtentY)
	}
	if summary.ExtentZ.Min != 0 || summary.ExtentZ.Max != 5 {
		t.Fatalf("z extent = %+v", summary.ExtentZ)
	}
	//3.- Sample standard deviation of {3,4,5} is 1.
	if math.Abs(summary.RadiusStdDev-1) > 1e-12 {
		t.Fatalf("radius stddev = %v, want 1", summary.RadiusStdDev)
	}
}

func TestSaturnCoreFractionMatchesBodySplit(t *testing.T) {
	//1.- Generate a large Saturn buffer and confirm the body/ring split shows
	// up in the core fraction near the 40% target.
	rng := rand.New(rand.NewSource(99))
	points := geometry.Generate(geometry.ShapeSaturn, 200000, rng)
	summary := Summarize(points)
	if math.Abs(summary.CoreFraction-0.4) > 0.01 {
		t.Fatalf("saturn core fraction = %v, want ~0.4", summary.CoreFraction)
	}
}

func TestGalaxyStaysFlat(t *testing.T) {
	//1.- The galaxy disk concentrates mass near the plane, so the Y extent
	// must stay within the documented half-unit band.
	rng := rand.New(rand.NewSource(7))
	summary := Summarize(geometry.Generate(geometry.ShapeGalaxy, 50000, rng))
	if summary.ExtentY.Min < -0.5 || summary.ExtentY.Max > 0.5 {
		t.Fatalf("galaxy y extent out of band: %+v", summary.ExtentY)
	}
}
