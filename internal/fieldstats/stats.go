// Package fieldstats derives distribution diagnostics from a particle buffer
// so operators can sanity-check a sculpture without rendering it.
package fieldstats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"morphfield/sculptor/internal/geometry"
)

// saturnCoreRadius separates the spherical body from the ring band when
// classifying Saturn particles by their distance from the Y axis.
const saturnCoreRadius = 1.75

// AxisExtent captures the min/max reach of the field along one axis.
type AxisExtent struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary describes the spatial distribution of a particle buffer.
type Summary struct {
	Count        int        `json:"count"`
	MeanRadius   float64    `json:"mean_radius"`
	RadiusStdDev float64    `json:"radius_std_dev"`
	ExtentX      AxisExtent `json:"extent_x"`
	ExtentY      AxisExtent `json:"extent_y"`
	ExtentZ      AxisExtent `json:"extent_z"`
	// CoreFraction is the share of particles inside the Saturn body radius.
	// It is only meaningful for the saturn shape but is reported for all.
	CoreFraction float64 `json:"core_fraction"`
}

// Summarize computes distribution statistics for the supplied buffer.
func Summarize(points []geometry.Point3) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	//1.- Collect per-particle radii and track extents in a single pass.
	radii := make([]float64, len(points))
	core := 0
	summary := Summary{
		Count:   len(points),
		ExtentX: AxisExtent{Min: math.Inf(1), Max: math.Inf(-1)},
		ExtentY: AxisExtent{Min: math.Inf(1), Max: math.Inf(-1)},
		ExtentZ: AxisExtent{Min: math.Inf(1), Max: math.Inf(-1)},
	}
	for i, p := range points {
		radii[i] = math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		if math.Hypot(p.X, p.Z) < saturnCoreRadius {
			core++
		}
		summary.ExtentX.Min = math.Min(summary.ExtentX.Min, p.X)
		summary.ExtentX.Max = math.Max(summary.ExtentX.Max, p.X)
		summary.ExtentY.Min = math.Min(summary.ExtentY.Min, p.Y)
		summary.ExtentY.Max = math.Max(summary.ExtentY.Max, p.Y)
		summary.ExtentZ.Min = math.Min(summary.ExtentZ.Min, p.Z)
		summary.ExtentZ.Max = math.Max(summary.ExtentZ.Max, p.Z)
	}

	//2.- Radius moments come from gonum so the stats match its estimators.
	summary.MeanRadius = stat.Mean(radii, nil)
	if len(radii) > 1 {
		summary.RadiusStdDev = stat.StdDev(radii, nil)
	}
	summary.CoreFraction = float64(core) / float64(len(points))
	return summary
}
