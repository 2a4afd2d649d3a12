package gesture

// Landmark indices consumed by the extractor. The capture client sends the
// full 21-point hand skeleton; everything but these three is ignored.
const (
	LandmarkWrist    = 0
	LandmarkThumbTip = 4
	LandmarkIndexTip = 8
)

// landmarkCount is the full hand skeleton size produced by the tracking model.
const landmarkCount = 21

// Landmark is a normalized planar coordinate with origin at the top-left of
// the source video frame.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Hand is the ordered landmark list for one detected hand.
type Hand []Landmark

// usable reports whether the hand carries the indices the extractor reads.
func (h Hand) usable() bool {
	return len(h) > LandmarkWrist && len(h) > LandmarkThumbTip && len(h) > LandmarkIndexTip
}

// landmark returns the clamped landmark at the given index. Coordinates
// outside the normalized frame are pulled back onto its edge rather than
// propagated, per the malformed-input policy.
func (h Hand) landmark(index int) Landmark {
	l := h[index]
	return Landmark{X: clamp01(l.X), Y: clamp01(l.Y)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
