package gesture

import "math"

// InteractionSample is one raw gesture reading: the target scale, planar
// offset, and rotation the sculpture should steer toward.
type InteractionSample struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
	RotX    float64
	RotY    float64
	RotZ    float64
}

// Neutral is the sample used when no hands are visible or the capture source
// is unavailable.
func Neutral() InteractionSample {
	return InteractionSample{Scale: 1}
}

// Extract converts zero or more detected hands into an interaction sample.
// Hands missing the required landmark indices are treated as absent for this
// cycle. When more than two hands are visible the first two detected are
// used; the tracking model upstream never reports a stable ordering beyond
// that, so anything further is noise.
func Extract(hands []Hand) InteractionSample {
	//1.- Drop hands that cannot supply wrist, thumb tip, and index tip.
	usable := make([]Hand, 0, 2)
	for _, hand := range hands {
		if hand.usable() {
			usable = append(usable, hand)
		}
		if len(usable) == 2 {
			break
		}
	}

	switch len(usable) {
	case 2:
		return extractTwoHands(usable[0], usable[1])
	case 1:
		return extractOneHand(usable[0])
	default:
		return Neutral()
	}
}

// extractTwoHands derives scale from the wrist separation and pose from the
// wrist midpoint and roll angle.
func extractTwoHands(first, second Hand) InteractionSample {
	w1 := first.landmark(LandmarkWrist)
	w2 := second.landmark(LandmarkWrist)

	//1.- Wrist separation maps linearly from [0.1,0.8] onto scale [0.5,2.5].
	distance := clamp(math.Hypot(w2.X-w1.X, w2.Y-w1.Y), 0.1, 0.8)
	scale := 0.5 + (distance-0.1)/0.7*2.0

	//2.- The midpoint pans the sculpture; the horizontal axis is flipped to
	// compensate for the mirrored video preview and the vertical axis because
	// image-space y grows downward.
	centerX := (w1.X + w2.X) / 2
	centerY := (w1.Y + w2.Y) / 2

	return InteractionSample{
		Scale:   scale,
		OffsetX: (0.5 - centerX) * 8,
		OffsetY: -(centerY - 0.5) * 6,
		RotX:    (centerY - 0.5) * 2.0,
		RotY:    (0.5 - centerX) * 2.0,
		//3.- Roll follows the line between the wrists, mirrored like the pan.
		RotZ: -math.Atan2(w2.Y-w1.Y, w2.X-w1.X),
	}
}

// extractOneHand derives scale from the pinch distance and pose from the
// wrist alone. A single wrist gives no reliable roll signal.
func extractOneHand(hand Hand) InteractionSample {
	thumb := hand.landmark(LandmarkThumbTip)
	index := hand.landmark(LandmarkIndexTip)
	wrist := hand.landmark(LandmarkWrist)

	//1.- Pinch distance maps linearly from [0.02,0.2] onto scale [0.5,2.0].
	pinch := clamp(math.Hypot(index.X-thumb.X, index.Y-thumb.Y), 0.02, 0.2)
	scale := 0.5 + (pinch-0.02)/0.18*1.5

	return InteractionSample{
		Scale:   scale,
		OffsetX: (0.5 - wrist.X) * 8,
		OffsetY: -(wrist.Y - 0.5) * 6,
		RotX:    (wrist.Y - 0.5) * 3.0,
		RotY:    (0.5 - wrist.X) * 3.0,
	}
}
