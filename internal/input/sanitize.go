package input

import (
	"fmt"

	"morphfield/sculptor/internal/gesture"
)

// maxHandsPerFrame bounds the payload size a capture client may deliver. The
// tracking model reports at most a handful of hands; anything beyond this is
// a malformed or hostile payload, not a crowd.
const maxHandsPerFrame = 8

// maxLandmarksPerHand bounds the skeleton size per hand.
const maxLandmarksPerHand = 33

// SanitizeHands validates the structural bounds of a landmark payload.
// Coordinate clamping happens later in the extractor; this guard only
// rejects frames whose shape cannot have come from a tracking model.
func SanitizeHands(hands []gesture.Hand) ([]gesture.Hand, error) {
	if len(hands) > maxHandsPerFrame {
		return nil, fmt.Errorf("frame carries %d hands, limit %d", len(hands), maxHandsPerFrame)
	}
	for i, hand := range hands {
		if len(hand) > maxLandmarksPerHand {
			return nil, fmt.Errorf("hand %d carries %d landmarks, limit %d", i, len(hand), maxLandmarksPerHand)
		}
	}
	return hands, nil
}
