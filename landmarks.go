package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"morphfield/sculptor/internal/gesture"
	"morphfield/sculptor/internal/input"
)

// landmarkSchemaVersion is the only payload revision this service accepts.
const landmarkSchemaVersion = "1"

var (
	errLandmarkEmptyPayload   = errors.New("empty landmark payload")
	errLandmarkMissingVersion = errors.New("landmark frame missing schema version")
	errLandmarkBadVersion     = errors.New("unsupported landmark schema version")
	errLandmarkSequence       = errors.New("landmark frame sequence id must be positive")
)

// landmarkPayload mirrors the JSON layout produced by the capture client: one
// entry per detected hand, each an ordered list of normalized landmarks.
type landmarkPayload struct {
	SchemaVersion string         `json:"schema_version"`
	SequenceID    uint64         `json:"sequence_id"`
	SentAtMs      int64          `json:"sent_at_ms,omitempty"`
	Hands         []gesture.Hand `json:"hands"`
}

// decodeLandmarkPayload parses a websocket frame into a structured payload.
func decodeLandmarkPayload(raw []byte) (*landmarkPayload, error) {
	//1.- Ensure we have data to decode before hitting JSON parsing.
	if len(raw) == 0 {
		return nil, errLandmarkEmptyPayload
	}
	var payload landmarkPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// validateLandmarkPayload enforces required metadata on the payload.
func validateLandmarkPayload(payload *landmarkPayload) error {
	//1.- Guard against nil pointers coming from earlier processing steps.
	if payload == nil {
		return errors.New("landmark payload is nil")
	}
	if payload.SchemaVersion == "" {
		return errLandmarkMissingVersion
	}
	if payload.SchemaVersion != landmarkSchemaVersion {
		return fmt.Errorf("%w: %q", errLandmarkBadVersion, payload.SchemaVersion)
	}
	if payload.SequenceID == 0 {
		return errLandmarkSequence
	}
	return nil
}

// SentAt converts the optional capture timestamp into a time.Time instance.
func (payload *landmarkPayload) SentAt() time.Time {
	//1.- Treat missing or zero timestamps as unset so freshness derives from
	// arrival time.
	if payload == nil || payload.SentAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(payload.SentAtMs)
}

// handleLandmarks runs one inbound capture frame through decoding, gating,
// sanitisation and extraction, then publishes the result to the shared cell.
func (h *Hub) handleLandmarks(clientID string, raw []byte) error {
	payload, err := decodeLandmarkPayload(raw)
	if err != nil {
		return err
	}
	if err := validateLandmarkPayload(payload); err != nil {
		return err
	}

	if h.gate != nil {
		//1.- Evaluate sequencing and freshness guards before extraction.
		frame := input.Frame{ClientID: clientID, SequenceID: payload.SequenceID}
		if ts := payload.SentAt(); !ts.IsZero() {
			frame.SentAt = ts
		}
		decision := h.gate.Evaluate(frame)
		if !decision.Accepted {
			return fmt.Errorf("landmark gate rejected frame: %s", decision.Reason)
		}
	}

	//2.- Bound the hand and landmark counts so hostile payloads cannot balloon
	// extraction cost.
	hands, err := input.SanitizeHands(payload.Hands)
	if err != nil {
		return err
	}

	//3.- Extraction never fails: malformed hands degrade to the neutral pose.
	sample := gesture.Extract(hands)
	if h.cell != nil {
		h.cell.Store(sample)
	}
	return nil
}
