package gesture

import "sync/atomic"

// Cell is the single-slot hand-off between the detection cadence and the
// animation cadence. The producer overwrites, the consumer reads whatever is
// current; a superseded sample is simply lost. Only the most recent gesture
// state matters, so there is no queue and neither side ever blocks.
type Cell struct {
	latest atomic.Pointer[InteractionSample]
}

// NewCell returns a cell primed with the neutral sample so the consumer never
// observes a missing value.
func NewCell() *Cell {
	c := &Cell{}
	neutral := Neutral()
	c.latest.Store(&neutral)
	return c
}

// Store publishes a new sample, replacing whatever was there.
func (c *Cell) Store(sample InteractionSample) {
	if c == nil {
		return
	}
	clone := sample
	c.latest.Store(&clone)
}

// Load returns the most recently stored sample.
func (c *Cell) Load() InteractionSample {
	if c == nil {
		return Neutral()
	}
	return *c.latest.Load()
}

// Reset returns the cell to the neutral sample, used when the capture source
// disconnects so the sculpture settles back to its idle pose.
func (c *Cell) Reset() {
	if c == nil {
		return
	}
	neutral := Neutral()
	c.latest.Store(&neutral)
}
