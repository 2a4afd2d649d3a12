package input

import (
	"sync"
	"time"
)

// Clock exposes the current time for gating decisions.
type Clock interface {
	Now() time.Time
}

// systemClock relies on time.Now for production code paths.
type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// Config controls the freshness and throughput gates applied to landmark frames.
type Config struct {
	// MaxAge drops frames whose capture timestamp lags arrival by more than
	// this duration; a stale gesture steering the sculpture feels broken.
	MaxAge time.Duration
	// MinInterval bounds how often a single capture client may deliver
	// frames; camera sources never legitimately exceed ~120 Hz.
	MinInterval time.Duration
}

// DefaultConfig is tuned for a 30 Hz hand-tracking source.
var DefaultConfig = Config{
	MaxAge:      250 * time.Millisecond,
	MinInterval: 5 * time.Millisecond,
}

// DropReason enumerates why a landmark frame was rejected by the gate.
type DropReason string

const (
	DropReasonNone        DropReason = ""
	DropReasonSequence    DropReason = "sequence"
	DropReasonStale       DropReason = "stale"
	DropReasonRateLimited DropReason = "rate_limit"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Decision summarises whether a frame passed the gate.
type Decision struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// Frame captures the metadata required to gate a landmark update.
type Frame struct {
	ClientID   string
	SequenceID uint64
	SentAt     time.Time
}

type clientState struct {
	lastSequence uint64
	lastAccepted time.Time
}

// DropCounters aggregates per-reason drop counts.
type DropCounters struct {
	Sequence    uint64 `json:"sequence"`
	Stale       uint64 `json:"stale"`
	RateLimited uint64 `json:"rate_limited"`
}

// Gate validates sequencing, freshness, and throughput for inbound landmark
// frames. A rejected frame is simply dropped; the animation keeps running on
// whatever sample is already in the cell.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	drops   map[string]DropCounters
	clients map[string]*clientState
}

// Option customises gate construction.
type Option func(*Gate)

// WithClock overrides the clock used for latency calculations in tests.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// NewGate constructs a gate with the supplied configuration.
func NewGate(cfg Config, opts ...Option) *Gate {
	//1.- Normalise negative intervals to disable the corresponding checks.
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	gate := &Gate{
		cfg:     cfg,
		clock:   systemClock{},
		drops:   make(map[string]DropCounters),
		clients: make(map[string]*clientState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Evaluate applies sequencing, freshness, and throughput guards to the frame.
func (g *Gate) Evaluate(frame Frame) Decision {
	decision := Decision{Accepted: true}
	if g == nil || frame.ClientID == "" {
		return decision
	}
	now := g.clock.Now()
	if !frame.SentAt.IsZero() {
		//1.- Capture-to-arrival delay, clamped at zero for skewed clocks.
		delay := now.Sub(frame.SentAt)
		if delay < 0 {
			delay = 0
		}
		decision.Delay = delay
	}

	g.mu.Lock()
	state := g.clients[frame.ClientID]
	if state == nil {
		state = &clientState{}
		g.clients[frame.ClientID] = state
	}

	switch {
	case frame.SequenceID == 0:
		decision = Decision{Accepted: false, Reason: DropReasonSequence, Delay: decision.Delay}
	case state.lastSequence == 0:
		//2.- The first frame from a client always passes baseline checks.
		state.lastSequence = frame.SequenceID
		state.lastAccepted = now
	default:
		if frame.SequenceID <= state.lastSequence {
			decision = Decision{Accepted: false, Reason: DropReasonSequence, Delay: decision.Delay}
			break
		}
		if g.cfg.MinInterval > 0 && now.Sub(state.lastAccepted) < g.cfg.MinInterval {
			decision = Decision{Accepted: false, Reason: DropReasonRateLimited, Delay: decision.Delay}
			break
		}
		if g.cfg.MaxAge > 0 && decision.Delay > g.cfg.MaxAge {
			decision = Decision{Accepted: false, Reason: DropReasonStale, Delay: decision.Delay}
			break
		}
		//3.- Promote the frame as latest accepted once every guard passes.
		state.lastSequence = frame.SequenceID
		state.lastAccepted = now
	}

	if !decision.Accepted {
		counters := g.drops[frame.ClientID]
		switch decision.Reason {
		case DropReasonSequence:
			counters.Sequence++
		case DropReasonStale:
			counters.Stale++
		case DropReasonRateLimited:
			counters.RateLimited++
		}
		g.drops[frame.ClientID] = counters
	}
	g.mu.Unlock()

	return decision
}

// Forget clears gating state when a capture client disconnects.
func (g *Gate) Forget(clientID string) {
	if g == nil || clientID == "" {
		return
	}
	g.mu.Lock()
	delete(g.clients, clientID)
	delete(g.drops, clientID)
	g.mu.Unlock()
}

// Metrics returns a copy of the per-client drop counters for diagnostics.
func (g *Gate) Metrics() map[string]DropCounters {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.drops) == 0 {
		return nil
	}
	clone := make(map[string]DropCounters, len(g.drops))
	for clientID, counters := range g.drops {
		clone[clientID] = counters
	}
	return clone
}

// Totals aggregates drop counters across all clients.
func (g *Gate) Totals() DropCounters {
	if g == nil {
		return DropCounters{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var totals DropCounters
	for _, counters := range g.drops {
		totals.Sequence += counters.Sequence
		totals.Stale += counters.Stale
		totals.RateLimited += counters.RateLimited
	}
	return totals
}
