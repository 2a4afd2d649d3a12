package engine

import (
	"context"
	"sync/atomic"
	"time"

	"morphfield/sculptor/internal/field"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/gesture"
)

// DefaultTickHz is the reference display refresh cadence.
const DefaultTickHz = 60.0

// FrameSink receives the rendered particle buffer once per tick. The buffer
// is owned by the scheduler and rewritten on the next tick, so sinks must
// encode or copy it before returning and must never mutate it.
type FrameSink interface {
	PublishFrame(tick uint64, shape geometry.ShapeKind, points []geometry.Point3)
}

// FrameSinkFunc adapts a function into a FrameSink.
type FrameSinkFunc func(tick uint64, shape geometry.ShapeKind, points []geometry.Point3)

// PublishFrame implements FrameSink.
func (f FrameSinkFunc) PublishFrame(tick uint64, shape geometry.ShapeKind, points []geometry.Point3) {
	f(tick, shape, points)
}

// Scheduler drives the particle field at a fixed animation tick: each step
// reads the latest interaction sample from the shared cell, advances the
// smoothing filters, recomposes every particle, and hands the buffer to the
// registered sinks.
type Scheduler struct {
	fld     *field.Field
	cell    *gesture.Cell
	sinks   []FrameSink
	monitor *TickMonitor

	step    time.Duration
	elapsed float64
	tick    atomic.Uint64

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewScheduler binds a field and interaction cell to the given sinks.
func NewScheduler(fld *field.Field, cell *gesture.Cell, targetHz float64, monitor *TickMonitor, sinks ...FrameSink) *Scheduler {
	if targetHz <= 0 {
		targetHz = DefaultTickHz
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Scheduler{
		fld:     fld,
		cell:    cell,
		sinks:   sinks,
		monitor: monitor,
		step:    interval,
	}
}

// Step runs a single animation tick. Exposed so tests can drive the
// scheduler without real time.
func (s *Scheduler) Step(dt time.Duration) {
	if s == nil || s.fld == nil || dt <= 0 {
		return
	}
	started := time.Now()

	//1.- Read whatever sample is current; a missing producer leaves the
	// neutral pose in place and the field keeps breathing on its own.
	sample := s.cell.Load()

	//2.- Advance smoothing and recompose the full render buffer.
	seconds := dt.Seconds()
	s.elapsed += seconds
	points := s.fld.Advance(sample, seconds, s.elapsed)
	tick := s.tick.Add(1)

	//3.- Fan the buffer out to every sink before the next tick overwrites it.
	shape := s.fld.Shape()
	for _, sink := range s.sinks {
		if sink != nil {
			sink.PublishFrame(tick, shape, points)
		}
	}

	s.monitor.Observe(time.Since(started))
}

// Start begins ticking until the context is cancelled or Stop is invoked.
// The tick goroutine accumulates real elapsed time and runs fixed steps while
// catching up, so a stalled host does not slow the sculpture's clock.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.ticker = time.NewTicker(s.step)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		defer s.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case now := <-s.ticker.C:
				accumulator += now.Sub(last)
				last = now
				for accumulator >= s.step {
					s.Step(s.step)
					accumulator -= s.step
				}
			}
		}
	}()
}

// Stop halts the tick goroutine and waits for it to exit. Safe to call even
// when the context was already cancelled.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	if s.stop != nil {
		select {
		case <-s.stop:
		default:
			close(s.stop)
		}
	}
	if s.done != nil {
		<-s.done
		s.done = nil
	}
}

// StepDuration exposes the configured timestep.
func (s *Scheduler) StepDuration() time.Duration {
	if s == nil {
		return 0
	}
	return s.step
}

// Ticks reports how many animation steps have run.
func (s *Scheduler) Ticks() uint64 {
	if s == nil {
		return 0
	}
	return s.tick.Load()
}
