package field

import (
	"math/rand"
	"sync"

	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/gesture"
)

// DefaultParticleCount is the number of particles a field carries unless
// configured otherwise.
const DefaultParticleCount = 4000

// Field owns the three parallel particle buffers and the smoothed
// interaction state. The base and current buffers are allocated once and
// reused for the field's lifetime; the target buffer is rewritten in place
// whenever the shape changes. Index i refers to the same logical particle in
// all three buffers, so a shape change never re-sorts the field.
type Field struct {
	mu    sync.Mutex
	count int
	shape geometry.ShapeKind
	rng   geometry.Rand

	base    []geometry.Point3
	current []geometry.Point3
	target  []geometry.Point3

	state SmoothedState
}

// Option customises field construction.
type Option func(*Field)

// WithRand substitutes the random source used for shape generation,
// primarily so tests can pin a seed.
func WithRand(rng geometry.Rand) Option {
	return func(f *Field) {
		if rng != nil {
			f.rng = rng
		}
	}
}

// New allocates a field of count particles seeded with the given shape.
func New(shape geometry.ShapeKind, count int, opts ...Option) *Field {
	if count <= 0 {
		count = DefaultParticleCount
	}
	f := &Field{
		count: count,
		shape: shape,
		rng:   rand.New(rand.NewSource(rand.Int63())),
		state: NeutralState(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	//1.- Allocate every buffer once; ticks only rewrite their contents.
	f.target = geometry.Generate(shape, count, f.rng)
	f.current = make([]geometry.Point3, count)
	copy(f.current, f.target)
	f.base = make([]geometry.Point3, count)
	copy(f.base, f.target)
	return f
}

// Count returns the particle budget of the field.
func (f *Field) Count() int {
	if f == nil {
		return 0
	}
	return f.count
}

// Shape returns the shape the field is currently morphing toward.
func (f *Field) Shape() geometry.ShapeKind {
	if f == nil {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shape
}

// SetShape swaps the morph target wholesale. The current buffer is left
// untouched so the morph continues from wherever the particles are, even if
// the previous morph never settled.
func (f *Field) SetShape(shape geometry.ShapeKind) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if shape == f.shape {
		return
	}
	f.shape = shape
	geometry.GenerateInto(&f.target, shape, f.count, f.rng)
}

// Resize changes the particle budget, regenerating every buffer at the new
// size. The morph restarts from the freshly generated distribution, which is
// acceptable because resizes are rare operator actions, not per-tick events.
func (f *Field) Resize(count int) {
	if f == nil || count <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if count == f.count {
		return
	}
	f.count = count
	geometry.GenerateInto(&f.target, f.shape, count, f.rng)
	f.current = make([]geometry.Point3, count)
	copy(f.current, f.target)
	f.base = make([]geometry.Point3, count)
	copy(f.base, f.target)
}

// State returns a copy of the smoothed interaction pose.
func (f *Field) State() SmoothedState {
	if f == nil {
		return NeutralState()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Advance runs one animation tick: it filters the interaction state toward
// the latest sample, moves every particle toward its morph target, and
// recomposes the render buffer. It returns the buffer, which remains valid
// until the next Advance call and must be treated as read-only by callers.
func (f *Field) Advance(sample gesture.InteractionSample, dt, elapsed float64) []geometry.Point3 {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	//1.- Low-pass the interaction channels toward the raw gesture targets.
	f.state.advance(sample.Scale, sample.OffsetX, sample.OffsetY, sample.RotX, sample.RotY, sample.RotZ, dt)

	//2.- Morph each coordinate toward the target shape with its own filter.
	aMorph := effectiveAlpha(morphRate, dt)
	for i := range f.current {
		f.current[i].X = approach(f.current[i].X, f.target[i].X, aMorph)
		f.current[i].Y = approach(f.current[i].Y, f.target[i].Y, aMorph)
		f.current[i].Z = approach(f.current[i].Z, f.target[i].Z, aMorph)
	}

	//3.- Compose the final position per particle; no particle depends on
	// another, so this loop is safe to parallelize if it ever shows up in a
	// profile.
	for i := range f.base {
		f.base[i] = Compose(f.current[i], f.state, elapsed)
	}
	return f.base
}

// Base exposes the render buffer without advancing the simulation, primarily
// for diagnostics endpoints.
func (f *Field) Base() []geometry.Point3 {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]geometry.Point3, len(f.base))
	copy(out, f.base)
	return out
}
