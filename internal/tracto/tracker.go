package tracto

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibertrack/internal/monitoring"
)

// TrackerConfig holds the immutable parameters of one tracking run.
// Set once before Run; never mutated mid-run.
type TrackerConfig struct {
	StepWidth            float64 // world units advanced per iteration
	MaxIterations        int     // per-direction iteration budget
	ProbabilityThreshold float64 // continuation probability cut-off
	MinLength            float64 // minimum streamline arc length (world units)
	MaxLength            float64 // maximum streamline arc length (world units)
	WindowDepth          int     // context window history depth K
	Workers              int     // parallel workers per iteration phase
}

// DefaultTrackerConfig returns the default tracking parameters.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		StepWidth:            1.0,
		MaxIterations:        200,
		ProbabilityThreshold: 0.5,
		MinLength:            20,
		MaxLength:            200,
		WindowDepth:          1,
		Workers:              runtime.GOMAXPROCS(0),
	}
}

// Validate checks that the configuration values form a runnable set.
func (c TrackerConfig) Validate() error {
	if c.StepWidth <= 0 {
		return fmt.Errorf("step width must be positive, got %v", c.StepWidth)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.ProbabilityThreshold < 0 || c.ProbabilityThreshold > 1 {
		return fmt.Errorf("probability threshold must be in [0,1], got %v", c.ProbabilityThreshold)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("min length must be non-negative, got %v", c.MinLength)
	}
	if c.MaxLength > 0 && c.MaxLength < c.MinLength {
		return fmt.Errorf("max length %v is below min length %v", c.MaxLength, c.MinLength)
	}
	if c.WindowDepth < 1 {
		return fmt.Errorf("window depth must be >= 1, got %d", c.WindowDepth)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}

// Tracker drives batched bidirectional streamline propagation over a
// fixed volume with a fixed predictor. The volume, interpolator and
// configuration are read-only for the lifetime of a run; the only
// mutated state is per-particle and exclusively owned.
type Tracker struct {
	cfg    TrackerConfig
	vol    *Volume
	interp *Interpolator
	pred   Predictor
	mask   *Mask

	emitsProb bool

	// progressEvery controls how often the pass loop logs progress.
	// Zero disables progress logging.
	progressEvery int
}

// TrackerOption customises a Tracker at construction time.
type TrackerOption func(*Tracker)

// WithMask restricts tracking to non-zero voxels of a binary mask
// sharing the volume's grid shape. Particles stepping into a zero voxel
// terminate with CauseOutOfMask.
func WithMask(m *Mask) TrackerOption {
	return func(t *Tracker) { t.mask = m }
}

// WithPostprocess applies a transform to every interpolated signal
// vector before it enters the context window.
func WithPostprocess(f PostprocessFunc) TrackerOption {
	return func(t *Tracker) { t.interp = NewInterpolator(t.vol, f) }
}

// WithProgressLogging logs active-particle counts every n iterations
// through the monitoring package logger.
func WithProgressLogging(n int) TrackerOption {
	return func(t *Tracker) { t.progressEvery = n }
}

// NewTracker validates the configuration and the predictor/window shape
// contract. Shape mismatches are run-level configuration errors and
// surface here, before any particle work starts.
func NewTracker(cfg TrackerConfig, vol *Volume, pred Predictor, opts ...TrackerOption) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	if vol == nil {
		return nil, fmt.Errorf("tracker requires a volume")
	}
	if pred == nil {
		return nil, fmt.Errorf("tracker requires a predictor")
	}

	t := &Tracker{
		cfg:       cfg,
		vol:       vol,
		interp:    NewInterpolator(vol, nil),
		pred:      pred,
		emitsProb: pred.EmitsProbability(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if want, got := pred.InputLength(), cfg.WindowDepth*t.interp.SampleWidth(); want != got {
		return nil, fmt.Errorf("%w: predictor expects %d values, window provides %d (depth %d x width %d)",
			ErrInputLengthMismatch, want, got, cfg.WindowDepth, t.interp.SampleWidth())
	}
	return t, nil
}

// Run tracks every seed bidirectionally and returns the assembled,
// length-filtered streamlines. Seed identity is preserved: output order
// follows input seed order and Result.SeedIndices maps each streamline
// back to its seed.
//
// Cancelling ctx aborts all remaining active particles; already retired
// particles keep their frozen histories and the error is returned after
// state is left consistent.
func (t *Tracker) Run(ctx context.Context, seeds []r3.Vec) (*Result, error) {
	if len(seeds) == 0 {
		return nil, ErrEmptySeeds
	}

	width := t.interp.SampleWidth()
	forward := t.newParticles(seeds, false, width)
	reverse := t.newParticles(seeds, true, width)

	if err := t.runPass(ctx, "forward", forward); err != nil {
		return nil, err
	}
	if err := t.runPass(ctx, "reverse", reverse); err != nil {
		return nil, err
	}

	return t.assemble(seeds, forward, reverse), nil
}

// newParticles builds a pre-allocated particle arena, one slot per
// seed. Reverse-pass particles flip their first resolved direction so
// the two passes leave the seed on opposite sides.
func (t *Tracker) newParticles(seeds []r3.Vec, flipFirst bool, width int) []particle {
	parts := make([]particle, len(seeds))
	for i, s := range seeds {
		parts[i] = particle{
			seed:      s,
			pos:       s,
			flipFirst: flipFirst,
			alive:     true,
			window:    NewContextWindow(t.cfg.WindowDepth, width),
			path:      make([]r3.Vec, 0, t.cfg.MaxIterations),
			sample:    make([]float64, t.vol.Channels),
		}
		if t.emitsProb {
			parts[i].probs = make([]float64, 0, t.cfg.MaxIterations)
		}
	}
	return parts
}

// runPass iterates the per-particle state machine over one direction's
// arena until every particle has retired. Each iteration has three
// phases separated by barriers: sample+push (parallel across
// particles), one batched predictor call for the whole active set, and
// resolve+advance. Particles never read each other's state, so no
// locking is needed beyond the phase barriers.
func (t *Tracker) runPass(ctx context.Context, name string, parts []particle) error {
	active := make([]int, 0, len(parts))
	for i := range parts {
		active = append(active, i)
	}

	inputs := make([][]float64, 0, len(parts))
	inputBufs := make([][]float64, len(parts))

	for iter := 0; len(active) > 0; iter++ {
		if err := ctx.Err(); err != nil {
			for _, idx := range active {
				parts[idx].terminate(CauseAborted)
			}
			return fmt.Errorf("tracking %s pass aborted at iteration %d: %w", name, iter, err)
		}
		if t.progressEvery > 0 && iter%t.progressEvery == 0 {
			monitoring.Logf("tracto: %s pass iteration %d, %d/%d particles active",
				name, iter, len(active), len(parts))
		}

		// Phase 1: sample the signal at every active position and push
		// it into the particle's window. OOB retires the particle, and a
		// NaN/Inf sample retires it as degenerate before the value can
		// reach the predictor.
		t.parallelOver(active, func(idx int) {
			p := &parts[idx]
			s, err := t.interp.Sample(p.pos, p.sample)
			if err != nil {
				p.terminate(CauseOutOfBounds)
				return
			}
			if !finiteValues(s) {
				p.terminate(CauseDegenerateDirection)
				return
			}
			p.sample = s
			p.window.Push(s)
		})
		active = compactActive(parts, active)
		if len(active) == 0 {
			break
		}

		// Phase 2: one batched inference call for the whole active set.
		inputs = inputs[:0]
		for _, idx := range active {
			p := &parts[idx]
			inputBufs[idx] = p.window.AsModelInput(inputBufs[idx][:0])
			inputs = append(inputs, inputBufs[idx])
		}
		preds, err := t.pred.Predict(ctx, inputs)
		if err != nil {
			for _, idx := range active {
				parts[idx].terminate(CauseAborted)
			}
			return fmt.Errorf("predictor failed on %s pass iteration %d: %w", name, iter, err)
		}
		if len(preds) != len(inputs) {
			for _, idx := range active {
				parts[idx].terminate(CauseAborted)
			}
			return fmt.Errorf("predictor returned %d outputs for %d inputs", len(preds), len(inputs))
		}

		// Phase 3: resolve sign, test continuation, advance.
		for i, idx := range active {
			t.step(&parts[idx], preds[i])
		}
		active = compactActive(parts, active)
	}
	return nil
}

// step applies one prediction to one active particle: sign resolution,
// confidence and mask tests, then the position update. Condition order
// is part of the contract; a particle terminates on the first failing
// test and the position is only committed when every test passes.
func (t *Tracker) step(p *particle, pr Prediction) {
	unit, ok := ResolveDirection(pr.Direction, p.dir, p.hasDir)
	if !ok {
		p.terminate(CauseDegenerateDirection)
		return
	}
	if !p.hasDir && p.flipFirst {
		unit = r3.Scale(-1, unit)
	}

	if t.emitsProb && pr.Probability < t.cfg.ProbabilityThreshold {
		p.terminate(CauseLowConfidence)
		return
	}

	next := r3.Add(p.pos, r3.Scale(t.cfg.StepWidth, unit))
	if t.mask != nil && t.mask.At(t.vol.WorldToGrid(next)) == 0 {
		p.terminate(CauseOutOfMask)
		return
	}

	p.pos = next
	p.dir = unit
	p.hasDir = true
	p.path = append(p.path, next)
	if t.emitsProb {
		p.probs = append(p.probs, pr.Probability)
	}
	p.age++
	if p.age >= t.cfg.MaxIterations {
		p.terminate(CauseMaxIterations)
	}
}

// parallelOver runs fn for every index in active, fanning out across
// the configured worker count. Each fn invocation touches only its own
// particle, so the phase is race-free by ownership.
func (t *Tracker) parallelOver(active []int, fn func(idx int)) {
	workers := t.cfg.Workers
	if workers > len(active) {
		workers = len(active)
	}
	if workers <= 1 {
		for _, idx := range active {
			fn(idx)
		}
		return
	}

	var g errgroup.Group
	chunk := (len(active) + workers - 1) / workers
	for start := 0; start < len(active); start += chunk {
		end := start + chunk
		if end > len(active) {
			end = len(active)
		}
		part := active[start:end]
		g.Go(func() error {
			for _, idx := range part {
				fn(idx)
			}
			return nil
		})
	}
	// Worker funcs never return errors; Wait is the phase barrier.
	_ = g.Wait()
}

// compactActive drops retired particles from the active index list in
// place, preserving relative (seed) order.
func compactActive(parts []particle, active []int) []int {
	out := active[:0]
	for _, idx := range active {
		if parts[idx].alive {
			out = append(out, idx)
		}
	}
	return out
}
