package tracto

import "gonum.org/v1/gonum/spatial/r3"

// TerminationCause classifies why a particle stopped. All causes are
// expected, data-dependent outcomes of the state machine, not errors;
// a terminating particle never aborts the batch.
type TerminationCause string

const (
	// CauseNone marks a particle that is still active.
	CauseNone TerminationCause = ""
	// CauseOutOfBounds: the sample position left the volume grid.
	CauseOutOfBounds TerminationCause = "out_of_bounds"
	// CauseDegenerateDirection: zero-norm or non-finite predictor output.
	CauseDegenerateDirection TerminationCause = "degenerate_direction"
	// CauseLowConfidence: continuation probability fell below threshold.
	CauseLowConfidence TerminationCause = "low_confidence"
	// CauseOutOfMask: the next position maps to a zero mask voxel.
	CauseOutOfMask TerminationCause = "out_of_mask"
	// CauseMaxIterations: iteration budget exhausted (normal completion).
	CauseMaxIterations TerminationCause = "max_iterations"
	// CauseAborted: run cancelled while the particle was still active.
	CauseAborted TerminationCause = "aborted"
)

// particle is the per-streamline tracking state. Particles live in a
// pre-allocated arena indexed by seed; each is owned exclusively by the
// scheduler and never aliased across particles. Once terminated, a
// particle is frozen: the scheduler drops it from the active index list
// and never touches it again.
type particle struct {
	seed r3.Vec

	pos    r3.Vec
	dir    r3.Vec
	hasDir bool

	// flipFirst negates the first resolved direction; set on the
	// reverse-pass particle so the two passes leave the seed on
	// geometrically opposite initial conditions.
	flipFirst bool

	alive bool
	age   int
	cause TerminationCause

	window *ContextWindow

	// path holds positions visited after the seed, appended once per
	// committed step. probs holds the matching continuation
	// probabilities when the predictor emits them.
	path  []r3.Vec
	probs []float64

	// sample is a scratch buffer reused across iterations.
	sample []float64
}

// terminate freezes the particle with the given cause. Idempotent for
// safety, but the scheduler only terminates active particles.
func (p *particle) terminate(cause TerminationCause) {
	if !p.alive {
		return
	}
	p.alive = false
	p.cause = cause
}
