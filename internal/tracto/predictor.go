package tracto

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"
)

// Prediction is one predictor output: a raw (not necessarily unit)
// direction and, when the predictor emits one, a continuation
// probability in [0,1]. Probability is ignored unless the predictor's
// EmitsProbability capability is set.
type Prediction struct {
	Direction   r3.Vec
	Probability float64
}

// Predictor wraps an opaque trained model behind a batched inference
// contract. Implementations must return exactly one Prediction per
// input, in matching order, and must not assume a fixed batch size:
// the active set shrinks between calls as particles retire.
//
// The predictor performs no renormalization or sign handling; both are
// the engine's job. EmitsProbability is a capability resolved once per
// run, never per call.
type Predictor interface {
	// InputLength is the fixed, versioned flattened feature length the
	// model accepts. It is validated against the context window shape
	// at run start.
	InputLength() int

	// EmitsProbability reports whether Predict populates Probability.
	EmitsProbability() bool

	// Predict runs batched inference over flattened context windows.
	Predict(ctx context.Context, inputs [][]float64) ([]Prediction, error)
}
