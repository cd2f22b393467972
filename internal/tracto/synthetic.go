package tracto

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"
)

// Synthetic predictors and volumes for pipeline validation. They stand
// in for a trained model when exercising the engine end to end; real
// deployments supply a Predictor backed by exported model weights.

// ConstantPredictor emits one fixed raw direction (and optionally a
// fixed continuation probability) for every input. Deterministic.
type ConstantPredictor struct {
	Dir      r3.Vec
	Prob     float64
	InputLen int
	WithProb bool
}

// InputLength implements Predictor.
func (p *ConstantPredictor) InputLength() int { return p.InputLen }

// EmitsProbability implements Predictor.
func (p *ConstantPredictor) EmitsProbability() bool { return p.WithProb }

// Predict implements Predictor.
func (p *ConstantPredictor) Predict(_ context.Context, inputs [][]float64) ([]Prediction, error) {
	out := make([]Prediction, len(inputs))
	for i := range inputs {
		out[i] = Prediction{Direction: p.Dir, Probability: p.Prob}
	}
	return out, nil
}

// FieldPredictor reads the direction straight out of the newest window
// sample: channels 0..2 are the direction components and, when WithProb
// is set, channel 3 is the continuation probability. Combined with a
// field volume this gives a fully data-driven deterministic predictor,
// useful for validating the sample->window->predict->advance loop.
type FieldPredictor struct {
	Depth    int // window depth the inputs were built with
	Width    int // per-sample width (>= 3, >= 4 with WithProb)
	WithProb bool
}

// InputLength implements Predictor.
func (p *FieldPredictor) InputLength() int { return p.Depth * p.Width }

// EmitsProbability implements Predictor.
func (p *FieldPredictor) EmitsProbability() bool { return p.WithProb }

// Predict implements Predictor.
func (p *FieldPredictor) Predict(_ context.Context, inputs [][]float64) ([]Prediction, error) {
	out := make([]Prediction, len(inputs))
	for i, in := range inputs {
		newest := in[(p.Depth-1)*p.Width:]
		pr := Prediction{
			Direction: r3.Vec{X: newest[0], Y: newest[1], Z: newest[2]},
		}
		if p.WithProb {
			pr.Probability = newest[3]
		}
		out[i] = pr
	}
	return out, nil
}

// NewFieldVolume builds a synthetic volume whose per-voxel signal is
// the given direction field plus a probability channel: channels are
// [dx, dy, dz, prob]. field is evaluated at each voxel center (grid
// coordinates). The identity affine is used, so grid and world
// coordinates coincide.
func NewFieldVolume(nx, ny, nz int, field func(x, y, z int) (r3.Vec, float64)) *Volume {
	const channels = 4
	data := make([]float64, nx*ny*nz*channels)
	i := 0
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				dir, prob := field(x, y, z)
				data[i] = dir.X
				data[i+1] = dir.Y
				data[i+2] = dir.Z
				data[i+3] = prob
				i += channels
			}
		}
	}
	vol, err := NewVolume(nx, ny, nz, channels, data, IdentityAffine())
	if err != nil {
		// Shape and affine are correct by construction.
		panic(err)
	}
	return vol
}

// NewUniformFieldVolume is NewFieldVolume with a constant field.
func NewUniformFieldVolume(nx, ny, nz int, dir r3.Vec, prob float64) *Volume {
	return NewFieldVolume(nx, ny, nz, func(_, _, _ int) (r3.Vec, float64) {
		return dir, prob
	})
}
