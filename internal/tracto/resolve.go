package tracto

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DegenerateNormEpsilon is the norm below which a raw predicted
// direction counts as "no viable direction" instead of being
// normalized.
const DegenerateNormEpsilon = 1e-8

// ResolveDirection re-orients a raw predictor output against the
// particle's established travel direction and normalizes it to unit
// length.
//
// The predictor is trained sign-invariantly (a direction and its
// negation are equally valid targets), so the raw output carries no
// forward/backward orientation. If the particle has a previous
// direction and the raw output points against it (negative dot
// product), the output is negated before use; on the first step the
// output is taken as returned. This keeps consecutive travel
// directions continuous.
//
// ok is false when the raw output is numerically degenerate: norm
// within DegenerateNormEpsilon of zero, or any NaN/Inf component.
func ResolveDirection(raw r3.Vec, prev r3.Vec, hasPrev bool) (unit r3.Vec, ok bool) {
	if !isFinite(raw.X) || !isFinite(raw.Y) || !isFinite(raw.Z) {
		return r3.Vec{}, false
	}
	n := r3.Norm(raw)
	if n < DegenerateNormEpsilon {
		return r3.Vec{}, false
	}
	unit = r3.Scale(1/n, raw)
	if hasPrev && r3.Dot(unit, prev) < 0 {
		unit = r3.Scale(-1, unit)
	}
	return unit, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// finiteValues reports whether every element of s is finite.
func finiteValues(s []float64) bool {
	for _, v := range s {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
