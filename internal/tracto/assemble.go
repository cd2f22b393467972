package tracto

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Streamline is an ordered sequence of world-coordinate points
// approximating one fiber pathway. Immutable once assembled.
type Streamline []r3.Vec

// ArcLength returns the sum of consecutive point distances.
func (s Streamline) ArcLength() float64 {
	var total float64
	for i := 1; i < len(s); i++ {
		total += r3.Norm(r3.Sub(s[i], s[i-1]))
	}
	return total
}

// Result is the output of one tracking run.
type Result struct {
	// Streamlines holds the surviving length-filtered streamlines in
	// input seed order.
	Streamlines []Streamline

	// SeedIndices maps each streamline to the index of the seed it grew
	// from. Correlation is by stable seed index, not list position,
	// because the length filter removes entries.
	SeedIndices []int

	// Annotations holds per-point continuation probabilities parallel
	// to Streamlines. Nil when the predictor does not emit
	// probabilities. The seed point itself carries 1.0: it was never
	// the subject of a prediction.
	Annotations [][]float64

	// Tally counts retired particles (both passes) per termination
	// cause, including particles whose streamline was filtered out.
	Tally map[TerminationCause]int
}

// assemble joins the two passes of every seed into one streamline and
// applies the arc-length filter. Direction handling: the reverse path
// is walked periphery-to-seed in storage order, so it is reversed into
// increasing order ending at the seed, then the seed, then the forward
// path. Streamlines outside [MinLength, MaxLength] are discarded whole;
// there is no truncation.
func (t *Tracker) assemble(seeds []r3.Vec, forward, reverse []particle) *Result {
	res := &Result{
		Streamlines: make([]Streamline, 0, len(seeds)),
		SeedIndices: make([]int, 0, len(seeds)),
		Tally:       make(map[TerminationCause]int),
	}
	if t.emitsProb {
		res.Annotations = make([][]float64, 0, len(seeds))
	}

	for i := range seeds {
		fwd, rev := &forward[i], &reverse[i]
		res.Tally[fwd.cause]++
		res.Tally[rev.cause]++

		pts := make(Streamline, 0, len(rev.path)+1+len(fwd.path))
		for j := len(rev.path) - 1; j >= 0; j-- {
			pts = append(pts, rev.path[j])
		}
		pts = append(pts, seeds[i])
		pts = append(pts, fwd.path...)

		length := pts.ArcLength()
		if length < t.cfg.MinLength {
			continue
		}
		if t.cfg.MaxLength > 0 && length > t.cfg.MaxLength {
			continue
		}

		res.Streamlines = append(res.Streamlines, pts)
		res.SeedIndices = append(res.SeedIndices, i)
		if t.emitsProb {
			probs := make([]float64, 0, len(pts))
			for j := len(rev.probs) - 1; j >= 0; j-- {
				probs = append(probs, rev.probs[j])
			}
			probs = append(probs, 1.0)
			probs = append(probs, fwd.probs...)
			res.Annotations = append(res.Annotations, probs)
		}
	}
	return res
}

// LengthStats summarises the arc-length distribution of a result.
type LengthStats struct {
	Count    int
	Mean     float64
	P50, P95 float64
	Min, Max float64
}

// LengthStats computes summary statistics over the surviving
// streamlines' arc lengths. Zero-valued for an empty result.
func (r *Result) LengthStats() LengthStats {
	if len(r.Streamlines) == 0 {
		return LengthStats{}
	}
	lengths := make([]float64, len(r.Streamlines))
	mn, mx := math.Inf(1), math.Inf(-1)
	for i, s := range r.Streamlines {
		l := s.ArcLength()
		lengths[i] = l
		mn = math.Min(mn, l)
		mx = math.Max(mx, l)
	}
	sort.Float64s(lengths)
	return LengthStats{
		Count: len(lengths),
		Mean:  stat.Mean(lengths, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, lengths, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, lengths, nil),
		Min:   mn,
		Max:   mx,
	}
}
