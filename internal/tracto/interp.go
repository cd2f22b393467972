package tracto

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// PostprocessFunc optionally transforms a raw interpolated signal vector
// before it is returned, e.g. to re-express it in a different basis.
// Implementations must treat the input as read-only and return a slice
// of any fixed length; the returned length defines the sample width
// seen by the context window. The function is called concurrently
// across particles within an iteration and must be safe for concurrent
// use.
type PostprocessFunc func(signal []float64) []float64

// Interpolator samples a Volume's signal at continuous world
// coordinates using trilinear interpolation.
//
// Edge policy: a position whose grid coordinate falls outside
// [0, dim-1] on any axis yields ErrOutOfBounds. The interpolator never
// clamps; the caller decides what an edge violation means (the stepper
// terminates the particle). Queries exactly on the outermost valid
// index are in bounds.
type Interpolator struct {
	vol  *Volume
	post PostprocessFunc
}

// NewInterpolator creates an interpolator over vol. post may be nil.
func NewInterpolator(vol *Volume, post PostprocessFunc) *Interpolator {
	return &Interpolator{vol: vol, post: post}
}

// SampleWidth returns the length of the vectors produced by Sample.
func (in *Interpolator) SampleWidth() int {
	if in.post == nil {
		return in.vol.Channels
	}
	// Probe with a zero vector once; postprocessing is shape-stable.
	probe := in.post(make([]float64, in.vol.Channels))
	return len(probe)
}

// Sample interpolates the signal at a world coordinate, filling dst
// when it has the right length (allocating otherwise). It is a pure
// function of the position and the fixed volume, safe for concurrent
// use across particles.
func (in *Interpolator) Sample(world r3.Vec, dst []float64) ([]float64, error) {
	g := in.vol.WorldToGrid(world)
	if !in.vol.InGrid(g) {
		return nil, ErrOutOfBounds
	}

	v := in.vol
	x0, fx := splitIndex(g.X, v.NX)
	y0, fy := splitIndex(g.Y, v.NY)
	z0, fz := splitIndex(g.Z, v.NZ)
	x1, y1, z1 := clampIndex(x0+1, v.NX), clampIndex(y0+1, v.NY), clampIndex(z0+1, v.NZ)

	// Corner weights of the enclosing cell.
	w000 := (1 - fx) * (1 - fy) * (1 - fz)
	w001 := (1 - fx) * (1 - fy) * fz
	w010 := (1 - fx) * fy * (1 - fz)
	w011 := (1 - fx) * fy * fz
	w100 := fx * (1 - fy) * (1 - fz)
	w101 := fx * (1 - fy) * fz
	w110 := fx * fy * (1 - fz)
	w111 := fx * fy * fz

	c000 := v.Idx(x0, y0, z0)
	c001 := v.Idx(x0, y0, z1)
	c010 := v.Idx(x0, y1, z0)
	c011 := v.Idx(x0, y1, z1)
	c100 := v.Idx(x1, y0, z0)
	c101 := v.Idx(x1, y0, z1)
	c110 := v.Idx(x1, y1, z0)
	c111 := v.Idx(x1, y1, z1)

	if len(dst) != v.Channels {
		dst = make([]float64, v.Channels)
	}
	for c := 0; c < v.Channels; c++ {
		dst[c] = w000*v.Data[c000+c] + w001*v.Data[c001+c] +
			w010*v.Data[c010+c] + w011*v.Data[c011+c] +
			w100*v.Data[c100+c] + w101*v.Data[c101+c] +
			w110*v.Data[c110+c] + w111*v.Data[c111+c]
	}

	if in.post != nil {
		return in.post(dst), nil
	}
	return dst, nil
}

// splitIndex decomposes a continuous in-bounds index into the lower cell
// corner and the fractional offset. On the outermost valid index the
// lower corner steps back one cell so the +1 neighbour stays in range
// (fraction becomes exactly 1, weighting only the outer corner).
func splitIndex(f float64, dim int) (int, float64) {
	i := int(f)
	if i >= dim-1 {
		i = dim - 2
		if i < 0 {
			// single-voxel axis, fraction collapses to the only sample
			return 0, 0
		}
	}
	return i, f - float64(i)
}

// clampIndex keeps a neighbour index inside [0, dim-1]. Only reachable
// on single-voxel axes, where the corresponding weight is zero.
func clampIndex(i, dim int) int {
	if i > dim-1 {
		return dim - 1
	}
	return i
}
