package tracto

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Volume is an immutable 4-D diffusion signal field: three spatial axes
// plus a signal-channel axis, together with the affine that maps grid
// (index) coordinates to world coordinates.
//
// Voxel data is stored flat in channel-minor order. Use Idx to address
// a voxel's first channel.
type Volume struct {
	NX, NY, NZ int // spatial grid dimensions
	Channels   int // signal values per voxel

	// Data holds NX*NY*NZ*Channels values, x-major, channel-minor.
	Data []float64

	// Affine is the grid->world transform, 4x4 row-major
	// (m00..m03, m10..m13, m20..m23, m30..m33).
	Affine [16]float64

	inverse [16]float64
}

// NewVolume validates the grid shape and affine and precomputes the
// world->grid inverse. The affine must be invertible; a singular affine
// is a run-level configuration error, not a per-particle condition.
func NewVolume(nx, ny, nz, channels int, data []float64, affine [16]float64) (*Volume, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", nx, ny, nz)
	}
	if channels < 1 {
		return nil, fmt.Errorf("volume must have at least one channel, got %d", channels)
	}
	if want := nx * ny * nz * channels; len(data) != want {
		return nil, fmt.Errorf("volume data length %d does not match %dx%dx%dx%d (%d)",
			len(data), nx, ny, nz, channels, want)
	}

	inv, err := invertAffine(affine)
	if err != nil {
		return nil, fmt.Errorf("volume affine: %w", err)
	}

	return &Volume{
		NX: nx, NY: ny, NZ: nz,
		Channels: channels,
		Data:     data,
		Affine:   affine,
		inverse:  inv,
	}, nil
}

// Idx returns the flat offset of voxel (x,y,z), channel 0.
func (v *Volume) Idx(x, y, z int) int {
	return ((x*v.NY+y)*v.NZ + z) * v.Channels
}

// GridToWorld maps a continuous grid coordinate to world space.
func (v *Volume) GridToWorld(p r3.Vec) r3.Vec {
	return applyAffine(v.Affine, p)
}

// WorldToGrid maps a world coordinate to continuous grid space using the
// precomputed inverse affine.
func (v *Volume) WorldToGrid(p r3.Vec) r3.Vec {
	return applyAffine(v.inverse, p)
}

// InGrid reports whether a continuous grid coordinate lies inside
// [0, dim-1] on every axis. The outermost valid index is inclusive.
func (v *Volume) InGrid(g r3.Vec) bool {
	return g.X >= 0 && g.X <= float64(v.NX-1) &&
		g.Y >= 0 && g.Y <= float64(v.NY-1) &&
		g.Z >= 0 && g.Z <= float64(v.NZ-1)
}

// applyAffine applies a 4x4 row-major homogeneous transform to a point.
func applyAffine(t [16]float64, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// invertAffine computes the inverse of a 4x4 row-major transform.
func invertAffine(t [16]float64) ([16]float64, error) {
	var out [16]float64
	a := mat.NewDense(4, 4, t[:])

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return out, fmt.Errorf("affine is not invertible: %w", err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = inv.At(i, j)
		}
	}
	return out, nil
}

// IdentityAffine returns the identity grid->world transform, useful when
// grid and world coordinates coincide (synthetic data, tests).
func IdentityAffine() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// ScaledAffine returns a grid->world transform with per-axis voxel
// spacing and a world-space origin offset.
func ScaledAffine(sx, sy, sz float64, origin r3.Vec) [16]float64 {
	return [16]float64{
		sx, 0, 0, origin.X,
		0, sy, 0, origin.Y,
		0, 0, sz, origin.Z,
		0, 0, 0, 1,
	}
}

// Mask is an optional binary volume sharing a Volume's grid shape.
// Zero-valued voxels are outside the tracking region.
type Mask struct {
	NX, NY, NZ int
	Data       []uint8
}

// NewMask validates the mask shape against a volume.
func NewMask(vol *Volume, data []uint8) (*Mask, error) {
	if want := vol.NX * vol.NY * vol.NZ; len(data) != want {
		return nil, fmt.Errorf("mask length %d does not match volume grid %dx%dx%d (%d)",
			len(data), vol.NX, vol.NY, vol.NZ, want)
	}
	return &Mask{NX: vol.NX, NY: vol.NY, NZ: vol.NZ, Data: data}, nil
}

// At reports the mask value at a continuous grid coordinate using
// nearest-voxel lookup. Coordinates outside the grid count as zero.
func (m *Mask) At(g r3.Vec) uint8 {
	x := int(math.Round(g.X))
	y := int(math.Round(g.Y))
	z := int(math.Round(g.Z))
	if x < 0 || x >= m.NX || y < 0 || y >= m.NY || z < 0 || z >= m.NZ {
		return 0
	}
	return m.Data[(x*m.NY+y)*m.NZ+z]
}
