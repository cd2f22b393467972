package tracto

import "gonum.org/v1/gonum/spatial/r3"

// SeedsFromMask returns one world-coordinate seed per non-zero mask
// voxel, at the voxel center, in deterministic x-major grid order.
func SeedsFromMask(vol *Volume, mask *Mask) []r3.Vec {
	seeds := make([]r3.Vec, 0, 256)
	for x := 0; x < mask.NX; x++ {
		for y := 0; y < mask.NY; y++ {
			for z := 0; z < mask.NZ; z++ {
				if mask.Data[(x*mask.NY+y)*mask.NZ+z] == 0 {
					continue
				}
				g := r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
				seeds = append(seeds, vol.GridToWorld(g))
			}
		}
	}
	return seeds
}
