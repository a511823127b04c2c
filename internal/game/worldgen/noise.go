package worldgen

import "math"

// noise is a seeded value-noise field: pseudo-random values on the integer
// lattice, smoothly interpolated in between. Output is in [-1, 1].
type noise struct {
	seed uint64
}

func newNoise(seed uint64) *noise {
	return &noise{seed: seed}
}

// lattice hashes an integer grid point to a value in [-1, 1]. The mixer is
// splitmix64, which is enough to decorrelate neighboring cells.
func (n *noise) lattice(x, y int64) float64 {
	h := n.seed + uint64(x)*0x9e3779b97f4a7c15 + uint64(y)*0xbf58476d1ce4e5b9
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return float64(h)/float64(math.MaxUint64)*2 - 1
}

// at samples the field at a continuous coordinate.
func (n *noise) at(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	ix, iy := int64(x0), int64(y0)
	fx, fy := x-x0, y-y0

	v00 := n.lattice(ix, iy)
	v10 := n.lattice(ix+1, iy)
	v01 := n.lattice(ix, iy+1)
	v11 := n.lattice(ix+1, iy+1)

	sx, sy := smoothstep(fx), smoothstep(fy)
	top := lerp(v00, v10, sx)
	bottom := lerp(v01, v11, sx)
	return lerp(top, bottom, sy)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func smoothstep(t float64) float64 { return t * t * (3 - 2*t) }
