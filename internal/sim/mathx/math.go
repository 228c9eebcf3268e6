// Package mathx holds the integer helpers shared by the voxel grid, the
// generators and the streaming view.
package mathx

// FloorDiv divides rounding toward negative infinity. b must be positive.
func FloorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

// Mod is the non-negative remainder matching FloorDiv. b must be positive.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Chebyshev returns max(|dx|, |dz|), the ring a region sits on around a center.
func Chebyshev(dx, dz int) int {
	dx, dz = AbsInt(dx), AbsInt(dz)
	if dx > dz {
		return dx
	}
	return dz
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func lane(v int) uint64 { return uint64(uint32(int32(v))) }

// Hash2 is a stable per-column hash used for deterministic terrain features.
func Hash2(seed int64, x, z int) uint64 {
	return mix64(uint64(seed) ^ lane(x)*0x9e3779b97f4a7c15 ^ lane(z)*0xbf58476d1ce4e5b9)
}

// Hash3 is Hash2 extended with a vertical lane.
func Hash3(seed int64, x, y, z int) uint64 {
	return mix64(uint64(seed) ^ lane(x)*0x9e3779b97f4a7c15 ^ lane(y)*0xc2b2ae3d27d4eb4f ^ lane(z)*0xbf58476d1ce4e5b9)
}

// Permille folds a hash into [0, 1000).
func Permille(h uint64) int { return int(h % 1000) }
