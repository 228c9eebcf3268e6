package stream

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/sim/mathx"
	"voxelstream/internal/sim/voxel"
)

// View is the viewpoint driving streaming: every region within Radius
// (Chebyshev distance, in regions) of the one containing Position is
// desired.
type View struct {
	Position mgl32.Vec3
	Radius   int
}

func (v View) Center() voxel.Coord {
	return voxel.Pos{
		X: int(math.Floor(float64(v.Position.X()))),
		Y: int(math.Floor(float64(v.Position.Y()))),
		Z: int(math.Floor(float64(v.Position.Z()))),
	}.Region()
}

// Desired lists the square of regions around Center, row by row along x
// with z increasing.
func (v View) Desired() []voxel.Coord {
	r := v.radius()
	c := v.Center()
	out := make([]voxel.Coord, 0, (2*r+1)*(2*r+1))
	for z := c.Z - r; z <= c.Z+r; z++ {
		for x := c.X - r; x <= c.X+r; x++ {
			out = append(out, voxel.Coord{X: x, Z: z})
		}
	}
	return out
}

// Contains reports whether c is one of the regions Desired returns.
func (v View) Contains(c voxel.Coord) bool {
	ctr := v.Center()
	return mathx.Chebyshev(c.X-ctr.X, c.Z-ctr.Z) <= v.radius()
}

// radius treats a negative render distance as zero.
func (v View) radius() int {
	if v.Radius < 0 {
		return 0
	}
	return v.Radius
}
