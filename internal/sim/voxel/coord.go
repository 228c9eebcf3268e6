package voxel

import (
	"fmt"

	"voxelstream/internal/sim/mathx"
)

// Coord addresses a region column on the horizontal grid.
type Coord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d, %d)", c.X, c.Z) }

// Origin is the world position of the region's (0, 0, 0) cell.
func (c Coord) Origin() Pos { return Pos{X: c.X * Width, Z: c.Z * Depth} }

// Pos is an absolute cell position in the world.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Region returns the coordinate of the region containing p. Negative
// positions round toward negative infinity, so x=-1 lives in region -1.
func (p Pos) Region() Coord {
	return Coord{X: mathx.FloorDiv(p.X, Width), Z: mathx.FloorDiv(p.Z, Depth)}
}

// Local returns p relative to its region's origin.
func (p Pos) Local() (x, y, z int) {
	return mathx.Mod(p.X, Width), p.Y, mathx.Mod(p.Z, Depth)
}
