// Package mesh turns a region into a flat triangle list. Only faces whose
// neighbour inside the same region is air are emitted; faces on the
// horizontal region border are always drawn.
package mesh

import "voxelstream/internal/sim/voxel"

// Vertex is one corner of a textured triangle. Positions are local to the
// region, UV is the atlas tile plus the corner offset.
type Vertex struct {
	X, Y, Z uint8
	U, V    uint8
}

type Mesh []Vertex

// Quads is the number of drawn faces.
func (m Mesh) Quads() int { return len(m) / VerticesPerFace }

const (
	Faces           = 6
	VerticesPerFace = 6
	MaxVertices     = voxel.CellCount * Faces * VerticesPerFace
)

// Face order: Left, Right, Bottom, Top, Front, Back.
const (
	Left = iota
	Right
	Bottom
	Top
	Front
	Back
)

// atlas maps each cell to its texture tile per face.
var atlas = [voxel.CellKinds][Faces]uint8{
	voxel.Air:         {0, 1, 2, 3, 4, 5},
	voxel.Dirt:        {3, 3, 3, 3, 3, 3},
	voxel.Grass:       {2, 2, 3, 1, 2, 2},
	voxel.Stone:       {0, 0, 0, 0, 0, 0},
	voxel.Cobblestone: {4, 4, 4, 4, 4, 4},
	voxel.Wood:        {5, 5, 5, 5, 5, 5},
	voxel.Log:         {20, 20, 19, 19, 20, 20},
	voxel.Bedrock:     {13, 13, 13, 13, 13, 13},
	voxel.Sand:        {14, 14, 14, 14, 14, 14},
	voxel.Gravel:      {15, 15, 15, 15, 15, 15},
	voxel.GoldOre:     {16, 16, 16, 16, 16, 16},
	voxel.IronOre:     {17, 17, 17, 17, 17, 17},
	voxel.CoalOre:     {18, 18, 18, 18, 18, 18},
	voxel.Leaf:        {24, 24, 24, 24, 24, 24},
	voxel.Sponge:      {28, 28, 28, 28, 28, 28},
	voxel.Sandstone:   {38, 38, 37, 36, 38, 38},
}

// tile returns the atlas tile index for a cell face.
func tile(c voxel.Cell, face int) uint8 { return atlas[c][face] }

var cubeCorners = [Faces * VerticesPerFace][3]uint8{
	// Left
	{0, 0, 0}, {0, 1, 0}, {0, 1, 1}, {0, 1, 1}, {0, 0, 1}, {0, 0, 0},
	// Right
	{1, 0, 1}, {1, 1, 1}, {1, 1, 0}, {1, 1, 0}, {1, 0, 0}, {1, 0, 1},
	// Bottom
	{1, 0, 1}, {1, 0, 0}, {0, 0, 0}, {0, 0, 0}, {0, 0, 1}, {1, 0, 1},
	// Top
	{1, 1, 0}, {1, 1, 1}, {0, 1, 1}, {0, 1, 1}, {0, 1, 0}, {1, 1, 0},
	// Front
	{1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 0, 0}, {1, 0, 0},
	// Back
	{0, 0, 1}, {0, 1, 1}, {1, 1, 1}, {1, 1, 1}, {1, 0, 1}, {0, 0, 1},
}

var neighbour = [Faces][3]int{
	{-1, 0, 0},
	{1, 0, 0},
	{0, -1, 0},
	{0, 1, 0},
	{0, 0, -1},
	{0, 0, 1},
}

var uvCorners = [VerticesPerFace][2]uint8{
	{1, 1}, {1, 0}, {0, 0}, {0, 0}, {0, 1}, {1, 1},
}

// occluded reports whether the neighbour across face k hides it.
func occluded(r *voxel.Region, x, y, z, k int) bool {
	nx, ny, nz := x+neighbour[k][0], y+neighbour[k][1], z+neighbour[k][2]
	if nx < 0 || nx >= voxel.Width || nz < 0 || nz >= voxel.Depth {
		return false
	}
	// Above and below the region reads as air.
	return !r.Get(nx, ny, nz).IsAir()
}

// Build allocates the worst case once and returns an exact-size copy.
func Build(r *voxel.Region) Mesh {
	buf := make([]Vertex, MaxVertices)
	n := 0
	for i := 0; i < voxel.CellCount; i++ {
		c := r.At(i)
		if c.IsAir() {
			continue
		}
		x, y, z := voxel.Coords(i)
		for k := 0; k < Faces; k++ {
			if occluded(r, x, y, z, k) {
				continue
			}
			idx := tile(c, k)
			u, v := idx%16, idx/16
			for j := 0; j < VerticesPerFace; j++ {
				corner := cubeCorners[k*VerticesPerFace+j]
				buf[n] = Vertex{
					X: uint8(x) + corner[0],
					Y: uint8(y) + corner[1],
					Z: uint8(z) + corner[2],
					U: u + uvCorners[j][0],
					V: v + uvCorners[j][1],
				}
				n++
			}
		}
	}
	out := make(Mesh, n)
	copy(out, buf[:n])
	return out
}
