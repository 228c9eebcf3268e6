package voxel

import "voxelstream/internal/sim/mathx"

const (
	Width     = 16
	Depth     = 16
	Height    = 128
	CellCount = Width * Depth * Height
)

// Region is a fixed 16x128x16 column of cells stored y-fastest, then z,
// then x. It is a plain value type: moving a *Region across a channel hands
// over ownership and the sender must not touch it again.
type Region struct {
	cells [CellCount]Cell
}

var empty Region

// Empty returns the shared all-air region. Callers must not mutate it.
func Empty() *Region { return &empty }

func New() *Region { return &Region{} }

func index(x, y, z int) int {
	return y + z*Height + x*Height*Width
}

// Coords reverses index.
func Coords(i int) (x, y, z int) {
	return i / (Height * Width), i % Height, (i / Height) % Width
}

// Get reads a cell. x and z wrap into the region; y outside [0, Height)
// reads as Air.
func (r *Region) Get(x, y, z int) Cell {
	if y < 0 || y >= Height {
		return Air
	}
	return r.cells[index(mathx.Mod(x, Width), y, mathx.Mod(z, Depth))]
}

// Set writes a cell. Writes with y outside [0, Height) are dropped.
func (r *Region) Set(x, y, z int, c Cell) {
	if y < 0 || y >= Height {
		return
	}
	r.cells[index(mathx.Mod(x, Width), y, mathx.Mod(z, Depth))] = c
}

// At reads by flat index.
func (r *Region) At(i int) Cell { return r.cells[i] }

func (r *Region) Clone() *Region {
	c := *r
	return &c
}

// FillLayer sets every cell of the horizontal layer y.
func (r *Region) FillLayer(y int, c Cell) {
	if y < 0 || y >= Height {
		return
	}
	for x := 0; x < Width; x++ {
		for z := 0; z < Depth; z++ {
			r.cells[index(x, y, z)] = c
		}
	}
}

// Fill sets layers [y0, y1).
func (r *Region) Fill(y0, y1 int, c Cell) {
	for y := y0; y < y1; y++ {
		r.FillLayer(y, c)
	}
}

// Column writes c into [y0, y1) of a single column.
func (r *Region) Column(x, z, y0, y1 int, c Cell) {
	for y := y0; y < y1; y++ {
		r.Set(x, y, z, c)
	}
}

func (r *Region) Count(c Cell) int {
	n := 0
	for _, v := range r.cells {
		if v == c {
			n++
		}
	}
	return n
}
