// Package gen produces fresh regions for coordinates that have never been
// stored. Generators are pure functions of (seed, coord) and run on the
// generator worker goroutine only.
package gen

import (
	"fmt"

	"voxelstream/internal/sim/mathx"
	"voxelstream/internal/sim/voxel"
)

type Generator interface {
	Generate(c voxel.Coord) (*voxel.Region, error)
}

// Layered is the flat world: stone up to y=40 and a single grass layer on top.
type Layered struct {
	StoneTop int
}

func NewLayered() Layered { return Layered{StoneTop: 40} }

func (l Layered) Generate(voxel.Coord) (*voxel.Region, error) {
	top := l.StoneTop
	if top <= 0 || top >= voxel.Height {
		return nil, fmt.Errorf("layered: stone top %d out of range", top)
	}
	r := voxel.New()
	r.Fill(0, top, voxel.Stone)
	r.FillLayer(top, voxel.Grass)
	return r, nil
}

type Biome uint8

const (
	Plains Biome = iota
	Forest
	Desert
)

func (b Biome) String() string {
	switch b {
	case Forest:
		return "FOREST"
	case Desert:
		return "DESERT"
	default:
		return "PLAINS"
	}
}

func BiomeFrom(noise uint64) Biome {
	return Biome(noise % 3)
}

// BiomeAt picks a biome per square cell of regionSize blocks.
func BiomeAt(seed int64, x, z, regionSize int) Biome {
	if regionSize <= 0 {
		regionSize = 1
	}
	return BiomeFrom(mathx.Hash2(seed, mathx.FloorDiv(x, regionSize), mathx.FloorDiv(z, regionSize)))
}

// InCluster reports whether (x, z) falls in a blob scattered on a coarse
// grid. Each grid cell hosts at most one blob center.
func InCluster(seed int64, x, z, grid, radius, probPermille int) bool {
	if grid <= 0 || radius <= 0 || probPermille <= 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if mathx.Permille(h) >= probPermille {
				continue
			}
			cx := cgx*grid + int((h>>10)%uint64(grid))
			cz := cgz*grid + int((h>>20)%uint64(grid))
			ddx, ddz := x-cx, z-cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}
