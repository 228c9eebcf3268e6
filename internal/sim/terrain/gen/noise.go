package gen

import (
	"github.com/aquilax/go-perlin"

	"voxelstream/internal/sim/mathx"
	"voxelstream/internal/sim/voxel"
)

type NoiseParams struct {
	Alpha      float64
	Beta       float64
	Octaves    int
	Scale      float64
	BaseHeight int
	Amplitude  int
}

func DefaultNoiseParams() NoiseParams {
	return NoiseParams{Alpha: 2, Beta: 2, Octaves: 3, Scale: 0.03, BaseHeight: 40, Amplitude: 24}
}

// Noise builds a Perlin heightmap with a bedrock floor, a stone body,
// a few dirt layers and a biome-dependent surface. Ores and trees are
// placed from coordinate hashes so a region regenerates identically.
type Noise struct {
	seed int64
	p    NoiseParams
	hm   *perlin.Perlin
}

func NewNoise(seed int64, p NoiseParams) *Noise {
	if p.Octaves <= 0 {
		p.Octaves = 1
	}
	if p.Scale <= 0 {
		p.Scale = DefaultNoiseParams().Scale
	}
	return &Noise{
		seed: seed,
		p:    p,
		hm:   perlin.NewPerlin(p.Alpha, p.Beta, int32(p.Octaves), seed),
	}
}

const (
	biomeRegionSize = 64
	dirtDepth       = 3
	seaLevel        = 36
	treeHeight      = 5
)

// Height returns the surface y at world column (x, z).
func (n *Noise) Height(x, z int) int {
	v := n.hm.Noise2D(float64(x)*n.p.Scale, float64(z)*n.p.Scale)
	h := n.p.BaseHeight + int(v*float64(n.p.Amplitude))
	if h < 1 {
		h = 1
	}
	if h > voxel.Height-treeHeight-3 {
		h = voxel.Height - treeHeight - 3
	}
	return h
}

func (n *Noise) Generate(c voxel.Coord) (*voxel.Region, error) {
	r := voxel.New()
	o := c.Origin()
	for x := 0; x < voxel.Width; x++ {
		for z := 0; z < voxel.Depth; z++ {
			wx, wz := o.X+x, o.Z+z
			h := n.Height(wx, wz)
			biome := BiomeAt(n.seed, wx, wz, biomeRegionSize)

			r.Set(x, 0, z, voxel.Bedrock)
			r.Column(x, z, 1, h-dirtDepth, voxel.Stone)
			for y := 1; y < h-dirtDepth; y++ {
				if ore := n.ore(wx, y, wz); ore != voxel.Air {
					r.Set(x, y, z, ore)
				}
			}

			sub, top := voxel.Dirt, voxel.Grass
			if biome == Desert || h <= seaLevel {
				sub, top = voxel.Sandstone, voxel.Sand
			}
			r.Column(x, z, max(1, h-dirtDepth), h, sub)
			r.Set(x, h, z, top)
		}
	}
	n.plantTrees(r, o)
	return r, nil
}

func (n *Noise) ore(x, y, z int) voxel.Cell {
	roll := mathx.Permille(mathx.Hash3(n.seed+501, x, y, z))
	switch {
	case y < 16 && roll < 4:
		return voxel.GoldOre
	case y < 40 && roll < 12:
		return voxel.IronOre
	case roll < 25:
		return voxel.CoalOre
	case y < 24 && roll < 40:
		return voxel.Gravel
	}
	return voxel.Air
}

// plantTrees keeps whole trees inside the region so neighbours never need
// to be consulted.
func (n *Noise) plantTrees(r *voxel.Region, o voxel.Pos) {
	for x := 2; x < voxel.Width-2; x++ {
		for z := 2; z < voxel.Depth-2; z++ {
			wx, wz := o.X+x, o.Z+z
			if BiomeAt(n.seed, wx, wz, biomeRegionSize) != Forest {
				continue
			}
			if !InCluster(n.seed+201, wx, wz, 9, 1, 350) || mathx.Permille(mathx.Hash2(n.seed+202, wx, wz)) >= 60 {
				continue
			}
			h := n.Height(wx, wz)
			if h <= seaLevel {
				continue
			}
			r.Set(x, h, z, voxel.Dirt)
			r.Column(x, z, h+1, h+1+treeHeight, voxel.Log)
			for dx := -2; dx <= 2; dx++ {
				for dz := -2; dz <= 2; dz++ {
					for dy := treeHeight - 2; dy <= treeHeight; dy++ {
						if mathx.AbsInt(dx)+mathx.AbsInt(dz) > 3 {
							continue
						}
						if r.Get(x+dx, h+1+dy, z+dz) == voxel.Air {
							r.Set(x+dx, h+1+dy, z+dz, voxel.Leaf)
						}
					}
				}
			}
			r.Set(x, h+1+treeHeight, z, voxel.Leaf)
		}
	}
}
