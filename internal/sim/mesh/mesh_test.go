package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"voxelstream/internal/sim/voxel"
)

func TestBuildEmptyRegion(t *testing.T) {
	m := Build(voxel.New())
	require.Empty(t, m)
	require.Equal(t, 0, cap(m))
}

func TestBuildSingleCell(t *testing.T) {
	r := voxel.New()
	r.Set(5, 60, 7, voxel.Dirt)
	m := Build(r)
	require.Len(t, m, Faces*VerticesPerFace)
	require.Equal(t, Faces, m.Quads())
	require.Equal(t, len(m), cap(m), "mesh is trimmed to size")

	for _, v := range m {
		require.Contains(t, []uint8{5, 6}, v.X)
		require.Contains(t, []uint8{60, 61}, v.Y)
		require.Contains(t, []uint8{7, 8}, v.Z)
		// Dirt is tile 3 on every face: u in {3,4}, v in {0,1}.
		require.Contains(t, []uint8{3, 4}, v.U)
		require.Contains(t, []uint8{0, 1}, v.V)
	}
}

func TestBuildCullsSharedFaces(t *testing.T) {
	r := voxel.New()
	r.Set(4, 10, 4, voxel.Stone)
	r.Set(5, 10, 4, voxel.Stone)
	m := Build(r)
	require.Equal(t, 10, m.Quads())
}

func TestBorderFacesAreDrawn(t *testing.T) {
	r := voxel.New()
	r.Fill(0, 1, voxel.Stone)
	m := Build(r)
	// Top and bottom of a full layer plus the four outer walls.
	want := 2*voxel.Width*voxel.Depth + 4*voxel.Width
	require.Equal(t, want, m.Quads())
}

func TestVerticalBoundsReadAsAir(t *testing.T) {
	r := voxel.New()
	r.Set(8, voxel.Height-1, 8, voxel.Stone)
	r.Set(8, 0, 8, voxel.Stone)
	require.Equal(t, 12, Build(r).Quads())
}

func TestGrassUsesPerFaceTiles(t *testing.T) {
	require.Equal(t, uint8(1), tile(voxel.Grass, Top))
	require.Equal(t, uint8(3), tile(voxel.Grass, Bottom))
	require.Equal(t, uint8(2), tile(voxel.Grass, Left))

	r := voxel.New()
	r.Set(0, 0, 0, voxel.Sandstone)
	m := Build(r)
	top := m[Top*VerticesPerFace : (Top+1)*VerticesPerFace]
	for _, v := range top {
		// Tile 36 sits at u=4, v=2.
		require.Contains(t, []uint8{4, 5}, v.U)
		require.Contains(t, []uint8{2, 3}, v.V)
	}
}
