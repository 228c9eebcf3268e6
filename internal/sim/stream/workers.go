package stream

import (
	"context"

	"voxelstream/internal/persistence/chunkdb"
	plog "voxelstream/internal/persistence/log"
	"voxelstream/internal/sim/jobs"
	"voxelstream/internal/sim/mesh"
	"voxelstream/internal/sim/terrain/gen"
	"voxelstream/internal/sim/voxel"
)

type GenerateDone = jobs.Done[voxel.Coord, *voxel.Region]

// MeshRequest carries a private copy of the region to mesh.
type MeshRequest struct {
	Coord  voxel.Coord
	Region *voxel.Region
}

type MeshDone = jobs.Done[MeshRequest, mesh.Mesh]

// Generator produces regions for coordinates that were never stored.
type Generator interface {
	Submit(voxel.Coord) error
	Drain(func(GenerateDone)) error
	Close()
	Stats() jobs.Stats
}

// Mesher builds geometry from region copies.
type Mesher interface {
	Submit(MeshRequest) error
	Drain(func(MeshDone)) error
	Close()
	Stats() jobs.Stats
}

// Store loads and saves regions. Save and SaveWait take ownership of the
// region passed in.
type Store interface {
	Load(voxel.Coord) error
	Save(voxel.Coord, *voxel.Region) error
	SaveWait(context.Context, voxel.Coord, *voxel.Region) error
	Drain(func(chunkdb.Result)) error
	Close() error
	Stats() chunkdb.Stats
}

type Journal interface {
	Record(plog.Event) error
}

func NewGenerateWorker(g gen.Generator, queue int) *jobs.Pipe[voxel.Coord, *voxel.Region] {
	return jobs.Start("generator", queue, g.Generate)
}

func NewMeshWorker(queue int) *jobs.Pipe[MeshRequest, mesh.Mesh] {
	return jobs.Start("mesher", queue, func(r MeshRequest) (mesh.Mesh, error) {
		return mesh.Build(r.Region), nil
	})
}
