package stream

import (
	"context"

	"voxelstream/internal/persistence/chunkdb"
	"voxelstream/internal/sim/jobs"
	"voxelstream/internal/sim/mesh"
	"voxelstream/internal/sim/voxel"
)

// closeLog records the order workers were closed in.
type closeLog []string

type fakeGen struct {
	submitted []voxel.Coord
	pending   []GenerateDone
	full      bool
	drainErr  error
	closes    *closeLog
}

func (g *fakeGen) Submit(c voxel.Coord) error {
	if g.full {
		return jobs.ErrQueueFull
	}
	g.submitted = append(g.submitted, c)
	return nil
}

func (g *fakeGen) Drain(fn func(GenerateDone)) error {
	if g.drainErr != nil {
		return g.drainErr
	}
	p := g.pending
	g.pending = nil
	for _, d := range p {
		fn(d)
	}
	return nil
}

func (g *fakeGen) Close() {
	if g.closes != nil {
		*g.closes = append(*g.closes, "generator")
	}
}

func (g *fakeGen) Stats() jobs.Stats {
	return jobs.Stats{Name: "generator", Submitted: uint64(len(g.submitted))}
}

// complete finishes a generation with a flat region.
func (g *fakeGen) complete(c voxel.Coord) *voxel.Region {
	r := voxel.New()
	r.Fill(0, 4, voxel.Stone)
	g.pending = append(g.pending, GenerateDone{In: c, Out: r})
	return r
}

func (g *fakeGen) completeErr(c voxel.Coord, err error) {
	g.pending = append(g.pending, GenerateDone{In: c, Err: err})
}

type fakeMesher struct {
	submitted []MeshRequest
	pending   []MeshDone
	full      bool
	closes    *closeLog
}

func (m *fakeMesher) Submit(r MeshRequest) error {
	if m.full {
		return jobs.ErrQueueFull
	}
	m.submitted = append(m.submitted, r)
	return nil
}

func (m *fakeMesher) Drain(fn func(MeshDone)) error {
	p := m.pending
	m.pending = nil
	for _, d := range p {
		fn(d)
	}
	return nil
}

func (m *fakeMesher) Close() {
	if m.closes != nil {
		*m.closes = append(*m.closes, "mesher")
	}
}

func (m *fakeMesher) Stats() jobs.Stats {
	return jobs.Stats{Name: "mesher", Submitted: uint64(len(m.submitted))}
}

// complete meshes the most recent request for c.
func (m *fakeMesher) complete(c voxel.Coord) {
	for i := len(m.submitted) - 1; i >= 0; i-- {
		if m.submitted[i].Coord == c {
			req := m.submitted[i]
			m.pending = append(m.pending, MeshDone{In: req, Out: mesh.Build(req.Region)})
			return
		}
	}
	panic("no mesh request for " + c.String())
}

type fakeStore struct {
	loads    []voxel.Coord
	saves    map[voxel.Coord]*voxel.Region
	saveLog  []voxel.Coord
	pending  []chunkdb.Result
	fullSave bool
	closes   *closeLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{saves: map[voxel.Coord]*voxel.Region{}}
}

func (s *fakeStore) Load(c voxel.Coord) error {
	s.loads = append(s.loads, c)
	return nil
}

func (s *fakeStore) Save(c voxel.Coord, r *voxel.Region) error {
	if s.fullSave {
		return chunkdb.ErrQueueFull
	}
	s.saves[c] = r
	s.saveLog = append(s.saveLog, c)
	return nil
}

func (s *fakeStore) SaveWait(_ context.Context, c voxel.Coord, r *voxel.Region) error {
	s.saves[c] = r
	s.saveLog = append(s.saveLog, c)
	return nil
}

func (s *fakeStore) Drain(fn func(chunkdb.Result)) error {
	p := s.pending
	s.pending = nil
	for _, r := range p {
		fn(r)
	}
	return nil
}

func (s *fakeStore) Close() error {
	if s.closes != nil {
		*s.closes = append(*s.closes, "store")
	}
	return nil
}

func (s *fakeStore) Stats() chunkdb.Stats {
	return chunkdb.Stats{Loads: uint64(len(s.loads)), Saves: uint64(len(s.saveLog))}
}

func (s *fakeStore) completeLoad(c voxel.Coord, r *voxel.Region, err error) {
	s.pending = append(s.pending, chunkdb.Result{Op: chunkdb.OpLoad, Coord: c, Region: r, Err: err})
}
