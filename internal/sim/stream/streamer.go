// Package stream keeps the regions around a moving viewpoint in memory.
//
// The Streamer is driven from a single control goroutine. Each Tick it
// collects whatever the generator, persistence and mesher workers have
// finished, then issues at most one new request per desired region and
// evicts in-memory regions that left the view. Regions cross into a worker
// either by value (mesh requests carry a clone) or by ownership hand-off
// (saves); the directory never points at a region a worker is using.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"voxelstream/internal/persistence/chunkdb"
	plog "voxelstream/internal/persistence/log"
	"voxelstream/internal/sim/jobs"
	"voxelstream/internal/sim/mesh"
	"voxelstream/internal/sim/tuning"
	"voxelstream/internal/sim/voxel"
)

var ErrWorkerDisconnected = errors.New("worker disconnected")

type Deps struct {
	Generator Generator
	Store     Store
	Mesher    Mesher

	// Saved seeds the directory with the coordinates already persisted.
	Saved []voxel.Coord

	Journal Journal
	Metrics *Metrics
}

type Streamer struct {
	log *log.Logger

	gen     Generator
	store   Store
	mesher  Mesher
	journal Journal
	metrics *Metrics

	dir     *Directory
	regions map[voxel.Coord]*voxel.Region
	meshes  map[voxel.Coord]mesh.Mesh
	// stale marks Meshing regions edited after their copy was taken.
	stale map[voxel.Coord]bool

	view  View
	order []voxel.Coord

	tick         uint64
	saveFailures uint64
	closed       bool
}

func New(cfg tuning.Streaming, deps Deps, logger *log.Logger) *Streamer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Streamer{
		log:     logger,
		gen:     deps.Generator,
		store:   deps.Store,
		mesher:  deps.Mesher,
		journal: deps.Journal,
		metrics: deps.Metrics,
		dir:     NewDirectory(),
		regions: map[voxel.Coord]*voxel.Region{},
		meshes:  map[voxel.Coord]mesh.Mesh{},
		stale:   map[voxel.Coord]bool{},
		view:    View{Radius: cfg.RenderDistance},
	}
	s.dir.Seed(deps.Saved)
	return s
}

// View returns the viewpoint last passed to UpdateView.
func (s *Streamer) View() View { return s.view }

// UpdateView replaces the viewpoint and immediately requests what it needs.
// Repeating the same view issues nothing new.
func (s *Streamer) UpdateView(v View) error {
	s.view = v
	return s.diff()
}

// Tick applies finished work, then re-runs the view diff.
func (s *Streamer) Tick() error {
	start := time.Now()
	s.tick++
	s.computeDesired()
	if err := s.drain(); err != nil {
		return err
	}
	if err := s.enterView(); err != nil {
		return err
	}
	s.leaveView()
	s.metrics.observe(s.dir.Counts(), time.Since(start))
	return nil
}

func (s *Streamer) diff() error {
	s.computeDesired()
	if err := s.enterView(); err != nil {
		return err
	}
	s.leaveView()
	return nil
}

func (s *Streamer) computeDesired() {
	s.order = s.view.Desired()
}

func (s *Streamer) inView(c voxel.Coord) bool {
	return s.view.Contains(c)
}

func disconnected(worker string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrWorkerDisconnected, worker, err)
}

func (s *Streamer) drain() error {
	if err := s.gen.Drain(s.onGenerated); err != nil {
		return disconnected("generator", err)
	}
	if err := s.store.Drain(s.onStored); err != nil {
		return disconnected("persistence", err)
	}
	if err := s.mesher.Drain(s.onMeshed); err != nil {
		return disconnected("mesher", err)
	}
	return nil
}

func (s *Streamer) onGenerated(d GenerateDone) {
	c := d.In
	if d.Err != nil || d.Out == nil {
		s.fail(c, Generating, "generate", d.Err)
		return
	}
	s.dir.Transition(c, Generating, Unmeshed)
	s.regions[c] = d.Out
	s.record(c, Generating, Unmeshed, "generated", nil)
}

func (s *Streamer) onStored(r chunkdb.Result) {
	c := r.Coord
	switch r.Op {
	case chunkdb.OpLoad:
		if r.Err != nil || r.Region == nil {
			s.fail(c, Loading, "load", r.Err)
			return
		}
		s.dir.Transition(c, Loading, Unmeshed)
		s.regions[c] = r.Region
		s.record(c, Loading, Unmeshed, "loaded", nil)
	case chunkdb.OpSave:
		// The region is already evicted; the failure is only reported.
		s.saveFailures++
		s.metrics.failure("save")
		s.log.Printf("save %s failed: %v", c, r.Err)
		s.record(c, s.dir.Get(c), s.dir.Get(c), "save_failed", r.Err)
	}
}

func (s *Streamer) onMeshed(d MeshDone) {
	c := d.In.Coord
	s.dir.Transition(c, Meshing, Unmeshed)
	if s.stale[c] || d.Err != nil {
		if d.Err != nil {
			s.metrics.failure("mesh")
			s.log.Printf("mesh %s failed: %v", c, d.Err)
		}
		delete(s.stale, c)
		s.record(c, Meshing, Unmeshed, "mesh_discarded", d.Err)
		return
	}
	if !s.inView(c) {
		// Left the view while meshing; leaveView evicts it this tick.
		s.record(c, Meshing, Unmeshed, "mesh_discarded", nil)
		return
	}
	s.dir.Transition(c, Unmeshed, Ready)
	s.meshes[c] = d.Out
	s.record(c, Meshing, Ready, "meshed", nil)
}

func (s *Streamer) fail(c voxel.Coord, from State, kind string, err error) {
	if err == nil {
		err = errors.New("no region returned")
	}
	s.dir.Transition(c, from, Failed)
	s.metrics.failure(kind)
	s.log.Printf("%s %s failed: %v", kind, c, err)
	s.record(c, from, Failed, kind, err)
}

// enterView issues the next request for every desired region. A worker
// whose queue is full is retried on the next pass.
func (s *Streamer) enterView() error {
	for _, c := range s.order {
		var (
			err  error
			next State
			kind string
		)
		cur := s.dir.Get(c)
		switch cur {
		case NonExistent:
			next, kind = Generating, "generate"
			err = s.gen.Submit(c)
		case Saved:
			next, kind = Loading, "load"
			err = s.store.Load(c)
		case Unmeshed:
			next, kind = Meshing, "mesh"
			err = s.mesher.Submit(MeshRequest{Coord: c, Region: s.regions[c].Clone()})
		default:
			continue
		}
		switch {
		case err == nil:
			s.dir.Transition(c, cur, next)
			s.metrics.request(kind)
			s.record(c, cur, next, kind, nil)
		case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, chunkdb.ErrQueueFull):
		default:
			return disconnected(kind, err)
		}
	}
	return nil
}

// leaveView evicts in-memory regions outside the view. Meshing regions
// wait for their mesh; a full save queue leaves the region resident.
func (s *Streamer) leaveView() {
	for c, r := range s.regions {
		if s.inView(c) {
			continue
		}
		cur := s.dir.Get(c)
		if cur == Meshing {
			continue
		}
		if err := s.store.Save(c, r); err != nil {
			if !errors.Is(err, chunkdb.ErrQueueFull) {
				s.log.Printf("evict %s: %v", c, err)
			}
			continue
		}
		s.evicted(c, cur, "evicted")
	}
}

func (s *Streamer) evicted(c voxel.Coord, from State, event string) {
	delete(s.regions, c)
	delete(s.meshes, c)
	delete(s.stale, c)
	s.dir.Transition(c, from, Saved)
	s.metrics.request("save")
	s.record(c, from, Saved, event, nil)
}

func (s *Streamer) record(c voxel.Coord, from, to State, event string, err error) {
	if s.journal == nil {
		return
	}
	e := plog.Event{Tick: s.tick, Coord: c, From: from.String(), To: to.String(), Event: event}
	if err != nil {
		e.Err = err.Error()
	}
	if jerr := s.journal.Record(e); jerr != nil {
		s.log.Printf("journal: %v", jerr)
	}
}

// State returns the lifecycle state of c.
func (s *Streamer) State(c voxel.Coord) State { return s.dir.Get(c) }

// Region returns the resident region at c, or the shared empty region.
func (s *Streamer) Region(c voxel.Coord) *voxel.Region {
	if r, ok := s.regions[c]; ok {
		return r
	}
	return voxel.Empty()
}

func (s *Streamer) GetCell(p voxel.Pos) voxel.Cell {
	x, y, z := p.Local()
	return s.Region(p.Region()).Get(x, y, z)
}

// SetCell edits a resident region and reports whether it was resident.
// A Ready region drops its mesh and is meshed again; a Meshing region
// discards the mesh in flight when it arrives.
func (s *Streamer) SetCell(p voxel.Pos, cell voxel.Cell) bool {
	c := p.Region()
	r, ok := s.regions[c]
	if !ok {
		return false
	}
	x, y, z := p.Local()
	if r.Get(x, y, z) == cell {
		return true
	}
	r.Set(x, y, z, cell)
	switch s.dir.Get(c) {
	case Ready:
		delete(s.meshes, c)
		s.dir.Transition(c, Ready, Unmeshed)
		s.record(c, Ready, Unmeshed, "edited", nil)
	case Meshing:
		s.stale[c] = true
	}
	return true
}

// ReadyMeshes visits every region whose mesh is current.
func (s *Streamer) ReadyMeshes(fn func(voxel.Coord, mesh.Mesh)) {
	for c, m := range s.meshes {
		fn(c, m)
	}
}

type Stats struct {
	Tick         uint64         `json:"tick"`
	Center       voxel.Coord    `json:"center"`
	Radius       int            `json:"radius"`
	States       map[string]int `json:"states"`
	Resident     int            `json:"resident"`
	Meshes       int            `json:"meshes"`
	Vertices     int            `json:"vertices"`
	SaveFailures uint64         `json:"save_failures"`

	Generator jobs.Stats    `json:"generator"`
	Mesher    jobs.Stats    `json:"mesher"`
	Storage   chunkdb.Stats `json:"storage"`
}

func (s *Streamer) Stats() Stats {
	st := Stats{
		Tick:         s.tick,
		Center:       s.view.Center(),
		Radius:       s.view.Radius,
		States:       map[string]int{},
		Resident:     len(s.regions),
		Meshes:       len(s.meshes),
		SaveFailures: s.saveFailures,
		Generator:    s.gen.Stats(),
		Mesher:       s.mesher.Stats(),
		Storage:      s.store.Stats(),
	}
	for state, n := range s.dir.Counts() {
		st.States[state.String()] = n
	}
	for _, m := range s.meshes {
		st.Vertices += len(m)
	}
	return st
}

// Close collects finished work, writes every resident region back to
// storage and shuts the workers down. Persistence closes last so every
// queued save lands.
func (s *Streamer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.drain(); err != nil {
		errs = append(errs, err)
	}
	ctx := context.Background()
	for c, r := range s.regions {
		cur := s.dir.Get(c)
		if err := s.store.SaveWait(ctx, c, r); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", c, err))
			continue
		}
		s.evicted(c, cur, "flushed")
	}
	s.mesher.Close()
	s.gen.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
