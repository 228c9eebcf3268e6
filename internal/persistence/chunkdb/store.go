// Package chunkdb is the persistence worker. It owns the sqlite database on
// one writer goroutine and applies queued loads and saves in submission
// order, batched into transactions.
package chunkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelstream/internal/sim/voxel"
)

var (
	ErrMissing   = errors.New("region not stored")
	ErrClosed    = errors.New("chunkdb closed")
	ErrQueueFull = errors.New("chunkdb queue full")
	ErrCrashed   = errors.New("chunkdb writer crashed")
)

const schema = `CREATE TABLE chunks (
	x          INTEGER NOT NULL,
	z          INTEGER NOT NULL,
	block_data BLOB NOT NULL,
	PRIMARY KEY(x, z)
);`

type Options struct {
	Queue        int
	MaxBatch     int
	Retries      int
	RetryBackoff time.Duration
	Logger       *log.Logger
}

func (o *Options) normalize() {
	if o.Queue <= 0 {
		o.Queue = 4096
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = 256
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 50 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
}

type Op uint8

const (
	OpLoad Op = iota + 1
	OpSave
)

func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpSave:
		return "save"
	}
	return "unknown"
}

// Result is a finished load, or a save that could not be written.
// Successful saves produce no result.
type Result struct {
	Op     Op
	Coord  voxel.Coord
	Region *voxel.Region
	Err    error
}

type req struct {
	op     Op
	coord  voxel.Coord
	region *voxel.Region
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Batches       uint64 `json:"batches"`
	Loads         uint64 `json:"loads"`
	Saves         uint64 `json:"saves"`
	Failures      uint64 `json:"failures"`
	TxRetries     uint64 `json:"tx_retries"`
}

type Store struct {
	db    *sql.DB
	opt   Options
	log   *log.Logger
	saved []voxel.Coord
	stmts batchStmts

	ch   chan req
	out  chan Result
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	crashed atomic.Bool

	batches   atomic.Uint64
	loads     atomic.Uint64
	saves     atomic.Uint64
	failures  atomic.Uint64
	txRetries atomic.Uint64
}

// Open prepares the database, reads the coordinates already stored and
// starts the writer goroutine.
func Open(path string, opt Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	opt.normalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db, opt.Logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	saved, err := storedCoords(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	stmts, err := prepare(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:    db,
		opt:   opt,
		log:   opt.Logger,
		saved: saved,
		stmts: stmts,
		ch:    make(chan req, opt.Queue),
		out:   make(chan Result, opt.Queue),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.out)
		defer func() {
			if r := recover(); r != nil {
				s.crashed.Store(true)
				s.log.Printf("writer crashed: %v", r)
			}
		}()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// initSchema creates the chunks table only in a database that has no
// tables at all.
func initSchema(db *sql.DB, logger *log.Logger) error {
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		logger.Printf("database has %d tables", n)
		return nil
	}
	logger.Printf("creating chunks table")
	_, err := db.Exec(schema)
	return err
}

func storedCoords(db *sql.DB) ([]voxel.Coord, error) {
	rows, err := db.Query(`SELECT x, z FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []voxel.Coord
	for rows.Next() {
		var c voxel.Coord
		if err := rows.Scan(&c.X, &c.Z); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Saved lists every coordinate present in the database when it was opened.
func (s *Store) Saved() []voxel.Coord {
	out := make([]voxel.Coord, len(s.saved))
	copy(out, s.saved)
	return out
}

func (s *Store) submit(r req) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.crashed.Load() {
		return ErrCrashed
	}
	select {
	case s.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Load queues a read. The region arrives later through Drain.
func (s *Store) Load(c voxel.Coord) error {
	return s.submit(req{op: OpLoad, coord: c})
}

// Save queues a write and takes ownership of r.
func (s *Store) Save(c voxel.Coord, r *voxel.Region) error {
	if r == nil {
		return fmt.Errorf("save %s: nil region", c)
	}
	return s.submit(req{op: OpSave, coord: c, region: r})
}

// SaveWait is Save that waits for queue space.
func (s *Store) SaveWait(ctx context.Context, c voxel.Coord, r *voxel.Region) error {
	if r == nil {
		return fmt.Errorf("save %s: nil region", c)
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if s.crashed.Load() {
		return ErrCrashed
	}
	select {
	case s.ch <- req{op: OpSave, coord: c, region: r}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain delivers every result already available without waiting.
func (s *Store) Drain(fn func(Result)) error {
	for {
		select {
		case r, ok := <-s.out:
			if !ok {
				if s.crashed.Load() {
					return ErrCrashed
				}
				return ErrClosed
			}
			fn(r)
		default:
			return nil
		}
	}
}

// Close writes everything already queued, then closes the database.
// Load results nobody collected are discarded.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		close(s.stop)
		s.wg.Wait()
		s.stmts.close()
		err = s.db.Close()
	})
	return err
}

func (s *Store) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Batches:       s.batches.Load(),
		Loads:         s.loads.Load(),
		Saves:         s.saves.Load(),
		Failures:      s.failures.Load(),
		TxRetries:     s.txRetries.Load(),
	}
}
