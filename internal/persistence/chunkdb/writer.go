package chunkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voxelstream/internal/sim/voxel"
)

type batchStmts struct {
	sel    *sql.Stmt
	upsert *sql.Stmt
}

func prepare(db *sql.DB) (batchStmts, error) {
	var st batchStmts
	var err error
	if st.sel, err = db.Prepare(`SELECT block_data FROM chunks WHERE x = ? AND z = ?`); err != nil {
		return st, fmt.Errorf("prepare select: %w", err)
	}
	if st.upsert, err = db.Prepare(`INSERT OR REPLACE INTO chunks(x, z, block_data) VALUES(?, ?, ?)`); err != nil {
		st.close()
		return st, fmt.Errorf("prepare upsert: %w", err)
	}
	return st, nil
}

func (st batchStmts) close() {
	if st.sel != nil {
		_ = st.sel.Close()
	}
	if st.upsert != nil {
		_ = st.upsert.Close()
	}
}

func (s *Store) loop() {
	ctx := context.Background()
	stmts := s.stmts

	batch := make([]req, 0, s.opt.MaxBatch)
	for {
		first, ok := <-s.ch
		if !ok {
			return
		}
		batch = append(batch[:0], first)
		closing := false
	gather:
		for len(batch) < s.opt.MaxBatch {
			select {
			case r, ok := <-s.ch:
				if !ok {
					closing = true
					break gather
				}
				batch = append(batch, r)
			default:
				break gather
			}
		}

		for _, r := range s.applyWithRetry(ctx, stmts, batch) {
			s.emit(r)
		}
		if closing {
			return
		}
	}
}

func (s *Store) emit(r Result) {
	if r.Err != nil {
		s.failures.Add(1)
	}
	if r.Op == OpSave && r.Err == nil {
		return
	}
	select {
	case s.out <- r:
	case <-s.stop:
	}
}

// applyWithRetry runs the batch in one transaction. A transaction that
// cannot begin or commit is retried with linear backoff; after the last
// attempt every request in the batch fails with that error.
func (s *Store) applyWithRetry(ctx context.Context, stmts batchStmts, batch []req) []Result {
	var err error
	for attempt := 0; attempt <= s.opt.Retries; attempt++ {
		if attempt > 0 {
			s.txRetries.Add(1)
			time.Sleep(time.Duration(attempt) * s.opt.RetryBackoff)
		}
		var results []Result
		results, err = s.apply(ctx, stmts, batch)
		if err == nil {
			s.batches.Add(1)
			return results
		}
		s.log.Printf("batch of %d (attempt %d): %v", len(batch), attempt+1, err)
	}
	out := make([]Result, len(batch))
	for i, r := range batch {
		out[i] = Result{Op: r.op, Coord: r.coord, Err: fmt.Errorf("%s %s: %w", r.op, r.coord, err)}
	}
	return out
}

func (s *Store) apply(ctx context.Context, stmts batchStmts, batch []req) ([]Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sel := tx.Stmt(stmts.sel)
	upsert := tx.Stmt(stmts.upsert)

	results := make([]Result, 0, len(batch))
	var loads, saves uint64
	for _, r := range batch {
		switch r.op {
		case OpLoad:
			res := Result{Op: OpLoad, Coord: r.coord}
			var blob []byte
			switch err := sel.QueryRowContext(ctx, r.coord.X, r.coord.Z).Scan(&blob); {
			case errors.Is(err, sql.ErrNoRows):
				res.Err = fmt.Errorf("load %s: %w", r.coord, ErrMissing)
			case err != nil:
				res.Err = fmt.Errorf("load %s: %w", r.coord, err)
			default:
				res.Region, res.Err = voxel.Decompress(blob)
				if res.Err != nil {
					res.Err = fmt.Errorf("load %s: %w", r.coord, res.Err)
				}
			}
			loads++
			results = append(results, res)
		case OpSave:
			res := Result{Op: OpSave, Coord: r.coord}
			blob, err := voxel.Compress(r.region)
			if err == nil {
				_, err = upsert.ExecContext(ctx, r.coord.X, r.coord.Z, blob)
			}
			if err != nil {
				res.Err = fmt.Errorf("save %s: %w", r.coord, err)
			} else {
				saves++
			}
			results = append(results, res)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.loads.Add(loads)
	s.saves.Add(saves)
	return results, nil
}
