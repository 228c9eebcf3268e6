package log

import "voxelstream/internal/sim/voxel"

// Event is one journal line. From and To are region state names.
type Event struct {
	Tick  uint64      `json:"tick"`
	Coord voxel.Coord `json:"coord"`
	From  string      `json:"from,omitempty"`
	To    string      `json:"to,omitempty"`
	Event string      `json:"event"`
	Err   string      `json:"err,omitempty"`
}

// Journal records region transitions under <dir>/journal-*.jsonl.zst.
type Journal struct{ w *HourlyWriter }

func NewJournal(dir string) *Journal {
	return &Journal{w: NewHourlyWriter(dir, "journal")}
}

func (j *Journal) Record(e Event) error { return j.w.Write(e) }
func (j *Journal) Close() error         { return j.w.Close() }
