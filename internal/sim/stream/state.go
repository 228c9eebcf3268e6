package stream

import (
	"fmt"

	"voxelstream/internal/sim/voxel"
)

// State is where a region is in its lifecycle. The zero value is
// NonExistent: never generated and never stored.
type State uint8

const (
	NonExistent State = iota
	Generating
	Saved
	Loading
	Unmeshed
	Meshing
	Ready
	// Failed regions could not be generated or loaded. They render as the
	// empty region and are not requested again by this process.
	Failed

	stateCount
)

var stateNames = [stateCount]string{
	"NonExistent",
	"Generating",
	"Saved",
	"Loading",
	"Unmeshed",
	"Meshing",
	"Ready",
	"Failed",
}

func (s State) String() string {
	if s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// InMemory reports whether the region's cells are resident.
func (s State) InMemory() bool {
	return s == Unmeshed || s == Meshing || s == Ready
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	out := make([]State, stateCount)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// TransitionError is raised (as a panic value) when an event arrives for a
// region in a state that cannot accept it.
type TransitionError struct {
	Coord voxel.Coord
	State State
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("region %s: %s not allowed in state %s", e.Coord, e.Event, e.State)
}

// Directory maps coordinates to states. Absent entries are NonExistent.
// It is owned by the control goroutine and is not safe for concurrent use.
type Directory struct {
	states map[voxel.Coord]State
}

func NewDirectory() *Directory {
	return &Directory{states: map[voxel.Coord]State{}}
}

// Seed marks every coordinate found in storage as Saved.
func (d *Directory) Seed(saved []voxel.Coord) {
	for _, c := range saved {
		d.states[c] = Saved
	}
}

func (d *Directory) Get(c voxel.Coord) State {
	return d.states[c]
}

func (d *Directory) Set(c voxel.Coord, s State) {
	if s == NonExistent {
		delete(d.states, c)
		return
	}
	d.states[c] = s
}

// Transition moves c from one state to another and panics with a
// *TransitionError if c is not currently in from.
func (d *Directory) Transition(c voxel.Coord, from, to State) {
	if cur := d.Get(c); cur != from {
		panic(&TransitionError{Coord: c, State: cur, Event: fmt.Sprintf("%s -> %s", from, to)})
	}
	d.Set(c, to)
}

func (d *Directory) Len() int { return len(d.states) }

func (d *Directory) Counts() map[State]int {
	out := make(map[State]int, stateCount)
	for _, s := range d.states {
		out[s]++
	}
	return out
}
