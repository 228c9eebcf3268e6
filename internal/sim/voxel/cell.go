package voxel

import (
	"errors"
	"fmt"
)

// Cell is the material occupying one grid position. The ordinal is the
// on-disk byte, so the order below must never change.
type Cell uint8

const (
	Air Cell = iota
	Dirt
	Grass
	Stone
	Cobblestone
	Wood
	Log
	Bedrock
	Sand
	Gravel
	GoldOre
	IronOre
	CoalOre
	Leaf
	Sponge
	Sandstone

	CellKinds = 16
)

var ErrUnknownCell = errors.New("unknown cell")

var cellNames = [CellKinds]string{
	"Air",
	"Dirt",
	"Grass",
	"Stone",
	"Cobblestone",
	"Wood",
	"Log",
	"Bedrock",
	"Sand",
	"Gravel",
	"Gold Ore",
	"Iron Ore",
	"Coal Ore",
	"Leaf",
	"Sponge",
	"Sandstone",
}

func (c Cell) IsAir() bool { return c == Air }

func (c Cell) String() string {
	if int(c) < len(cellNames) {
		return cellNames[c]
	}
	return fmt.Sprintf("Cell(%d)", uint8(c))
}

// DecodeCell maps a stored byte back to a Cell.
func DecodeCell(b byte) (Cell, error) {
	switch Cell(b) {
	case Air, Dirt, Grass, Stone, Cobblestone, Wood, Log, Bedrock,
		Sand, Gravel, GoldOre, IronOre, CoalOre, Leaf, Sponge, Sandstone:
		return Cell(b), nil
	}
	return Air, fmt.Errorf("%w: byte %d", ErrUnknownCell, b)
}
