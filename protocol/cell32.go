//go:build !cell64

package protocol

// Cell is the abstract-machine word type. Width is fixed at build time;
// this file selects the 32-bit variant, the default for Pawn/AMX scripts
// built without the cell64 tag.
type Cell uint32

// CellSize is sizeof(Cell) in bytes, used to advance virtual addresses.
const CellSize = 4
