//go:build cell64

package protocol

// Cell is the abstract-machine word type. Built with the cell64 tag for
// targets whose AMX was compiled with 64-bit cells.
type Cell uint64

// CellSize is sizeof(Cell) in bytes, used to advance virtual addresses.
const CellSize = 8
