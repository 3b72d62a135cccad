// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"sort"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/google/uuid"
)

// ChunkID uniquely identifies one Chunk instance. Unlike RowID, a ChunkID
// needs no ordering guarantee, so a random v4 UUID is the right-sized
// primitive.
type ChunkID struct {
	uuid uuid.UUID
}

// NewChunkID mints a fresh, random ChunkID.
func NewChunkID() ChunkID {
	return ChunkID{uuid: uuid.New()}
}

func (c ChunkID) String() string { return c.uuid.String() }

// ComponentColumn is one component's data for every row in a Chunk: N
// cells (nil meaning the row had no value for this component), all sharing
// one Arrow datatype.
type ComponentColumn struct {
	dataType arrow.DataType
	cells    []Cell // len == N; zero-value Cell (nil Array) marks a null.
}

func newComponentColumn(dt arrow.DataType, cells []Cell) *ComponentColumn {
	cp := make([]Cell, len(cells))
	copy(cp, cells)
	return &ComponentColumn{dataType: dt, cells: cp}
}

// DataType returns the Arrow datatype shared by every non-null cell.
func (c *ComponentColumn) DataType() arrow.DataType { return c.dataType }

// Len returns N, the number of rows (including nulls).
func (c *ComponentColumn) Len() int { return len(c.cells) }

// Cell returns the cell array for row i, or a zero Cell if the row lacked
// this component.
func (c *ComponentColumn) Cell(i int) Cell { return c.cells[i] }

// IsNull reports whether row i has no value for this component.
func (c *ComponentColumn) IsNull(i int) bool { return c.cells[i].Array == nil }

// HeapSizeBytes sums the buffer footprint of every non-null cell.
func (c *ComponentColumn) HeapSizeBytes() int64 {
	var total int64
	for _, cell := range c.cells {
		if cell.Array == nil {
			continue
		}
		for _, buf := range cell.Array.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}

func (c *ComponentColumn) sliced(i, n int) *ComponentColumn {
	return newComponentColumn(c.dataType, c.cells[i:i+n])
}

func (c *ComponentColumn) taken(indices []int) *ComponentColumn {
	out := make([]Cell, len(indices))
	for i, idx := range indices {
		out[i] = c.cells[idx]
	}
	return newComponentColumn(c.dataType, out)
}

func (c *ComponentColumn) filtered(mask []bool) *ComponentColumn {
	out := make([]Cell, 0, len(c.cells))
	for i, keep := range mask {
		if keep {
			out = append(out, c.cells[i])
		}
	}
	return newComponentColumn(c.dataType, out)
}

// Chunk is an immutable, self-contained columnar table: one entity path, N
// rows identified by RowID, a set of per-timeline time columns (all length
// N), and a set of per-component columns (all length N, sparsely null).
// Every exported constructor and operation that produces a Chunk upholds
// the structural invariants checked by New.
type Chunk struct {
	id         ChunkID
	entityPath EntityPath
	rowIDs     []RowID
	timelines  map[TimelineName]TimeColumn
	components map[ComponentDescriptor]*ComponentColumn
	isSorted   bool
	heapBytes  int64
}

// New validates and constructs a Chunk. isSorted, when nil, is computed
// from rowIDs; every column's length must equal len(rowIDs) and every
// non-null cell of a component column must match the column's datatype, or
// a *CorruptChunkError is returned. The unsorted-row cap is a property of
// assembly and is not re-validated here.
func New(
	id ChunkID,
	entityPath EntityPath,
	isSorted *bool,
	rowIDs []RowID,
	timelines map[TimelineName]TimeColumn,
	components map[ComponentDescriptor]*ComponentColumn,
) (*Chunk, error) {
	n := len(rowIDs)

	for name, tc := range timelines {
		if tc.Len() != n {
			return nil, corrupt(entityPath, "timeline %q has %d values, want %d", name, tc.Len(), n)
		}
	}
	for desc, col := range components {
		if col.Len() != n {
			return nil, corrupt(entityPath, "component %q has %d cells, want %d", desc, col.Len(), n)
		}
		for i := 0; i < n; i++ {
			cell := col.Cell(i)
			if cell.Array == nil {
				continue
			}
			if cell.Type != nil && col.dataType != nil && datatypeKey(cell.Type) != datatypeKey(col.dataType) {
				return nil, corrupt(entityPath, "component %q row %d has datatype %s, column datatype is %s", desc, i, cell.Type, col.dataType)
			}
		}
	}

	sorted := false
	if isSorted != nil {
		sorted = *isSorted
	} else {
		sorted = rowIDsSorted(rowIDs)
	}

	c := &Chunk{
		id:         id,
		entityPath: entityPath,
		rowIDs:     append([]RowID(nil), rowIDs...),
		timelines:  timelines,
		components: components,
		isSorted:   sorted,
	}
	c.heapBytes = c.computeHeapSize()
	return c, nil
}

func rowIDsSorted(rowIDs []RowID) bool {
	for i := 1; i < len(rowIDs); i++ {
		if rowIDs[i].Less(rowIDs[i-1]) {
			return false
		}
	}
	return true
}

func (c *Chunk) computeHeapSize() int64 {
	var total int64
	for _, tc := range c.timelines {
		total += tc.HeapSizeBytes()
	}
	for _, col := range c.components {
		total += col.HeapSizeBytes()
	}
	total += int64(len(c.rowIDs)) * 16
	return total
}

// ID returns the Chunk's identifier.
func (c *Chunk) ID() ChunkID { return c.id }

// EntityPath returns the single entity path all rows share.
func (c *Chunk) EntityPath() EntityPath { return c.entityPath }

// NumRows returns N.
func (c *Chunk) NumRows() int { return len(c.rowIDs) }

// RowIDs returns the row-id axis. Callers must not mutate the result.
func (c *Chunk) RowIDs() []RowID { return c.rowIDs }

// IsSorted reports whether rows are sorted by RowID.
func (c *Chunk) IsSorted() bool { return c.isSorted }

// IsEmpty reports whether the Chunk has zero rows.
func (c *Chunk) IsEmpty() bool { return len(c.rowIDs) == 0 }

// IsStatic reports whether the Chunk carries no timelines at all.
func (c *Chunk) IsStatic() bool { return len(c.timelines) == 0 }

// Timelines returns the Chunk's timeline columns keyed by name. Callers
// must not mutate the result.
func (c *Chunk) Timelines() map[TimelineName]TimeColumn { return c.timelines }

// Components returns the Chunk's component columns keyed by descriptor.
// Callers must not mutate the result.
func (c *Chunk) Components() map[ComponentDescriptor]*ComponentColumn { return c.components }

// Component looks up one component column by descriptor.
func (c *Chunk) Component(desc ComponentDescriptor) (*ComponentColumn, bool) {
	col, ok := c.components[desc]
	return col, ok
}

// HeapSizeBytes returns the heap-size estimate cached when the Chunk was
// built. Every operation builds its result through New, which computes it
// afresh; a shallow row-slice still counts the full shared TimeColumn
// buffers, so its figure is an upper bound.
func (c *Chunk) HeapSizeBytes() int64 { return c.heapBytes }

// WithID returns a Chunk identical to c except for its id.
func (c *Chunk) WithID(newID ChunkID) *Chunk {
	cp := *c
	cp.id = newID
	return &cp
}

// rowIndexOf returns the position of rowID in c.rowIDs, using binary
// search when the chunk is sorted and a linear scan otherwise.
func (c *Chunk) rowIndexOf(rowID RowID) (int, bool) {
	if c.isSorted {
		i := sort.Search(len(c.rowIDs), func(i int) bool { return !c.rowIDs[i].Less(rowID) })
		if i < len(c.rowIDs) && c.rowIDs[i] == rowID {
			return i, true
		}
		return 0, false
	}
	for i, id := range c.rowIDs {
		if id == rowID {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value a given row contributed to a given component, if
// any. Lookup is O(log N) when the chunk is sorted by RowID, O(N)
// otherwise.
func (c *Chunk) Cell(rowID RowID, desc ComponentDescriptor) (Cell, bool) {
	i, ok := c.rowIndexOf(rowID)
	if !ok {
		return Cell{}, false
	}
	col, ok := c.components[desc]
	if !ok {
		return Cell{}, false
	}
	cell := col.Cell(i)
	return cell, cell.Array != nil
}
