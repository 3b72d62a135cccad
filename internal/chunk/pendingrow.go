// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

// PendingRow is a single log call awaiting batching: one RowID, one
// TimePoint, and a mapping from component to the single-row Arrow value the
// caller supplied. PendingRow has no meaning once its data has been
// subsumed into a Chunk by assembly.
type PendingRow struct {
	RowID      RowID
	TimePoint  TimePoint
	Components map[ComponentDescriptor]Cell
}

// NewPendingRow builds a PendingRow, minting a fresh RowID.
func NewPendingRow(tp TimePoint, components map[ComponentDescriptor]Cell) PendingRow {
	return PendingRow{RowID: NewRowID(), TimePoint: tp, Components: components}
}

// ByteSize reports the row's deep byte usage, including every component
// array's buffers. Used by the Accumulator to decide when to flush on
// FlushNumBytes.
func (r PendingRow) ByteSize() int64 {
	var total int64
	for _, cell := range r.Components {
		if cell.Array == nil {
			continue
		}
		for _, buf := range cell.Array.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	// A rough fixed overhead for the RowID and the TimePoint map itself,
	// so that an all-static, componentless row still counts for something.
	total += 16 + int64(len(r.TimePoint))*24
	return total
}

// IntoChunk builds a one-row Chunk directly from this PendingRow, skipping
// the full assembly pipeline. Useful for tests and for single-row hot
// paths; wasteful as a general production strategy since it yields one
// Chunk per row.
func (r PendingRow) IntoChunk(entityPath EntityPath) (*Chunk, error) {
	rowIDs := []RowID{r.RowID}

	timelines := make(map[TimelineName]TimeColumn, len(r.TimePoint))
	for tl, v := range r.TimePoint {
		timelines[tl.Name] = NewTimeColumn(tl, []int64{v}, boolPtr(true))
	}

	components := make(map[ComponentDescriptor]*ComponentColumn, len(r.Components))
	for desc, cell := range r.Components {
		components[desc] = newComponentColumn(cell.Type, []Cell{cell})
	}

	return New(NewChunkID(), entityPath, boolPtr(true), rowIDs, timelines, components)
}
