// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
)

var logTime = NewTimeline("log_time", TimelineTimestampNs)
var frameNr = NewTimeline("frame_nr", TimelineSequence)

func f32Cell(t *testing.T, vs ...float32) Cell {
	t.Helper()
	b := array.NewFloat32Builder(defaultAllocator)
	defer b.Release()
	b.AppendValues(vs, nil)
	arr := b.NewFloat32Array()
	return Cell{Type: arrow.PrimitiveTypes.Float32, Array: arr}
}

func f64Cell(t *testing.T, vs ...float64) Cell {
	t.Helper()
	b := array.NewFloat64Builder(defaultAllocator)
	defer b.Release()
	b.AppendValues(vs, nil)
	arr := b.NewFloat64Array()
	return Cell{Type: arrow.PrimitiveTypes.Float64, Array: arr}
}

var myPoint = NewComponentDescriptor("rerun.archetypes.Points2D", "Position2D", "MyPoint")
var myPoint64 = NewComponentDescriptor("rerun.archetypes.Points2D", "Position2D", "MyPoint64")

// blobCell builds a variable-width binary cell of n bytes, for tests that
// need cells whose heap footprint scales with their logical payload.
func blobCell(t *testing.T, n int) Cell {
	t.Helper()
	b := array.NewBinaryBuilder(defaultAllocator, arrow.BinaryTypes.Binary)
	defer b.Release()
	b.Append(make([]byte, n))
	return Cell{Type: arrow.BinaryTypes.Binary, Array: b.NewBinaryArray()}
}

func rowAt(t *testing.T, rid RowID, timePoint TimePoint, desc ComponentDescriptor, cell Cell) PendingRow {
	t.Helper()
	return PendingRow{RowID: rid, TimePoint: timePoint, Components: map[ComponentDescriptor]Cell{desc: cell}}
}

// sequentialRowIDs returns n RowIds strictly increasing in index order,
// convenient for tests that want input-order to equal RowID-order.
func sequentialRowIDs(t *testing.T, n int) []RowID {
	t.Helper()
	gen := NewRowIDGenerator()
	out := make([]RowID, n)
	for i := range out {
		out[i] = gen.Next()
	}
	return out
}
