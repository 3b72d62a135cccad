// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package batching

import (
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"

	"github.com/rerun-tools/chunkbatcher/internal/chunk"
)

var allocator = memory.NewGoAllocator()

var logTime = chunk.NewTimeline("log_time", chunk.TimelineTimestampNs)
var frameNr = chunk.NewTimeline("frame_nr", chunk.TimelineSequence)
var myPoint = chunk.NewComponentDescriptor("rerun.archetypes.Points2D", "Position2D", "MyPoint")

func f32Cell(t *testing.T, v float32) chunk.Cell {
	t.Helper()
	b := array.NewFloat32Builder(allocator)
	defer b.Release()
	b.Append(v)
	return chunk.Cell{Type: arrow.PrimitiveTypes.Float32, Array: b.NewFloat32Array()}
}

func row(t *testing.T, tp chunk.TimePoint, v float32) chunk.PendingRow {
	t.Helper()
	return chunk.NewPendingRow(tp, map[chunk.ComponentDescriptor]chunk.Cell{myPoint: f32Cell(t, v)})
}
